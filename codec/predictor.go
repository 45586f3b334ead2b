package codec

// paeth implements the PNG Paeth predictor, as per the PNG specification
// (reused verbatim by predictor 10-15 row un-filtering below).
func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pd := abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pd {
		return a
	} else if pb <= pd {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// PNG row filter types (predictors 10-15).
const (
	pngNone  = 0
	pngSub   = 1
	pngUp    = 2
	pngAvg   = 3
	pngPaeth = 4
)

// unpredictPNG reverses the per-row PNG filter applied during encoding.
// data is the flate/lzw-decoded bytes: rowLength-byte rows, each prefixed by
// a one-byte filter-type tag.
func unpredictPNG(data []byte, columns, colors int) ([]byte, error) {
	rowLength := columns*colors + 1
	if rowLength <= 1 {
		return nil, &errPredictor{"PNG predictor requires Columns > 0"}
	}
	if len(data)%rowLength != 0 {
		return nil, &errPredictor{"PNG predictor data is not a multiple of the row length"}
	}
	rows := len(data) / rowLength
	out := make([]byte, 0, rows*(rowLength-1))
	prev := make([]byte, rowLength-1)
	bpp := colors
	for i := 0; i < rows; i++ {
		row := append([]byte(nil), data[i*rowLength+1:(i+1)*rowLength]...)
		tag := data[i*rowLength]
		switch tag {
		case pngNone:
		case pngSub:
			for j := bpp; j < len(row); j++ {
				row[j] += row[j-bpp]
			}
		case pngUp:
			for j := 0; j < len(row); j++ {
				row[j] += prev[j]
			}
		case pngAvg:
			for j := 0; j < len(row); j++ {
				var left byte
				if j >= bpp {
					left = row[j-bpp]
				}
				row[j] += byte((int(left) + int(prev[j])) / 2)
			}
		case pngPaeth:
			for j := 0; j < len(row); j++ {
				var a, c byte
				if j >= bpp {
					a = row[j-bpp]
					c = prev[j-bpp]
				}
				row[j] += paeth(a, prev[j], c)
			}
		default:
			return nil, &errPredictor{"invalid PNG filter-type byte"}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

// predictPNG applies the PNG Sub filter to every row on encode. qpdf-style
// writers only ever need to *produce* predictor 15 (optimal-per-row
// selection) or plain Sub; this encoder always emits Sub (predictor 11),
// the cheapest correct choice.
func predictPNG(data []byte, columns, colors int) ([]byte, error) {
	rowLength := columns * colors
	if rowLength <= 0 {
		return nil, &errPredictor{"PNG predictor requires Columns > 0"}
	}
	if len(data)%rowLength != 0 {
		return nil, &errPredictor{"input is not a multiple of the row length"}
	}
	rows := len(data) / rowLength
	out := make([]byte, 0, rows*(rowLength+1))
	for i := 0; i < rows; i++ {
		row := data[i*rowLength : (i+1)*rowLength]
		filtered := make([]byte, rowLength)
		copy(filtered, row)
		for j := rowLength - 1; j >= colors; j-- {
			filtered[j] = row[j] - row[j-colors]
		}
		out = append(out, pngSub)
		out = append(out, filtered...)
	}
	return out, nil
}

// unpredictTIFF reverses the TIFF horizontal-differencing predictor (value
// 2), run over bytes only (BitsPerComponent==8, the only depth this
// implementation supports).
func unpredictTIFF(data []byte, columns, colors int) ([]byte, error) {
	rowLength := columns * colors
	if rowLength < 1 {
		return []byte{}, nil
	}
	if len(data)%rowLength != 0 {
		return nil, &errPredictor{"TIFF predictor data is not a multiple of the row length"}
	}
	rows := len(data) / rowLength
	out := append([]byte(nil), data...)
	for i := 0; i < rows; i++ {
		row := out[i*rowLength : (i+1)*rowLength]
		for j := colors; j < rowLength; j++ {
			row[j] += row[j-colors]
		}
	}
	return out, nil
}

type errPredictor struct{ msg string }

func (e *errPredictor) Error() string { return "codec: predictor: " + e.msg }

// validPredictor reports whether p is one of the predictor values the PDF
// spec and recognise: 1 (none), 2 (TIFF), or 10-15 (PNG variants,
// collapsed to "apply PNG per-row unfiltering" since the per-row tag byte
// already says which filter was used).
func validPredictor(p int) bool {
	return p == 1 || p == 2 || (p >= 10 && p <= 15)
}
