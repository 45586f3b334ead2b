package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/source"
)

func readAll(t *testing.T, data []byte) []Token {
	t.Helper()
	src := source.NewMemory("test", data)
	var toks []Token
	for {
		tok, err := ReadToken(src, "test", false, 0)
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func TestTokeniseBasics(t *testing.T) {
	toks := readAll(t, []byte("42 3.14 /Name (lit) <48656C6C6F> true false null [ ] << >> foo"))
	kinds := make([]Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	require.Equal(t, []Kind{
		Integer, Real, Name, String, String, Bool, Bool, Null,
		ArrayOpen, ArrayClose, DictOpen, DictClose, Word, EOF,
	}, kinds)
}

func TestHexStringOddNibble(t *testing.T) {
	toks := readAll(t, []byte("<48656C6C6F0>"))
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, "Hello\x00", string(toks[0].Value))
}

func TestLiteralStringEscapes(t *testing.T) {
	toks := readAll(t, []byte(`(a\nb\tc\(d\)e\\f)`))
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, "a\nb\tc(d)e\\f", string(toks[0].Value))
}

func TestLiteralStringOctalEscape(t *testing.T) {
	toks := readAll(t, []byte(`(\101\102)`))
	require.Equal(t, "AB", string(toks[0].Value))
}

func TestNameHexEscape(t *testing.T) {
	toks := readAll(t, []byte("/A#42C"))
	require.Equal(t, Name, toks[0].Kind)
	require.Equal(t, "ABC", string(toks[0].Value))
}

func TestNestedParens(t *testing.T) {
	toks := readAll(t, []byte("(a(b)c)"))
	require.Equal(t, "a(b)c", string(toks[0].Value))
}

func TestTokenTooLong(t *testing.T) {
	src := source.NewMemory("test", []byte("123456789"))
	_, err := ReadToken(src, "test", false, 3)
	require.Error(t, err)
}

func TestTokenTooLongAllowBad(t *testing.T) {
	src := source.NewMemory("test", []byte("123456789"))
	tok, err := ReadToken(src, "test", true, 3)
	require.NoError(t, err)
	require.Equal(t, Bad, tok.Kind)
}

func TestInlineImageScan(t *testing.T) {
	lex := NewLexer()
	lex.ExpectInlineImage()
	data := []byte("\x00\x01\x02 EI")
	var got Token
	for _, c := range data {
		lex.PresentCharacter(c)
		if tok, ready, _, _ := lex.GetToken(); ready {
			got = tok
			break
		}
	}
	require.Equal(t, InlineImage, got.Kind)
	require.Equal(t, []byte{0, 1, 2}, got.Value)
}
