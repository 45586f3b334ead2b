package source

import (
	"errors"
	"io"
)

// SubRange is a bounded window onto another Source, used to hand the
// tokeniser/parser a view that cannot read past a stream's declared extent
// (or past a linearisation first-page boundary) without re-slicing the
// underlying bytes.
type SubRange struct {
	parent     Source
	base       int64
	length     int64
	pos        int64
	lastOffset int64
}

// NewSubRange creates a view of parent covering [base, base+length).
func NewSubRange(parent Source, base, length int64) *SubRange {
	return &SubRange{parent: parent, base: base, length: length}
}

// Name implements Source.
func (s *SubRange) Name() string { return s.parent.Name() }

// Length implements Source.
func (s *SubRange) Length() (int64, error) { return s.length, nil }

// Tell implements Source.
func (s *SubRange) Tell() (int64, error) { return s.pos, nil }

// Seek implements Source.
func (s *SubRange) Seek(offset int64, whence int) (int64, error) {
	var np int64
	switch whence {
	case SeekStart:
		np = offset
	case SeekCurrent:
		np = s.pos + offset
	case SeekEnd:
		np = s.length + offset
	default:
		return 0, errors.New("source: invalid whence")
	}
	if np < 0 {
		return 0, errors.New("source: negative position")
	}
	s.pos = np
	return np, nil
}

// Rewind implements Source.
func (s *SubRange) Rewind() error {
	s.pos = 0
	return nil
}

// Read implements Source.
func (s *SubRange) Read(out []byte) (int, error) {
	s.lastOffset = s.pos
	n, err := s.ReadAt(out, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt, clamping to the sub-range's bound.
func (s *SubRange) ReadAt(out []byte, offset int64) (int, error) {
	if offset >= s.length {
		return 0, io.EOF
	}
	room := s.length - offset
	if int64(len(out)) > room {
		out = out[:room]
	}
	n, err := s.parent.ReadAt(out, s.base+offset)
	if n < len(out) && err == nil {
		err = io.EOF
	}
	return n, err
}

// LastOffset implements Source.
func (s *SubRange) LastOffset() int64 { return s.lastOffset }

// ReadLine implements Source.
func (s *SubRange) ReadLine(max int) (string, error) { return readLineGeneric(s, max) }

// FindAndSkipNextEOL implements Source.
func (s *SubRange) FindAndSkipNextEOL() (int64, error) {
	buf := make([]byte, 4096)
	pos := s.pos
	for pos < s.length {
		n, _ := s.ReadAt(buf, pos)
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			if buf[i] == '\r' || buf[i] == '\n' {
				end := pos + int64(i) + 1
				if buf[i] == '\r' && i+1 < n && buf[i+1] == '\n' {
					end++
				}
				s.pos = end
				return end, nil
			}
		}
		pos += int64(n)
	}
	s.pos = s.length
	return s.pos, nil
}

// FindFirst implements Source.
func (s *SubRange) FindFirst(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findFirstGeneric(s, needle, offset, length, v)
}

// FindLast implements Source.
func (s *SubRange) FindLast(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findLastGeneric(s, needle, offset, length, v)
}
