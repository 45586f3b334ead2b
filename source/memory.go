package source

import (
	"bytes"
	"errors"
	"io"
)

// Memory is a Source backed by an in-memory byte slice. Used for
// already-loaded PDF buffers and for content-stream/string sub-parses.
type Memory struct {
	name       string
	data       []byte
	pos        int64
	lastOffset int64
}

// NewMemory wraps data as a Source named name.
func NewMemory(name string, data []byte) *Memory {
	return &Memory{name: name, data: data}
}

// Name implements Source.
func (m *Memory) Name() string { return m.name }

// Length implements Source.
func (m *Memory) Length() (int64, error) { return int64(len(m.data)), nil }

// Tell implements Source.
func (m *Memory) Tell() (int64, error) { return m.pos, nil }

// Seek implements Source.
func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	var np int64
	switch whence {
	case SeekStart:
		np = offset
	case SeekCurrent:
		np = m.pos + offset
	case SeekEnd:
		np = int64(len(m.data)) + offset
	default:
		return 0, errors.New("source: invalid whence")
	}
	if np < 0 {
		return 0, errors.New("source: negative position")
	}
	m.pos = np
	return np, nil
}

// Rewind implements Source.
func (m *Memory) Rewind() error {
	m.pos = 0
	return nil
}

// Read implements Source.
func (m *Memory) Read(out []byte) (int, error) {
	m.lastOffset = m.pos
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(out, m.data[m.pos:])
	m.pos += int64(n)
	if n < len(out) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAt implements io.ReaderAt without disturbing the current position.
func (m *Memory) ReadAt(out []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.New("source: negative offset")
	}
	if offset >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(out, m.data[offset:])
	if n < len(out) {
		return n, io.EOF
	}
	return n, nil
}

// LastOffset implements Source.
func (m *Memory) LastOffset() int64 { return m.lastOffset }

// ReadLine implements Source.
func (m *Memory) ReadLine(max int) (string, error) { return readLineGeneric(m, max) }

// FindAndSkipNextEOL implements Source.
func (m *Memory) FindAndSkipNextEOL() (int64, error) {
	rest := m.data[m.pos:]
	idx := bytes.IndexAny(rest, "\r\n")
	if idx < 0 {
		m.pos = int64(len(m.data))
		return m.pos, nil
	}
	eolStart := m.pos + int64(idx)
	end := eolStart + 1
	if rest[idx] == '\r' && idx+1 < len(rest) && rest[idx+1] == '\n' {
		end++
	}
	m.pos = end
	return end, nil
}

// FindFirst implements Source.
func (m *Memory) FindFirst(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findFirstGeneric(m, needle, offset, length, v)
}

// FindLast implements Source.
func (m *Memory) FindLast(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findLastGeneric(m, needle, offset, length, v)
}
