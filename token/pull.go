package token

import (
	"io"

	"github.com/qpdf-go/qpdfcore/source"
)

// ReadToken reads one token from src starting at its current position
// (pull mode). context is used only for error messages. allowBad
// lets the caller accept a Bad token instead of treating it as fatal;
// maxLen bounds accumulated token length (0 means unbounded). After a
// successful read, src.Tell() is just past the token. ReadToken reads
// through ReadAt and Seek only, so src's LastOffset is left unchanged.
func ReadToken(src source.Source, context string, allowBad bool, maxLen int) (Token, error) {
	start, err := src.Tell()
	if err != nil {
		return Token{}, err
	}

	lex := NewLexer()
	lex.AllowEOF()
	if maxLen > 0 {
		lex.SetMaxLen(maxLen)
	}

	buf := make([]byte, 1)
	pos := start
	for {
		n, rerr := src.ReadAt(buf, pos)
		if n == 0 {
			lex.PresentEOF()
		} else {
			pos++
			lex.PresentCharacter(buf[0])
		}
		if tok, ready, needsUnread, _ := lex.GetToken(); ready {
			if needsUnread {
				pos--
			}
			if _, serr := src.Seek(pos, source.SeekStart); serr != nil {
				return Token{}, serr
			}
			if tok.Kind == Bad && !allowBad {
				return tok, &BadTokenError{Context: context, Message: tok.ErrorMessage, Offset: start}
			}
			return tok, nil
		}
		if n == 0 && rerr != nil && rerr != io.EOF {
			return Token{}, rerr
		}
		if n == 0 {
			// PresentEOF always produces a token (EOF or Bad); unreachable.
			break
		}
	}
	return Token{}, io.ErrUnexpectedEOF
}

// BadTokenError reports a Bad token surfaced from pull-mode ReadToken when
// the caller did not opt into allowBad.
type BadTokenError struct {
	Context string
	Message string
	Offset  int64
}

func (e *BadTokenError) Error() string {
	return "token: " + e.Context + ": " + e.Message
}

// Filter is a token-rewriting interface: an implementation is fed one
// token at a time, HandleToken's returned bytes (if any) stand in for the
// token in the output, and HandleEOF's returned bytes are appended once
// input is exhausted. Only the interface is defined here; no package in
// this module drives a Filter, and stream data is never passed through one.
type Filter interface {
	HandleToken(tok Token) []byte
	HandleEOF() []byte
}
