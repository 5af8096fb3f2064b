package binding

import (
	"errors"
	"fmt"
)

// Kind classifies binding failures
type Kind int

const (
	KindUnknown Kind = iota
	// KindAcquire is a failed resource acquisition: descriptor, mapping, pixel lock
	KindAcquire
	// KindLoad is the engine failing to load a document or page
	KindLoad
	// KindContract is a caller contract violation
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindAcquire:
		return "acquire"
	case KindLoad:
		return "load"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

var (
	ErrBadHandle   = errors.New("unknown handle")
	ErrClosed      = errors.New("already closed")
	ErrEmptyFile   = errors.New("file is empty")
	ErrPixelFormat = errors.New("pixel buffer must be RGBA_8888")
	ErrBufferSize  = errors.New("pixel buffer too small for its geometry")
	ErrCharIndex   = errors.New("character index out of range")
	ErrRange       = errors.New("text range out of bounds")
	ErrUnsupported = errors.New("descriptor mapping not supported on this platform")
)

// Error is a failed binding operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdfbind: %s: %v", e.Op, e.Err)
	}
	return "pdfbind: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
