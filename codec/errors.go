package codec

import "errors"

// ErrorCode enumerates the failures an encode can report. The values follow
// libwebp's WebPEncodingError, starting at 1.
type ErrorCode int

const (
	OutOfMemory ErrorCode = iota + 1
	BitstreamOutOfMemory
	NullParameter
	InvalidConfiguration
	BadDimension
	Partition0Overflow
	PartitionOverflow
	BadWrite
	FileTooBig
	UserAbort
	Unknown
)

// String returns the fixed human-readable message for the code.
func (c ErrorCode) String() string {
	switch c {
	case OutOfMemory:
		return "out of memory"
	case BitstreamOutOfMemory:
		return "not enough memory to flush bits"
	case NullParameter:
		return "NULL parameter"
	case InvalidConfiguration:
		return "invalid configuration"
	case BadDimension:
		return "bad image dimensions"
	case Partition0Overflow:
		return "partition is bigger than 512K"
	case PartitionOverflow:
		return "partition is bigger than 16M"
	case BadWrite:
		return "unable to flush bytes"
	case FileTooBig:
		return "file is larger than 4GiB"
	case UserAbort:
		return "user aborted encoding"
	default:
		return "unknown error"
	}
}

// Error is an encode failure. Error() is exactly the code's message; the
// underlying cause, if any, is available through Unwrap.
type Error struct {
	Code ErrorCode
	Err  error
}

// Error returns the fixed message of the code.
func (e *Error) Error() string {
	return e.Code.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so that
// errors.Is(err, &codec.Error{Code: codec.UserAbort}) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// CodeOf returns the ErrorCode carried by err, Unknown for other non-nil
// errors and 0 for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
