package webpexport

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/deepteams/webpexport/codec"
)

var (
	// ErrNoLayers is returned when an export is requested without layers.
	ErrNoLayers = errors.New("webpexport: no layers to export")
	// ErrNoFramesEncoded is returned when every frame of an animation failed.
	// The (empty) animation is still written.
	ErrNoFramesEncoded = errors.New("webpexport: no animation frame could be encoded")
	// ErrBufferSize is returned when a pixel buffer cannot be allocated or
	// does not match its declared geometry.
	ErrBufferSize = errors.New("webpexport: invalid pixel buffer size")
)

// Domain groups errors by the stage that produced them.
type Domain string

const (
	DomainFile   Domain = "file"   // opening or writing the destination
	DomainEncode Domain = "encode" // the codec; Code is a codec.ErrorCode
	DomainMux    Domain = "mux"    // metadata injection, never fatal
	DomainExport Domain = "export" // orchestration preconditions
	DomainMemory Domain = "memory" // pixel buffer allocation
	DomainLayer  Domain = "layer"  // reading a layer from its Source
)

// Error is the error detail of a failed export: a domain, a domain-specific
// code and a message for the user.
type Error struct {
	Domain  Domain
	Code    int
	Message string
	Err     error
}

// Error returns the message. For DomainEncode this is exactly the codec's
// fixed text, such as "user aborted encoding".
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Display formats the error for an end user.
func (e *Error) Display() string {
	if e.Domain == DomainEncode {
		return fmt.Sprintf("WebP error: '%s'", e.Message)
	}
	return e.Message
}

func encodeError(err error) *Error {
	code := codec.CodeOf(err)
	return &Error{Domain: DomainEncode, Code: int(code), Message: code.String(), Err: err}
}

func memoryError(err error) *Error {
	return &Error{Domain: DomainMemory, Code: int(codec.OutOfMemory), Message: err.Error(), Err: err}
}

func muxError(err error) *Error {
	return &Error{Domain: DomainMux, Message: "mux: " + err.Error(), Err: err}
}

func exportError(sentinel error) *Error {
	return &Error{Domain: DomainExport, Message: sentinel.Error(), Err: sentinel}
}

func openError(path string, err error) *Error {
	return &Error{Domain: DomainFile, Code: errnoOf(err), Err: err,
		Message: fmt.Sprintf("Could not open '%s' for writing: %s", path, causeOf(err))}
}

func writeError(path string, err error) *Error {
	return &Error{Domain: DomainFile, Code: errnoOf(err), Err: err,
		Message: fmt.Sprintf("Could not write '%s': %s", path, causeOf(err))}
}

// errnoOf returns the OS error number carried by err, or 0.
func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

// causeOf strips the *PathError prefix, which repeats the path.
func causeOf(err error) error {
	if u := errors.Unwrap(err); u != nil {
		return u
	}
	return err
}

// asError classifies err into the export error taxonomy.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var ce *codec.Error
	switch {
	case errors.Is(err, ErrBufferSize):
		return memoryError(err)
	case errors.As(err, &ce):
		return encodeError(err)
	}
	return &Error{Domain: DomainLayer, Message: err.Error(), Err: err}
}

// isFatalFrameError reports errors that abort an animation regardless of
// policy.
func isFatalFrameError(err error) bool {
	e := asError(err)
	switch {
	case e.Domain == DomainMemory:
		return true
	case e.Domain == DomainEncode:
		code := codec.ErrorCode(e.Code)
		return code == codec.UserAbort || code == codec.OutOfMemory
	}
	return false
}
