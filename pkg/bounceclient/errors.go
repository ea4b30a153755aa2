package bounceclient

import (
	"errors"
	"fmt"
)

// Kind classifies why a client call failed.
type Kind int

const (
	// KindTransport means no response was received.
	KindTransport Kind = iota + 1
	// KindEncode means the request payload could not be serialized; nothing was sent.
	KindEncode
	// KindDecode means the response body did not have the expected shape.
	KindDecode
	// KindServer means a response arrived with a non-2xx status.
	KindServer
)

// Sentinels usable with errors.Is against any *ClientError.
var (
	ErrTransport = errors.New("transport failure")
	ErrEncode    = errors.New("encode failure")
	ErrDecode    = errors.New("decode failure")
	ErrServer    = errors.New("server error")
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindEncode:
		return "encode"
	case KindDecode:
		return "decode"
	case KindServer:
		return "server"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindEncode:
		return ErrEncode
	case KindDecode:
		return ErrDecode
	case KindServer:
		return ErrServer
	default:
		return nil
	}
}

// ClientError is the only error type returned by Client operations.
type ClientError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	switch {
	case e.Kind == KindServer:
		return fmt.Sprintf("bounce api: server responded with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("bounce api: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("bounce api: %s", e.Kind)
	}
}

func (e *ClientError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *ClientError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func transportError(err error) *ClientError { return &ClientError{Kind: KindTransport, Err: err} }
func encodeError(err error) *ClientError    { return &ClientError{Kind: KindEncode, Err: err} }
func decodeError(err error) *ClientError    { return &ClientError{Kind: KindDecode, Err: err} }
func serverError(status int) *ClientError   { return &ClientError{Kind: KindServer, StatusCode: status} }

// KindOf reports the kind of a *ClientError anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return 0, false
	}
	return ce.Kind, true
}

// StatusOf returns the HTTP status carried by a server error.
func StatusOf(err error) (int, bool) {
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindServer {
		return 0, false
	}
	return ce.StatusCode, true
}
