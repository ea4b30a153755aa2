package bounceclient

// Result is the outcome delivered by the async operations: either Value or Err.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// async runs fn in its own goroutine. The returned channel yields exactly one
// Result and is then closed.
func async[T any](fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := fn()
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Then invokes fn with the single result from ch on a background goroutine.
// Moving the result onto a UI thread is up to fn.
func Then[T any](ch <-chan Result[T], fn func(Result[T])) {
	if fn == nil {
		return
	}
	go func() {
		fn(<-ch)
	}()
}
