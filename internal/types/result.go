package types

// Result is the outcome of one independent unit of work: a listing page,
// an article or a single image. Failures are carried as data so that the
// caller can aggregate successes and log the rest.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failed wraps a failure reason.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// IsOK reports whether the unit succeeded.
func (r Result[T]) IsOK() bool { return r.Err == nil }
