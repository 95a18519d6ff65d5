package fetcher

// Result represents the outcome of a single fetch operation.
// Workers hand it back to the coordinator, which is the only place an
// error is turned into an error-marked record.
type Result[T any] struct {
	// Key identifies the fetched item, usually the instrument symbol.
	Key string

	// Value is the fetched data. It must be ignored when Err is set.
	Value T

	// Err is the failure, if any. It is usually a *FetchError.
	Err error
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
