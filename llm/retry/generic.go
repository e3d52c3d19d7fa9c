package retry

import "context"

// DoTyped is DoWithResult without the type assertion at the call site.
func DoTyped[T any](ctx context.Context, r Retryer, fn func() (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
