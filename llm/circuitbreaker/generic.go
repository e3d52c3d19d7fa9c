package circuitbreaker

import "context"

// CallTyped is CallWithResult without the type assertion at the call site.
func CallTyped[T any](ctx context.Context, cb CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := cb.CallWithResult(ctx, func(ctx context.Context) (any, error) { return fn(ctx) })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
