package retry

import "context"

// DoValue is a type-safe wrapper around Retryer.Do for calls that return a value.
//
// Usage:
//
//	reply, err := retry.DoValue(ctx, r, func(ctx context.Context) (string, error) {
//	    return client.Complete(ctx, req)
//	})
func DoValue[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
