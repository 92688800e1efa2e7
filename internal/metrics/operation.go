package metrics

import "context"

// UnlabeledOperation is reported for store calls made without an operation on the context.
const UnlabeledOperation = "unlabeled"

type operationKey struct{}

// WithOperation returns a copy of ctx that attributes store round trips to op.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the operation stored on ctx, or UnlabeledOperation.
func OperationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return UnlabeledOperation
}
