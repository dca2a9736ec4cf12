package overlap

import "context"

// Confirmer asks the user whether a destructive change may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// Always confirms every prompt.
func Always() Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return true })
}

// Never declines every prompt.
func Never() Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return false })
}
