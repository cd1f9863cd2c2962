package port

import (
	"context"

	"sift_client/internal/domain/entity"
)

// Confirmer obtains user approval and an unlock credential for a transaction.
// Returning an error is treated the same as a cancellation.
type Confirmer interface {
	Confirm(ctx context.Context, req entity.ConfirmationRequest) (entity.Confirmation, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, req entity.ConfirmationRequest) (entity.Confirmation, error)

// Confirm calls f.
func (f ConfirmerFunc) Confirm(ctx context.Context, req entity.ConfirmationRequest) (entity.Confirmation, error) {
	return f(ctx, req)
}
