package service

import (
	"errors"
	"fmt"

	"github.com/okian/weekgrid/internal/domain/model"
	"github.com/okian/weekgrid/internal/domain/types"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrDuplicateRequest = errors.New("request already processed")
)

// ConfirmationError is returned when a change would overwrite events and the
// confirmer declined. It matches model.ErrCancelled.
type ConfirmationError struct {
	Message   string
	Conflicts []types.Conflict
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("confirmation required: %s", e.Message)
}

func (e *ConfirmationError) Unwrap() error { return model.ErrCancelled }
