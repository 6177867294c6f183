package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrInternal is returned by Handler when the source fails for any reason
// other than cancellation.
var ErrInternal = errors.New("failed to retrieve system information")

// Handler serves single-snapshot requests. It calls the source exactly once
// per request and never retries.
type Handler struct {
	source Source
	logger *zap.Logger
}

// NewHandler creates a Handler over source.
func NewHandler(source Source, logger *zap.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

// Source returns the shared snapshot source.
func (h *Handler) Source() Source {
	return h.source
}

// Handle returns one snapshot. Faults, including panics in the source, come
// back wrapped in ErrInternal. If ctx is done the context error is returned
// as is.
func (h *Handler) Handle(ctx context.Context) (snap Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("snapshot source panicked", zap.Any("panic", r))
			snap, err = Snapshot{}, fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
	}()

	snap, err = h.source.Snapshot(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Snapshot{}, ctxErr
		}
		h.logger.Error("error retrieving system information", zap.Error(err))
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return snap, nil
}
