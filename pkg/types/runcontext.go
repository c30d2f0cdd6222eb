package types

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunContext carries everything that would otherwise live in module-level
// globals (current execution ID, logger, options) explicitly through every
// component, per the design note on removing global process-wide state.
type RunContext struct {
	ExecutionID string
	StartTime   time.Time
	RepoPath    string
	RepoURL     string
	Archetype   string
	LogPrefix   string
	MaxWorkers  int

	Logger zerolog.Logger
	Ctx    context.Context
}

// NewRunContext builds a RunContext with a fresh execution ID and the
// current time as its start time.
func NewRunContext(ctx context.Context, logger zerolog.Logger) *RunContext {
	return &RunContext{
		ExecutionID: uuid.NewString(),
		StartTime:   time.Now(),
		Logger:      logger,
		Ctx:         ctx,
	}
}

// Cancelled reports whether the run's context has been cancelled.
func (r *RunContext) Cancelled() bool {
	select {
	case <-r.Ctx.Done():
		return true
	default:
		return false
	}
}
