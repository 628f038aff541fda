package drive

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ctx carries the per-request logger and request id through every call that
// crosses the Directory/DirectoryHandler/Store boundaries, the way a
// context.Context carries cancellation. It is passed explicitly rather than
// folded into context.Context because every call site here also wants a
// structured logger, not just deadline/cancellation plumbing.
type Ctx struct {
	context.Context
	Log       *zap.Logger
	RequestId uuid.UUID
}

// NewCtx derives a Ctx from a context.Context and a base logger, stamping a
// fresh request id that ties together every log line for one logical
// operation (a single FUSE call, a single CLI invocation).
func NewCtx(parent context.Context, log *zap.Logger) *Ctx {
	id := uuid.New()
	return &Ctx{
		Context:   parent,
		RequestId: id,
		Log:       log.With(zap.String("request_id", id.String())),
	}
}
