package resource

import (
	"context"
	"io"
)

// ThrottledWriter wraps an io.Writer and paces writes through the
// controller's IO limiter. With a nil controller or no configured limit it
// degrades to a plain pass-through.
type ThrottledWriter struct {
	ctx  context.Context
	ctrl *Controller
	w    io.Writer
}

// NewThrottledWriter returns a writer pacing w through ctrl.
func NewThrottledWriter(ctx context.Context, ctrl *Controller, w io.Writer) *ThrottledWriter {
	return &ThrottledWriter{ctx: ctx, ctrl: ctrl, w: w}
}

func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	if err := tw.ctrl.WaitIO(tw.ctx, len(p)); err != nil {
		return 0, err
	}
	return tw.w.Write(p)
}
