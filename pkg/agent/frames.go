package agent

import (
	"context"
	"time"

	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

// DefaultFrameInterval is the pause between two frame captures.
const DefaultFrameInterval = 500 * time.Millisecond

// FrameSource is what the frame loop samples.
type FrameSource interface {
	Screenshot(ctx context.Context) ([]byte, bool)
	CurrentURL(ctx context.Context) string
}

// FrameLoop periodically publishes screenshots of a session.
type FrameLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartFrameLoop captures a frame immediately and then every interval until
// Stop is called or ctx ends. Capture failures are skipped.
func StartFrameLoop(ctx context.Context, src FrameSource, interval time.Duration, emit types.EventEmitter, m *metrics.Metrics) *FrameLoop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	f := &FrameLoop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if image, ok := src.Screenshot(ctx); ok && ctx.Err() == nil {
				emit(types.NewFrameEvent(image, src.CurrentURL(ctx)))
				m.FramePublished()
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return f
}

// Stop cancels the loop and blocks until its goroutine has exited, so no
// capture is in flight afterwards.
func (f *FrameLoop) Stop() {
	f.cancel()
	<-f.done
}
