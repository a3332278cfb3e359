package trace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StartHeartbeat emits a driver-scope heartbeat every interval until stop is
// called or ctx is done. A unit stuck in lowering shows up as heartbeats
// after its SpanBegin with no SpanEnd. stop waits for the goroutine and may
// be called more than once.
func StartHeartbeat(ctx context.Context, tracer Tracer, interval time.Duration) (stop func()) {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		beat(ctx, tracer, interval)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func beat(ctx context.Context, tracer Tracer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	started := time.Now()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tracer.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    goroutineID(),
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d +%s", n, now.Sub(started).Round(time.Millisecond)),
			})
		}
	}
}
