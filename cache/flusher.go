package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// startFlusher launches the periodic bulk flush when FlushInterval > 0.
// Each tick runs FlushDirty; failures are logged and the dirty entries wait
// for the next tick.
func (c *Coordinator) startFlusher() {
	if c.opt.FlushInterval <= 0 {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	ticker := time.NewTicker(c.opt.FlushInterval)
	go func() {
		defer close(c.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.periodicFlush()
			case <-c.stop:
				return
			}
		}
	}()
}

// stopFlusher signals the flusher and waits for it to exit. Safe to call
// more than once and when no flusher was started.
func (c *Coordinator) stopFlusher() {
	if c.stop == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Coordinator) periodicFlush() {
	ctx := context.Background()
	rep, err := c.FlushDirty(ctx)
	switch {
	case errors.Is(err, ErrClosed):
	case errors.Is(err, ErrPartialFlush):
		// already logged by flushLocked
	case err != nil:
		c.log.LogAttrs(ctx, slog.LevelError, "periodic flush failed",
			slog.Int("attempted", rep.Attempted),
			slog.Any("error", err))
	case rep.Attempted > 0:
		c.log.LogAttrs(ctx, slog.LevelDebug, "periodic flush",
			slog.Int("persisted", rep.Persisted))
	}
}
