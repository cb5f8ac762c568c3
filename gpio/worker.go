package gpio

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type worker struct {
	line *InputLine
	bl   BackendLine
	deb  *debouncer
}

func (w *worker) run(ctx context.Context) {
	switch w.line.cfg.Strategy {
	case EdgeWait:
		w.waitEdges(ctx)
	default:
		w.poll(ctx)
	}
	w.line.log.Debug("worker stopped", zap.NamedError("reason", ctx.Err()))
}

func (w *worker) poll(ctx context.Context) {
	t := time.NewTicker(w.line.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			w.sample(now)
		}
	}
}

// sample reads the line and feeds the debouncer.
func (w *worker) sample(now time.Time) {
	lvl, err := w.line.raw(w.bl)
	if err != nil {
		w.line.backendErrs.Add(1)
		w.line.log.Warn("read failed", zap.Error(err))
		return
	}
	w.feed(lvl, now)
}

func (w *worker) feed(lvl Level, now time.Time) {
	stable, changed, bounced := w.deb.observe(lvl, now)
	if bounced {
		w.line.bounces.Add(1)
	}
	if !changed {
		return
	}
	w.line.dispatch(Event{
		Address: w.line.addr,
		Name:    w.line.cfg.Name,
		Level:   stable,
		Edge:    edgeTo(stable),
		Time:    now,
	})
}

func (w *worker) waitEdges(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		now := time.Now()
		wait := w.line.cfg.EdgeTick
		if left, ok := w.deb.settleIn(now); ok && left < wait {
			wait = left
		}
		if dl, ok := ctx.Deadline(); ok {
			if rem := dl.Sub(now); rem < wait {
				wait = rem
			}
		}
		if wait < 0 {
			wait = 0
		}

		ev, ok, err := w.bl.WaitForEdge(wait)
		if err != nil {
			w.line.backendErrs.Add(1)
			w.line.log.Warn("edge wait failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.line.cfg.EdgeTick):
			}
			continue
		}
		if !ok {
			// Quiet period: settle pending candidates and catch edges the
			// backend dropped.
			w.sample(time.Now())
			continue
		}
		lvl := ev.Level()
		if w.line.cfg.ActiveLow {
			lvl = lvl.Not()
		}
		at := ev.Time
		if at.IsZero() {
			at = time.Now()
		}
		w.feed(lvl, at)
	}
}
