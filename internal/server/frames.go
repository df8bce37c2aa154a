package server

import (
	"context"
	"sync"
	"time"
)

// maxFrameSteps caps the delta handed to a frame after a stall.
const maxFrameSteps = 10

type frameTicker interface {
	tickFrame(delta time.Duration) error
}

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// frameLoop calls its target once per tick with the elapsed time, clamped so a
// stalled process does not teleport the skier. The loop stops on the first
// error the target returns.
type frameLoop struct {
	target    frameTicker
	tick      time.Duration
	wg        sync.WaitGroup
	newTicker tickerFactory
	now       timeSource
	err       error
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func newFrameLoop(target frameTicker, tick time.Duration) *frameLoop {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &frameLoop{
		target:    target,
		tick:      tick,
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

func (l *frameLoop) Start(ctx context.Context) {
	if l == nil || l.target == nil {
		return
	}
	l.wg.Add(1)
	go l.run(ctx)
}

func (l *frameLoop) run(ctx context.Context) {
	defer l.wg.Done()
	if l.newTicker == nil {
		l.newTicker = defaultTickerFactory()
	}
	if l.now == nil {
		l.now = time.Now
	}

	tickerC, stop := l.newTicker(l.tick)
	defer stop()

	last := l.now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tickerC:
			delta := now.Sub(last)
			if delta <= 0 {
				delta = l.tick
			} else if delta > maxFrameSteps*l.tick {
				// A stall advances by at most maxFrameSteps ticks.
				delta = maxFrameSteps * l.tick
			}
			last = now
			if err := l.target.tickFrame(delta); err != nil {
				l.err = err
				return
			}
		}
	}
}

// Wait blocks until the loop exits and returns the error that stopped it.
func (l *frameLoop) Wait() error {
	if l == nil {
		return nil
	}
	l.wg.Wait()
	return l.err
}
