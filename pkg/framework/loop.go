package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the loop interval unless changed.
const DefaultInterval = 100 * time.Millisecond

// Loop hosts the components of one process. Runnables run in their own
// goroutines, Controllers are invoked from a single goroutine once per
// Interval, first right after start.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	runners     []Runnable
	closers     []func()
}

type loopIteration struct {
	ctx  context.Context
	time time.Time
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers. A controller which is also a
// Runnable gets started as well.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementations.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// OnExit registers a func called after all Runnables stopped,
// in reverse order of registration.
func (l *Loop) OnExit(fn func()) *Loop {
	l.closers = append(l.closers, fn)
	return l
}

// Runnables returns the registered Runnables.
func (l *Loop) Runnables() []Runnable {
	return l.runners
}

// Run implements Runnable. It returns once every Runnable stopped.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(NewRunnerWith(ctx))
}

func (l *Loop) run(runner *Runner) error {
	ctx, cancel := context.WithCancel(runner.Context)
	defer cancel()
	runner.Context = ctx
	runner.Go(NamedRun("loop", RunFunc(l.tick)))
	// any Runnable stopping brings down the rest.
	for _, r := range l.runners {
		runner.Go(stopOnExit(r, cancel))
	}
	err := runner.Wait()
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
	return err
}

func (l *Loop) tick(ctx context.Context) error {
	if len(l.controllers) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := time.Now(); ctx.Err() == nil; {
		l.runIteration(ctx, now)
		select {
		case <-ctx.Done():
		case now = <-ticker.C:
		}
	}
	return ctx.Err()
}

func (l *Loop) runIteration(ctx context.Context, now time.Time) {
	iter := &loopIteration{ctx: ctx, time: now}
	for _, ctl := range l.controllers {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

func stopOnExit(r Runnable, cancel func()) Runnable {
	fn := RunFunc(func(ctx context.Context) error {
		defer cancel()
		return r.Run(ctx)
	})
	if named, ok := r.(Named); ok {
		return NamedRun(named.Name(), fn)
	}
	return fn
}

// RunOrFail is intended to be used in main to simply run the loop
// until SIGINT/SIGTERM.
func (l *Loop) RunOrFail() {
	if err := l.run(NewRunner().HandleSignals()); err != nil {
		glog.Exitln(err)
	}
}
