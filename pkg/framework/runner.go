package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches a name to runnable, used in logs.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func nameOf(r Runnable, index int) string {
	if named, ok := r.(Named); ok {
		return named.Name()
	}
	return "#" + strconv.Itoa(index)
}

type result struct {
	name string
	err  error
}

// Runner starts Runnables in their own goroutines and gathers what they
// return. All Runnables share Context.
type Runner struct {
	Context context.Context
	Runners []Runnable

	results chan result
	forced  chan struct{}
	force   sync.Once
}

// NewRunner returns a Runner on context.Background.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith returns a Runner on ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		results: make(chan result),
		forced:  make(chan struct{}),
	}
}

// HandleSignals cancels Context on the first SIGINT or SIGTERM. A second
// one makes Wait give up with ErrForcedExit.
func (r *Runner) HandleSignals() *Runner {
	ctx, stop := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		stop()
		sig = <-sigCh
		signal.Stop(sigCh)
		glog.Errorf("%v again: force exit", sig)
		r.forceExit()
	}()
	return r
}

func (r *Runner) forceExit() {
	r.force.Do(func() { close(r.forced) })
}

// Go starts each Runnable with Context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := nameOf(runnable, len(r.Runners))
		r.Runners = append(r.Runners, runnable)
		go r.run(r.Context, name, runnable)
	}
	return r
}

func (r *Runner) run(ctx context.Context, name string, runnable Runnable) {
	glog.V(4).Infof("%s: started", name)
	err := runnable.Run(ctx)
	r.results <- result{name: name, err: err}
}

// Wait blocks until every started Runnable returned. context.Canceled is
// the normal way to stop and is not reported.
func (r *Runner) Wait() error {
	var errs Errors
	for remaining := len(r.Runners); remaining > 0; remaining-- {
		var res result
		select {
		case <-r.forced:
			return ErrForcedExit
		case res = <-r.results:
		}
		if res.err == nil || res.err == context.Canceled {
			glog.V(4).Infof("%s: stopped", res.name)
			continue
		}
		glog.Errorf("%s: %v", res.name, res.err)
		errs.Add(res.err)
	}
	return errs.Err()
}

// RunWithContextCancel adapts a blocking fn without context support. When
// ctx is done first, onCancel must make fn return. The result is then
// context.Canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-done
	return context.Canceled
}

// RunWithContextCloser runs fn and closes closer exactly once, on cancel or
// after fn returned. Closing is how blocked port reads get released.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() {
		once.Do(func() {
			if err := closer.Close(); err != nil {
				glog.V(2).Infof("close: %v", err)
			}
		})
	}
	defer closeOnce()
	return RunWithContextCancel(ctx, closeOnce, fn)
}
