package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type adder struct {
	runnables []Runnable
}

func (a *adder) AddToLoop(l *Loop) {
	l.AddRunnable(a.runnables...)
}

func waitCancel(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestLoopStopsOnCancel(t *testing.T) {
	var exits []int
	l := NewLoop().
		Add(&adder{runnables: []Runnable{RunFunc(waitCancel), NamedRun("named", RunFunc(waitCancel))}}).
		OnExit(func() { exits = append(exits, 1) }).
		OnExit(func() { exits = append(exits, 2) })
	require.Len(t, l.Runnables(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- l.Run(ctx) }()
	cancel()
	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
	require.Equal(t, []int{2, 1}, exits)
}

func TestLoopStopsWhenRunnableFails(t *testing.T) {
	failure := errors.New("port gone")
	l := NewLoop().AddRunnable(
		RunFunc(waitCancel),
		RunFunc(func(context.Context) error { return failure }),
	)
	doneCh := make(chan error, 1)
	go func() { doneCh <- l.Run(context.Background()) }()
	select {
	case err := <-doneCh:
		require.Equal(t, failure, err)
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	require.NoError(t, errs.Err())
	errs.Add(nil, errors.New("a"))
	require.Equal(t, "a", errs.Err().Error())
	errs.Add(errors.New("b"))
	require.Equal(t, "Multiple errors:\na\nb", errs.Error())
}

type closer struct {
	closed chan struct{}
}

func (c *closer) Close() error {
	close(c.closed)
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &closer{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.closed
		return nil
	})
	require.Equal(t, context.Canceled, err)

	c = &closer{closed: make(chan struct{})}
	require.NoError(t, RunWithContextCloser(context.Background(), c, func() error { return nil }))
	<-c.closed
}

type iterations struct {
	times []time.Time
	lock  sync.Mutex
}

func (it *iterations) Control(cc ControlContext) error {
	it.lock.Lock()
	defer it.lock.Unlock()
	it.times = append(it.times, cc.Time())
	if len(it.times) == 2 {
		return errors.New("ignored")
	}
	return nil
}

func (it *iterations) count() int {
	it.lock.Lock()
	defer it.lock.Unlock()
	return len(it.times)
}

func TestLoopControllersTickOnInterval(t *testing.T) {
	var it iterations
	var ctxs []context.Context
	l := NewLoop().AddController(&it, ControlFunc(func(cc ControlContext) error {
		ctxs = append(ctxs, cc.Context())
		return nil
	}))
	l.Interval = 20 * time.Millisecond
	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- l.Run(ctx) }()

	// the first iteration does not wait for the interval and a failing
	// controller does not stop the loop.
	require.Eventually(t, func() bool { return it.count() >= 5 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-doneCh)

	it.lock.Lock()
	defer it.lock.Unlock()
	require.True(t, it.times[0].Sub(start) < l.Interval)
	for i := 1; i < len(it.times); i++ {
		require.True(t, it.times[i].After(it.times[i-1]))
	}
	require.Len(t, ctxs, len(it.times))
}

func TestLoopWithoutControllers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, NewLoop().Run(ctx))
}

type runnableController struct {
	started chan struct{}
}

func (c *runnableController) Control(ControlContext) error { return nil }

func (c *runnableController) Run(ctx context.Context) error {
	close(c.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestLoopStartsRunnableControllers(t *testing.T) {
	c := &runnableController{started: make(chan struct{})}
	l := NewLoop().AddController(c)
	require.Len(t, l.Runnables(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() { doneCh <- l.Run(ctx) }()
	<-c.started
	cancel()
	require.NoError(t, <-doneCh)
}

func TestRunnerCollectsErrors(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	r := NewRunner().Go(
		RunFunc(func(context.Context) error { return a }),
		NamedRun("b", RunFunc(func(context.Context) error { return b })),
		RunFunc(func(context.Context) error { return context.Canceled }),
		RunFunc(func(context.Context) error { return nil }),
	)
	require.Len(t, r.Runners, 4)
	err := r.Wait()
	require.Error(t, err)
	errs, ok := err.(Errors)
	require.True(t, ok)
	require.ElementsMatch(t, []error{a, b}, []error(errs))
}

func TestRunnerForcedExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunnerWith(ctx).Go(RunFunc(waitCancel))
	r.forceExit()
	r.forceExit()
	require.Equal(t, ErrForcedExit, r.Wait())
}
