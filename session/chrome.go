package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/profiler"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/pithecene-io/covered/iox"
	"github.com/pithecene-io/covered/types"
)

// closeWait bounds how long Close waits for the page target to close.
const closeWait = 2 * time.Second

// Logf is a printf-style sink for chromedp diagnostics.
type Logf func(format string, args ...any)

// Option configures a Chrome session.
type Option func(*chromeOptions)

type chromeOptions struct {
	logf   Logf
	errorf Logf
}

// WithLogf routes chromedp informational logs.
func WithLogf(f Logf) Option {
	return func(o *chromeOptions) { o.logf = f }
}

// WithErrorf routes chromedp error logs.
func WithErrorf(f Logf) Option {
	return func(o *chromeOptions) { o.errorf = f }
}

// Chrome is a Session backed by chromedp, attached to a browser that is
// already listening on a DevTools port. It opens its own page target.
type Chrome struct {
	ctx         context.Context // chromedp target context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	// closeTarget closes the page target and waits until it is gone.
	closeTarget func() error
	closeWait   time.Duration
	target      cdp.Executor

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the browser at host:port. The endpoint's
// /json/version document is used to discover the browser websocket.
// The session outlives ctx; only Close releases it.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Chrome, error) {
	o := chromeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := fmt.Sprintf("ws://%s:%d/", host, port)
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), endpoint)

	var ctxOpts []chromedp.ContextOption
	if o.logf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(o.logf))
	}
	if o.errorf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithErrorf(o.errorf))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, ctxOpts...)

	c := &Chrome{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		closeTarget: func() error { return chromedp.Cancel(tabCtx) },
		closeWait:   closeWait,
	}

	// The first Run allocates the target; bound it by the caller's ctx.
	connected := make(chan error, 1)
	go func() { connected <- chromedp.Run(tabCtx) }()

	var err error
	select {
	case err = <-connected:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		iox.DiscardClose(c)
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	cc := chromedp.FromContext(tabCtx)
	if cc == nil || cc.Target == nil {
		iox.DiscardClose(c)
		return nil, &ConnectError{Endpoint: endpoint, Err: errors.New("no page target attached")}
	}
	c.target = cc.Target
	return c, nil
}

// NewDialer returns a Dialer that creates Chrome sessions with opts.
func NewDialer(opts ...Option) Dialer {
	return func(ctx context.Context, host string, port int) (Session, error) {
		return Dial(ctx, host, port, opts...)
	}
}

// exec runs fn with the page target as executor, bounded by ctx.
func (c *Chrome) exec(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := fn(cdp.WithExecutor(ctx, c.target)); err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	return nil
}

// EnablePage enables the Page domain.
func (c *Chrome) EnablePage(ctx context.Context) error {
	return c.exec(ctx, page.CommandEnable, page.Enable().Do)
}

// EnableProfiler enables the Profiler domain.
func (c *Chrome) EnableProfiler(ctx context.Context) error {
	return c.exec(ctx, profiler.CommandEnable, profiler.Enable().Do)
}

// EnableRuntime enables the Runtime domain, which starts console events.
func (c *Chrome) EnableRuntime(ctx context.Context) error {
	return c.exec(ctx, runtime.CommandEnable, runtime.Enable().Do)
}

// OnConsole registers handler for Runtime.consoleAPICalled.
func (c *Chrome) OnConsole(handler ConsoleHandler) {
	chromedp.ListenTarget(c.ctx, func(ev any) {
		if e, ok := ev.(*runtime.EventConsoleAPICalled); ok {
			handler(toConsoleEvent(e))
		}
	})
}

// StartPreciseCoverage starts precise coverage recording.
func (c *Chrome) StartPreciseCoverage(ctx context.Context, opts CoverageOptions) error {
	params := profiler.StartPreciseCoverage().
		WithCallCount(opts.CallCount).
		WithDetailed(opts.Detailed)
	return c.exec(ctx, profiler.CommandStartPreciseCoverage, func(ctx context.Context) error {
		return cdp.Execute(ctx, profiler.CommandStartPreciseCoverage, params, nil)
	})
}

// TakePreciseCoverage collects coverage for every script loaded so far.
func (c *Chrome) TakePreciseCoverage(ctx context.Context) (types.CoverageSnapshot, error) {
	var result []*profiler.ScriptCoverage
	err := c.exec(ctx, profiler.CommandTakePreciseCoverage, func(ctx context.Context) error {
		var err error
		result, _, err = profiler.TakePreciseCoverage().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toSnapshot(result), nil
}

// StopPreciseCoverage stops recording and discards collected counters.
func (c *Chrome) StopPreciseCoverage(ctx context.Context) error {
	return c.exec(ctx, profiler.CommandStopPreciseCoverage, profiler.StopPreciseCoverage().Do)
}

// Navigate asks the page to load url without waiting for the load event.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.exec(ctx, page.CommandNavigate, func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigation to %s failed: %s", url, res.ErrorText)
		}
		return nil
	})
}

// Close closes the page target Dial opened, waiting up to closeWait for
// the browser to drop it, then disconnects. On a remote allocator
// chromedp.Cancel closes only this tab; the browser keeps running. Safe to
// call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.closeErr = fmt.Errorf("close session: panic: %v", r)
			}
		}()
		defer c.cancelAlloc()
		c.closeErr = c.awaitTargetClosed()
	})
	return c.closeErr
}

func (c *Chrome) awaitTargetClosed() error {
	done := make(chan error, 1)
	go func() { done <- c.closeTarget() }()

	timer := time.NewTimer(c.closeWait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("close session: %w", err)
		}
		return nil
	case <-timer.C:
		c.cancelTab()
		return fmt.Errorf("close session: page target still open after %s", c.closeWait)
	}
}

func toSnapshot(scripts []*profiler.ScriptCoverage) types.CoverageSnapshot {
	snapshot := make(types.CoverageSnapshot, 0, len(scripts))
	for _, s := range scripts {
		if s == nil {
			continue
		}
		sc := types.ScriptCoverage{
			ScriptID:  string(s.ScriptID),
			URL:       s.URL,
			Functions: make([]types.FunctionCoverage, 0, len(s.Functions)),
		}
		for _, fn := range s.Functions {
			if fn == nil {
				continue
			}
			fc := types.FunctionCoverage{
				FunctionName:    fn.FunctionName,
				IsBlockCoverage: fn.IsBlockCoverage,
				Ranges:          make([]types.CoverageRange, 0, len(fn.Ranges)),
			}
			for _, r := range fn.Ranges {
				if r == nil {
					continue
				}
				fc.Ranges = append(fc.Ranges, types.CoverageRange{
					StartOffset: r.StartOffset,
					EndOffset:   r.EndOffset,
					Count:       r.Count,
				})
			}
			sc.Functions = append(sc.Functions, fc)
		}
		snapshot = append(snapshot, sc)
	}
	return snapshot
}

// Verify Chrome implements Session.
var _ Session = (*Chrome)(nil)
