// Package browser provides the automated transport: headless Chrome sessions
// driven over the DevTools protocol with chromedp.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/donaldgifford/discount-notifier/internal/collector"
	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/metrics"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// Session is one automated browser session. It fetches pages like a direct
// transport and must be closed on every exit path. Close is idempotent.
type Session interface {
	collector.Transport
	Close() error
}

// Factory opens sessions for a source. The session lives no longer than ctx.
type Factory interface {
	NewSession(ctx context.Context, src config.SourceConfig) (Session, error)
}

// Launcher starts headless Chrome sessions.
type Launcher struct {
	cfg       config.BrowserConfig
	userAgent string
	log       *slog.Logger
}

// LauncherOption configures the Launcher.
type LauncherOption func(*Launcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LauncherOption {
	return func(la *Launcher) {
		la.log = l
	}
}

// WithUserAgent sets the default browser User-Agent.
func WithUserAgent(ua string) LauncherOption {
	return func(la *Launcher) {
		la.userAgent = ua
	}
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg config.BrowserConfig, opts ...LauncherOption) *Launcher {
	l := &Launcher{cfg: cfg}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// allocatorOptions returns the Chrome flags for a session.
func (l *Launcher) allocatorOptions(src config.SourceConfig) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+6)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.HeadlessEnabled()),
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)

	ua := src.UserAgent
	if ua == "" {
		ua = l.userAgent
	}
	if ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// NewSession launches a browser for src. The browser process is bound to
// ctx and is torn down when ctx ends or Close is called.
func (l *Launcher) NewSession(ctx context.Context, src config.SourceConfig) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions(src)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.log.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	s := &chromeSession{
		tabCtx:       tabCtx,
		tabCancel:    tabCancel,
		allocCancel:  allocCancel,
		maxPages:     l.cfg.MaxPages,
		renderWait:   l.cfg.RenderWait,
		waitSelector: src.WaitSelector,
		log:          l.log.With("retailer", src.Name),
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			s.lastStatus.Store(e.Response.Status)
		}
	})

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, &domain.AutomationError{Stage: "start", Err: err}
	}

	metrics.BrowserSessionsActive.Inc()
	s.log.Debug("browser session started")
	return s, nil
}

type chromeSession struct {
	tabCtx      context.Context //nolint:containedctx // chromedp tab handle
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	maxPages     int
	renderWait   time.Duration
	waitSelector string
	log          *slog.Logger

	mu         sync.Mutex
	pages      int
	lastStatus atomic.Int64
	closeOnce  sync.Once
	closed     atomic.Bool
}

func (*chromeSession) Mode() domain.TransportMode { return domain.TransportAutomated }

// Fetch navigates the tab to url and returns the rendered document. A
// session serves at most maxPages pages.
func (s *chromeSession) Fetch(ctx context.Context, url string) (*collector.Page, error) {
	if s.closed.Load() {
		return nil, &domain.AutomationError{Stage: "navigate", Err: context.Canceled}
	}

	s.mu.Lock()
	if s.maxPages > 0 && s.pages >= s.maxPages {
		s.mu.Unlock()
		return nil, collector.ErrPageBudgetExhausted
	}
	s.pages++
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.lastStatus.Store(0)
	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if s.waitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(s.waitSelector, chromedp.ByQuery))
	}
	if s.renderWait > 0 {
		tasks = append(tasks, chromedp.Sleep(s.renderWait))
	}

	var finalURL, html string
	tasks = append(tasks,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(runCtx, tasks); err != nil {
		stage := "navigate"
		if ctx.Err() != nil {
			stage = "timeout"
		}
		return nil, &domain.AutomationError{Stage: stage, Err: err}
	}

	status := int(s.lastStatus.Load())
	s.log.Debug("automated fetch", "url", url, "status", status, "duration", time.Since(start))
	return &collector.Page{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  status,
		ContentType: "text/html",
		Body:        []byte(html),
	}, nil
}

// Close tears down the tab and the browser process.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.tabCancel()
		s.allocCancel()
		metrics.BrowserSessionsActive.Dec()
		s.log.Debug("browser session closed")
	})
	return nil
}

var (
	_ Factory = (*Launcher)(nil)
	_ Session = (*chromeSession)(nil)
)
