// Package browser maintains a warm pool of headless Chrome contexts
// and hands out single-use pages under a capacity bound. Every lease
// path either returns the page to the pool or destroys it; a crashed
// page never re-enters the free list.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var pagesInUse = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pricesearch_browser_pages_in_use",
	Help: "Browser pages currently leased.",
})

// Config controls pool capacity.
type Config struct {
	// MaxPages caps concurrent leased pages (M).
	MaxPages int64
	// WarmContexts is how many browser contexts are kept alive between
	// leases (N).
	WarmContexts int
	UserAgent    string
}

// Pool owns the Chrome allocator and the free browser contexts. It is
// the sole mutator of live browser handles.
type Pool struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	sem         *semaphore.Weighted
	logger      *zap.Logger

	mu     sync.Mutex
	free   []*browserContext
	closed bool
}

type browserContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Page is one leased browser tab. Single request, single use.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	owner  *browserContext
	pool   *Pool

	releaseOnce sync.Once
}

// Ctx returns the chromedp context to run actions against.
func (p *Page) Ctx() context.Context {
	return p.ctx
}

// New builds a Pool. Browser processes start lazily on first lease;
// call Warmup to pre-launch.
func New(cfg Config, logger *zap.Logger) (*Pool, error) {
	if cfg.MaxPages < 1 {
		return nil, fmt.Errorf("browser pool capacity must be >= 1")
	}
	if cfg.WarmContexts < 1 {
		cfg.WarmContexts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Pool{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		sem:         semaphore.NewWeighted(cfg.MaxPages),
		logger:      logger,
	}, nil
}

// Warmup pre-launches the configured number of browser contexts so the
// first lease does not pay browser startup.
func (p *Pool) Warmup(ctx context.Context) error {
	for i := 0; i < p.cfg.WarmContexts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		bc, err := p.newBrowserContext()
		if err != nil {
			return fmt.Errorf("warm browser %d: %w", i, err)
		}
		p.mu.Lock()
		p.free = append(p.free, bc)
		p.mu.Unlock()
	}
	return nil
}

func (p *Pool) newBrowserContext() (*browserContext, error) {
	bctx, cancel := chromedp.NewContext(p.allocator)
	// An empty Run launches the browser process.
	launchCtx, launchCancel := context.WithTimeout(bctx, 25*time.Second)
	err := chromedp.Run(launchCtx)
	launchCancel()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &browserContext{ctx: bctx, cancel: cancel}, nil
}

// Lease acquires a capacity permit and returns a fresh page from a
// warm or newly created context. The wait is bounded by ctx.
func (p *Pool) Lease(ctx context.Context) (*Page, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("browser pool is shut down")
	}
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("page lease wait: %w", err)
	}

	p.mu.Lock()
	var bc *browserContext
	if n := len(p.free); n > 0 {
		bc = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if bc == nil {
		var err error
		bc, err = p.newBrowserContext()
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(bc.ctx)
	pagesInUse.Inc()
	return &Page{ctx: tabCtx, cancel: tabCancel, owner: bc, pool: p}, nil
}

// Release returns the page's browser context to the pool when ok, or
// destroys it when the page is suspect. The tab itself is always
// closed. Safe to call more than once; only the first call counts.
func (p *Pool) Release(page *Page, ok bool) {
	if page == nil {
		return
	}
	page.releaseOnce.Do(func() {
		page.cancel()
		pagesInUse.Dec()

		p.mu.Lock()
		keep := ok && !p.closed && len(p.free) < p.cfg.WarmContexts
		if keep {
			p.free = append(p.free, page.owner)
		}
		p.mu.Unlock()

		if !keep {
			page.owner.cancel()
		}
		p.sem.Release(1)
	})
}

// Shutdown closes every live context, waiting for in-flight leases to
// drain or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	free := p.free
	p.free = nil
	p.mu.Unlock()

	for _, bc := range free {
		bc.cancel()
	}

	// Acquiring the full capacity proves all leases are back.
	err := p.sem.Acquire(ctx, p.cfg.MaxPages)
	if err == nil {
		p.sem.Release(p.cfg.MaxPages)
	}
	p.allocCancel()
	if err != nil {
		return fmt.Errorf("shutdown drain: %w", err)
	}
	return nil
}
