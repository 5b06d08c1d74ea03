// Package slowpath implements the headless-browser extraction path:
// the same list → detail → offers contract as the HTTP path, driven
// through a pooled Chrome page for origins that block or break plain
// HTTP extraction.
package slowpath

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/aggregator"
	"github.com/ImportTeam/extensionBack/internal/engine"
)

// Pool is the page-lease surface the executor needs.
type Pool interface {
	Lease(ctx context.Context) (Page, error)
	Release(page Page, ok bool)
}

// Page is one leased browser tab.
type Page interface {
	Ctx() context.Context
}

// Archiver mirrors the fastpath archiver: best-effort body capture on
// extraction failures.
type Archiver interface {
	Archive(ctx context.Context, reason string, body []byte)
}

// Config controls the executor.
type Config struct {
	Endpoints aggregator.Endpoints
	MaxOffers int
	// DOMReadyTimeout bounds each selector wait inside a navigation.
	DOMReadyTimeout time.Duration
}

// Executor implements engine.Executor via a pooled headless browser.
type Executor struct {
	cfg       Config
	pool      Pool
	snapshots Archiver
	logger    *zap.Logger
}

// New builds the executor. snapshots may be nil.
func New(cfg Config, pool Pool, snapshots Archiver, logger *zap.Logger) *Executor {
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = 3
	}
	if cfg.DOMReadyTimeout <= 0 {
		cfg.DOMReadyTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{cfg: cfg, pool: pool, snapshots: snapshots, logger: logger}
}

// Search implements engine.Executor. The page is released on every
// exit path; a crash releases it as not-ok so the pool destroys it.
func (e *Executor) Search(ctx context.Context, candidate string) (*engine.Finding, error) {
	page, err := e.pool.Lease(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, engine.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrBrowserCrash, err)
	}

	finding, err := e.run(ctx, page, candidate)
	e.pool.Release(page, !errors.Is(err, engine.ErrBrowserCrash))
	return finding, err
}

func (e *Executor) run(ctx context.Context, page Page, candidate string) (*engine.Finding, error) {
	listHTML, err := e.render(ctx, page, e.cfg.Endpoints.ListURL(candidate), ".prod_item, .search_result")
	if err != nil {
		return nil, err
	}
	if aggregator.IsNoResultsBody(listHTML) {
		return nil, engine.ErrNotFound
	}
	if blockedDOM(listHTML) {
		e.archive(ctx, "blocked_dom", []byte(listHTML))
		return nil, fmt.Errorf("%w: challenge page in DOM", engine.ErrBlocked)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: list document", engine.ErrParse)
	}
	if !aggregator.HasListFingerprint(doc) {
		e.archive(ctx, "list_parse", []byte(listHTML))
		return nil, fmt.Errorf("%w: list fingerprint missing", engine.ErrParse)
	}
	codes := aggregator.ParseListCandidates(doc, candidate, 12)
	if len(codes) == 0 {
		return nil, engine.ErrNotFound
	}
	productID := codes[0]

	detailURL := e.cfg.Endpoints.DetailURL(productID, candidate)
	detailHTML, err := e.render(ctx, page, detailURL, "#lowPriceCompanyArea, .prod_tit")
	if err != nil {
		return nil, err
	}
	if blockedDOM(detailHTML) {
		e.archive(ctx, "blocked_dom", []byte(detailHTML))
		return nil, fmt.Errorf("%w: challenge page in DOM", engine.ErrBlocked)
	}
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: detail document", engine.ErrParse)
	}
	if !aggregator.HasDetailFingerprint(doc) {
		e.archive(ctx, "detail_parse", []byte(detailHTML))
		return nil, fmt.Errorf("%w: detail fingerprint missing", engine.ErrParse)
	}

	name, offers := aggregator.ParseDetailOffers(doc, detailURL, candidate, e.cfg.MaxOffers)
	if len(offers) == 0 {
		e.archive(ctx, "no_offers", []byte(detailHTML))
		return nil, fmt.Errorf("%w: no offers on detail page", engine.ErrParse)
	}

	return &engine.Finding{
		ProductID:   productID,
		ProductName: name,
		Offers:      offers,
	}, nil
}

// render navigates the leased page, waits for the DOM-ready signal
// under a sub-deadline, and returns the rendered document.
func (e *Executor) render(ctx context.Context, page Page, url, readySelector string) (string, error) {
	runCtx := page.Ctx()
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}

	var html string
	err := chromedp.Run(runCtx,
		e.networkSetup(),
		chromedp.Navigate(url),
		e.waitReady(readySelector),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(runCtx.Err(), context.Canceled) {
			// The page's own context died under us, not the deadline.
			return "", fmt.Errorf("%w: page context closed", engine.ErrBrowserCrash)
		}
		return "", e.classify(err)
	}
	return html, nil
}

// networkSetup enables the network domain and sends the headers the
// aggregator expects from a real visitor.
func (e *Executor) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		headers := network.Headers{
			"Referer":         "https://" + e.cfg.Endpoints.Origin + "/",
			"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

// waitReady waits for any of the comma-separated selectors, bounded by
// the DOM-ready sub-deadline. A missing selector is a parse signal,
// not a navigation failure.
func (e *Executor) waitReady(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, e.cfg.DOMReadyTimeout)
		defer cancel()
		if err := chromedp.WaitReady("body", chromedp.ByQuery).Do(waitCtx); err != nil {
			return err
		}
		// Structure selectors are advisory; extraction decides.
		_ = chromedp.WaitVisible(selector, chromedp.ByQuery).Do(waitCtx)
		return nil
	})
}

func (e *Executor) classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return engine.ErrTimeout
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: context closed", engine.ErrBrowserCrash)
	case isCrashMessage(err):
		return fmt.Errorf("%w: %v", engine.ErrBrowserCrash, err)
	default:
		return fmt.Errorf("%w: %v", engine.ErrParse, err)
	}
}

func isCrashMessage(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"frame detached",
		"target closed",
		"browser closed",
		"websocket",
		"session closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func blockedDOM(html string) bool {
	return aggregator.IsBlockedBody(html)
}

func (e *Executor) archive(ctx context.Context, reason string, body []byte) {
	if e.snapshots == nil || len(body) == 0 {
		return
	}
	e.snapshots.Archive(ctx, reason, body)
}
