// Package fastpath implements the HTTP+HTML extraction path against
// the aggregator using a Colly collector: list request, candidate
// scoring, detail request, top-offer extraction.
package fastpath

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ImportTeam/extensionBack/internal/aggregator"
	"github.com/ImportTeam/extensionBack/internal/engine"
)

// Archiver stores page bodies that failed extraction, for offline
// selector debugging. Implementations must be best-effort.
type Archiver interface {
	Archive(ctx context.Context, reason string, body []byte)
}

// Config controls the executor.
type Config struct {
	Endpoints aggregator.Endpoints
	UserAgent string
	// MaxListCandidates bounds how many scored product codes the list
	// parser returns.
	MaxListCandidates int
	// MaxOffers bounds the offers extracted from the detail page.
	MaxOffers int
}

// Executor implements engine.Executor over HTTP.
type Executor struct {
	cfg       Config
	base      *colly.Collector
	transport http.RoundTripper
	snapshots Archiver
	logger    *zap.Logger
}

// New builds the executor. snapshots may be nil.
func New(cfg Config, snapshots Archiver, logger *zap.Logger) *Executor {
	if cfg.MaxListCandidates <= 0 {
		cfg.MaxListCandidates = 12
	}
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := newHTTPTransport()
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(transport)
	return &Executor{cfg: cfg, base: c, transport: transport, snapshots: snapshots, logger: logger}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// listBudgetShare is how much of the candidate deadline the list fetch
// may spend; the rest is reserved for the detail fetch.
const (
	listBudgetShare  = 0.6
	detailFloorMS    = 300
	detailFloor      = detailFloorMS * time.Millisecond
	minFetchDeadline = 200 * time.Millisecond
)

// Search implements engine.Executor: list fetch, candidate pick,
// detail fetch, offer extraction, all inside ctx's deadline.
func (e *Executor) Search(ctx context.Context, candidate string) (*engine.Finding, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(4 * time.Second)
	}
	total := time.Until(deadline)
	if total <= minFetchDeadline {
		return nil, engine.ErrTimeout
	}

	listBudget := time.Duration(float64(total) * listBudgetShare)
	if total-listBudget < detailFloor {
		listBudget = total - detailFloor
	}
	if listBudget < minFetchDeadline {
		listBudget = minFetchDeadline
	}

	listCtx, cancel := context.WithTimeout(ctx, listBudget)
	listURL := e.cfg.Endpoints.ListURL(candidate)
	body, err := e.fetch(listCtx, listURL)
	cancel()
	if err != nil {
		return nil, err
	}

	if aggregator.IsNoResultsBody(string(body)) {
		return nil, engine.ErrNotFound
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: list document", engine.ErrParse)
	}
	if !aggregator.HasListFingerprint(doc) {
		e.archive(ctx, "list_parse", body)
		return nil, fmt.Errorf("%w: list fingerprint missing", engine.ErrParse)
	}

	codes := aggregator.ParseListCandidates(doc, candidate, e.cfg.MaxListCandidates)
	if len(codes) == 0 {
		return nil, engine.ErrNotFound
	}
	productID := codes[0]

	detailURL := e.cfg.Endpoints.DetailURL(productID, candidate)
	body, err = e.fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: detail document", engine.ErrParse)
	}
	if !aggregator.HasDetailFingerprint(doc) {
		e.archive(ctx, "detail_parse", body)
		return nil, fmt.Errorf("%w: detail fingerprint missing", engine.ErrParse)
	}

	name, offers := aggregator.ParseDetailOffers(doc, detailURL, candidate, e.cfg.MaxOffers)
	if len(offers) == 0 {
		e.archive(ctx, "no_offers", body)
		return nil, fmt.Errorf("%w: no offers on detail page", engine.ErrParse)
	}

	return &engine.Finding{
		ProductID:   productID,
		ProductName: name,
		Offers:      offers,
	}, nil
}

// fetch performs one GET via a cloned collector, racing completion
// against ctx, and maps the outcome to the engine error taxonomy.
func (e *Executor) fetch(ctx context.Context, url string) ([]byte, error) {
	collector := e.base.Clone()
	collector.WithTransport(e.transport)
	collector.IgnoreRobotsTxt = true
	if e.cfg.UserAgent != "" {
		collector.UserAgent = e.cfg.UserAgent
	}
	if deadline, ok := ctx.Deadline(); ok {
		collector.SetRequestTimeout(time.Until(deadline))
	}

	var (
		status   int
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
			body = append([]byte(nil), r.Body...)
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, engine.ErrTimeout
	case visitErr := <-done:
		return e.classify(ctx, status, body, visitErr, fetchErr)
	}
}

func (e *Executor) classify(ctx context.Context, status int, body []byte, visitErr, fetchErr error) ([]byte, error) {
	if aggregator.BlockedStatus(status) {
		e.archive(ctx, "blocked_status", body)
		return nil, fmt.Errorf("%w: status %d", engine.ErrBlocked, status)
	}
	err := visitErr
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			strings.Contains(err.Error(), "Client.Timeout") {
			return nil, engine.ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrNetwork, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", engine.ErrNetwork, status)
	}
	if aggregator.IsBlockedBody(string(body)) {
		e.archive(ctx, "blocked_body", body)
		return nil, fmt.Errorf("%w: challenge page", engine.ErrBlocked)
	}
	return body, nil
}

func (e *Executor) archive(ctx context.Context, reason string, body []byte) {
	if e.snapshots == nil || len(body) == 0 {
		return
	}
	e.snapshots.Archive(ctx, reason, body)
}
