package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// User-facing failure messages. They deliberately carry no internal
// identifiers and never echo the raw query.
const (
	msgNotFound  = "no matching product found"
	msgBlocked   = "upstream is temporarily unavailable"
	msgTimeout   = "search timed out"
	msgExhausted = "search budget exceeded"
	msgParse     = "result page could not be interpreted"
)

// OrchestratorConfig tunes the per-request pipeline.
type OrchestratorConfig struct {
	// Origin is the breaker key for the aggregator, e.g. "search.danawa.com".
	Origin string
	Budget BudgetConfig
	// SlowPathEnabled gates the browser path globally (feature flag).
	SlowPathEnabled bool
	// HardSkipThreshold is the consecutive-failure count after which a
	// query is rejected without attempting either path.
	HardSkipThreshold int
}

// Orchestrator composes the pipeline:
// normalize → cache → FastPath → SlowPath → validate → write → respond,
// re-checking the budget at every awaited step.
type Orchestrator struct {
	cfg        OrchestratorConfig
	normalizer Normalizer
	cache      Cache
	fastpath   Executor
	slowpath   Executor
	gate       Gate
	failures   FailureSink
	logger     *zap.Logger
}

// NewOrchestrator wires the pipeline. slowpath and failures may be nil
// (disabled); everything else is required.
func NewOrchestrator(
	cfg OrchestratorConfig,
	normalizer Normalizer,
	cache Cache,
	fastpath Executor,
	slowpath Executor,
	gate Gate,
	failures FailureSink,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if err := cfg.Budget.Validate(); err != nil {
		return nil, fmt.Errorf("budget config: %w", err)
	}
	if normalizer == nil || cache == nil || fastpath == nil || gate == nil {
		return nil, fmt.Errorf("normalizer, cache, fastpath, and gate are required")
	}
	if cfg.HardSkipThreshold <= 0 {
		cfg.HardSkipThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		normalizer: normalizer,
		cache:      cache,
		fastpath:   fastpath,
		slowpath:   slowpath,
		gate:       gate,
		failures:   failures,
		logger:     logger,
	}, nil
}

// pathOutcome aggregates what a candidate loop observed.
type pathOutcome struct {
	sawNotFound bool
	sawBlocked  bool
	sawTimeout  bool
	sawParse    bool
	attempted   int
	exhausted   bool
}

func (o *pathOutcome) absorb(other pathOutcome) {
	o.sawNotFound = o.sawNotFound || other.sawNotFound
	o.sawBlocked = o.sawBlocked || other.sawBlocked
	o.sawTimeout = o.sawTimeout || other.sawTimeout
	o.sawParse = o.sawParse || other.sawParse
	o.attempted += other.attempted
	o.exhausted = o.exhausted || other.exhausted
}

// Search runs the full pipeline for one validated query and returns
// exactly one terminal result envelope.
func (o *Orchestrator) Search(ctx context.Context, q Query) *SearchResult {
	nq := o.normalizer.Normalize(q.ProductName)

	budget, err := o.buildBudget(nq)
	if err != nil {
		o.logger.Error("budget construction failed", zap.Error(err))
		return NewFailure(StatusParseError, nq.Primary, 0, msgParse)
	}
	budget.Start()

	log := o.logger.With(zap.String("query", nq.Primary))
	log.Info("search started",
		zap.Int("candidates", len(nq.Candidates)),
		zap.Bool("hard_mapped", nq.HardMapped),
		zap.Bool("broad", nq.Broad))

	// Positive cache.
	if res := o.lookupPositive(ctx, budget, nq.Primary); res != nil {
		log.Info("cache hit", zap.Duration("elapsed", budget.Elapsed()))
		return res
	}
	budget.Checkpoint("cache_miss")

	// Negative cache.
	cacheCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
	reason, hit := o.cache.GetNegative(cacheCtx, nq.Primary)
	cancel()
	if hit {
		log.Info("negative cache hit")
		budget.Checkpoint("negative_cache_hit")
		return NewFailure(StatusNotFound, nq.Primary, budget.Elapsed(), reason)
	}

	// Repeated-failure hard skip.
	skipCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
	failCount := o.cache.FailureCount(skipCtx, nq.Primary)
	cancel()
	if failCount >= o.cfg.HardSkipThreshold {
		log.Warn("hard skip after repeated failures", zap.Int("count", failCount))
		return NewFailure(StatusNotFound, nq.Primary, budget.Elapsed(), msgNotFound)
	}

	var outcome pathOutcome

	// FastPath.
	if finding, out := o.runFastPath(ctx, budget, q.ProductName, nq, log); finding != nil {
		return o.finish(ctx, budget, nq, StatusFastPathSuccess, SourceFastPath, finding, log)
	} else {
		outcome.absorb(out)
	}

	// SlowPath.
	if o.slowPathAllowed(nq, budget, outcome) {
		if finding, out := o.runSlowPath(ctx, budget, q.ProductName, nq, log); finding != nil {
			return o.finish(ctx, budget, nq, StatusSlowPathSuccess, SourceSlowPath, finding, log)
		} else {
			outcome.absorb(out)
		}
	}

	return o.terminalFailure(ctx, q, nq, budget, outcome, log)
}

// buildBudget derives the per-request budget; broad queries trade
// SlowPath away for an expanded FastPath allocation.
func (o *Orchestrator) buildBudget(nq NormalizedQuery) (*Budget, error) {
	cfg := o.cfg.Budget
	if nq.Broad {
		cfg.FastPath = BroadFastPathBudget
		cfg.SlowPath = 0
		if cfg.Cache+cfg.FastPath > cfg.Total {
			cfg.FastPath = cfg.Total - cfg.Cache
		}
	}
	return NewBudget(cfg)
}

func (o *Orchestrator) lookupPositive(ctx context.Context, budget *Budget, primary string) *SearchResult {
	cacheCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
	defer cancel()
	res, ok := o.cache.GetPositive(cacheCtx, primary)
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	cacheLookups.WithLabelValues("hit").Inc()
	budget.Checkpoint("cache_hit")
	// The stored envelope keeps its original source tag; relabel so
	// the caller sees where this response actually came from.
	res.Status = StatusCacheHit
	res.Source = SourceCache
	res.ElapsedMS = budget.Elapsed().Milliseconds()
	searchesTotal.WithLabelValues(string(StatusCacheHit), SourceCache).Inc()
	return res
}

func (o *Orchestrator) runFastPath(
	ctx context.Context, budget *Budget, raw string, nq NormalizedQuery, log *zap.Logger,
) (*Finding, pathOutcome) {
	var out pathOutcome
	if !budget.CanRun(StageFastPath) {
		return nil, out
	}
	if o.cache.BreakerOpen(ctx, o.cfg.Origin) {
		log.Warn("fastpath skipped: circuit breaker open", zap.String("origin", o.cfg.Origin))
		return nil, out
	}
	stageStart := time.Now()
	defer func() {
		stageSeconds.WithLabelValues(string(StageFastPath)).Observe(time.Since(stageStart).Seconds())
	}()

	for i, cand := range nq.Candidates {
		if budget.IsExhausted() {
			out.exhausted = true
			return nil, out
		}
		out.attempted++
		timeout := budget.CandidateTimeout(StageFastPath, len(nq.Candidates)-i)
		candCtx, cancel := context.WithTimeout(ctx, timeout)
		finding, err := o.fastpath.Search(candCtx, cand)
		cancel()

		if err == nil && finding != nil {
			if nq.NeedsGate(i) {
				if gateErr := o.gate.Validate(raw, nq.Category, finding); gateErr != nil {
					log.Info("validation gate rejected candidate",
						zap.Int("candidate", i), zap.Error(gateErr))
					continue
				}
			}
			o.cache.BreakerReset(ctx, o.cfg.Origin)
			budget.Checkpoint("fastpath_success")
			return finding, out
		}

		switch {
		case errors.Is(err, ErrNotFound):
			out.sawNotFound = true
			continue
		case errors.Is(err, ErrBlocked):
			out.sawBlocked = true
			o.tripBreaker(ctx, log)
			return nil, out // advance to SlowPath, no FastPath retry
		case errors.Is(err, ErrParse):
			out.sawParse = true
			return nil, out // template drift: FastPath cannot recover
		case errors.Is(err, ErrTimeout):
			out.sawTimeout = true
			o.tripBreaker(ctx, log)
			return nil, out
		case errors.Is(err, ErrNetwork):
			out.sawTimeout = true
			continue
		default:
			// Unclassified failure: skip this candidate.
			log.Warn("fastpath candidate failed", zap.Int("candidate", i), zap.Error(err))
			out.sawParse = true
			continue
		}
	}
	budget.Checkpoint("fastpath_failed")
	return nil, out
}

func (o *Orchestrator) slowPathAllowed(nq NormalizedQuery, budget *Budget, out pathOutcome) bool {
	if o.slowpath == nil || !o.cfg.SlowPathEnabled {
		return false
	}
	if nq.Broad {
		return false
	}
	if out.exhausted {
		return false
	}
	return budget.CanRun(StageSlowPath)
}

func (o *Orchestrator) runSlowPath(
	ctx context.Context, budget *Budget, raw string, nq NormalizedQuery, log *zap.Logger,
) (*Finding, pathOutcome) {
	var out pathOutcome
	stageStart := time.Now()
	defer func() {
		stageSeconds.WithLabelValues(string(StageSlowPath)).Observe(time.Since(stageStart).Seconds())
	}()

	for i, cand := range nq.Candidates {
		if budget.IsExhausted() {
			out.exhausted = true
			return nil, out
		}
		out.attempted++
		timeout := budget.CandidateTimeout(StageSlowPath, len(nq.Candidates)-i)
		candCtx, cancel := context.WithTimeout(ctx, timeout)
		finding, err := o.slowpath.Search(candCtx, cand)
		cancel()

		if err == nil && finding != nil {
			if nq.NeedsGate(i) {
				if gateErr := o.gate.Validate(raw, nq.Category, finding); gateErr != nil {
					log.Info("validation gate rejected candidate",
						zap.Int("candidate", i), zap.Error(gateErr))
					continue
				}
			}
			budget.Checkpoint("slowpath_success")
			return finding, out
		}

		switch {
		case errors.Is(err, ErrNotFound):
			out.sawNotFound = true
			continue
		case errors.Is(err, ErrBlocked):
			out.sawBlocked = true
			o.tripBreaker(ctx, log)
			return nil, out
		case errors.Is(err, ErrTimeout):
			out.sawTimeout = true
			return nil, out
		case errors.Is(err, ErrBrowserCrash):
			log.Warn("slowpath page crashed", zap.Int("candidate", i))
			continue
		case errors.Is(err, ErrParse):
			out.sawParse = true
			continue
		default:
			log.Warn("slowpath candidate failed", zap.Int("candidate", i), zap.Error(err))
			out.sawParse = true
			continue
		}
	}
	budget.Checkpoint("slowpath_failed")
	return nil, out
}

func (o *Orchestrator) tripBreaker(ctx context.Context, log *zap.Logger) {
	o.cache.BreakerTrip(ctx, o.cfg.Origin)
	breakerTrips.WithLabelValues(o.cfg.Origin).Inc()
	log.Warn("breaker tripped", zap.String("origin", o.cfg.Origin))
}

// finish validates nothing further (gate already ran where required),
// writes the positive cache, clears failure bookkeeping, and builds
// the success envelope.
func (o *Orchestrator) finish(
	ctx context.Context, budget *Budget, nq NormalizedQuery,
	status Status, source string, finding *Finding, log *zap.Logger,
) *SearchResult {
	res := NewSuccess(status, source, nq.Primary, finding, budget.Elapsed())

	writeCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
	o.cache.SetPositive(writeCtx, nq.Primary, res)
	o.cache.ResetFailure(writeCtx, nq.Primary)
	cancel()

	searchesTotal.WithLabelValues(string(status), source).Inc()
	log.Info("search completed",
		zap.String("source", source),
		zap.Int64("lowest_price", res.LowestPrice),
		zap.Duration("elapsed", budget.Elapsed()))
	return res
}

func (o *Orchestrator) terminalFailure(
	ctx context.Context, q Query, nq NormalizedQuery, budget *Budget,
	out pathOutcome, log *zap.Logger,
) *SearchResult {
	status, message := classifyOutcome(out)

	// Only an affirmative NotFound suppresses re-queries; transient
	// outcomes must stay retryable.
	if status == StatusNotFound {
		negCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
		o.cache.SetNegative(negCtx, nq.Primary, message)
		cancel()
	}
	bumpCtx, cancel := context.WithTimeout(ctx, budget.TimeoutFor(StageCache))
	o.cache.BumpFailure(bumpCtx, nq.Primary)
	cancel()

	if o.failures != nil {
		o.failures.Record(FailureReport{
			OriginalQuery:   q.ProductName,
			NormalizedQuery: nq.Primary,
			Candidates:      nq.Candidates,
			AttemptedCount:  out.attempted,
			ErrorMessage:    message,
			Category:        nq.Category,
			Brand:           nq.Brand,
			Model:           nq.Model,
			Elapsed:         budget.Elapsed(),
		})
	}

	searchesTotal.WithLabelValues(string(status), "none").Inc()
	log.Warn("search failed",
		zap.String("status", string(status)),
		zap.Int("attempted", out.attempted),
		zap.Duration("elapsed", budget.Elapsed()),
		zap.Any("budget_report", budget.Report()))
	return NewFailure(status, nq.Primary, budget.Elapsed(), message)
}

// classifyOutcome picks the single terminal variant for a failed
// pipeline. Blocked wins over Timeout (it is the more actionable
// signal), an affirmative NotFound wins over parse trouble, and a
// pipeline that never got to attempt anything is budget exhaustion.
func classifyOutcome(out pathOutcome) (Status, string) {
	switch {
	case out.sawBlocked:
		return StatusBlocked, msgBlocked
	case out.sawTimeout:
		return StatusTimeout, msgTimeout
	case out.sawNotFound:
		return StatusNotFound, msgNotFound
	case out.sawParse:
		return StatusParseError, msgParse
	case out.exhausted || out.attempted == 0:
		return StatusBudgetExhausted, msgExhausted
	default:
		return StatusNotFound, msgNotFound
	}
}
