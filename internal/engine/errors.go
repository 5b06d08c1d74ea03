// Package engine contains the core search pipeline: the per-request
// budget, the domain types shared by every execution path, and the
// orchestrator that composes cache, normalizer, executors, and the
// failure recorder under a single deadline.
package engine

import "errors"

// Sentinel errors forming the executor error taxonomy. FastPath and
// SlowPath map every transport- or DOM-level failure to one of these
// before returning; the orchestrator never sees a raw transport error.
var (
	// ErrNotFound means the aggregator's list page had zero matches.
	ErrNotFound = errors.New("product not found")

	// ErrBlocked means the upstream refused us: 403/429, an anti-bot
	// challenge body, or a block marker in the rendered DOM.
	ErrBlocked = errors.New("blocked by upstream")

	// ErrTimeout means the stage deadline elapsed before completion.
	ErrTimeout = errors.New("deadline exceeded")

	// ErrParse means the expected page structure is missing
	// (site template drift).
	ErrParse = errors.New("page structure not recognized")

	// ErrNetwork is a transport-level failure below HTTP semantics.
	ErrNetwork = errors.New("network failure")

	// ErrBrowserCrash means the leased page died mid-use (frame
	// detached, browser context closed). The page must not be reused.
	ErrBrowserCrash = errors.New("browser session lost")

	// ErrBudgetExhausted means the request budget ran out before the
	// next stage could start.
	ErrBudgetExhausted = errors.New("search budget exhausted")
)

// Transient reports whether the error describes a condition that may
// clear on its own. Transient terminal outcomes never write negative
// cache entries.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrBrowserCrash) ||
		errors.Is(err, ErrBudgetExhausted)
}

// TerminalStatus maps a pipeline error to the terminal result status.
func TerminalStatus(err error) Status {
	switch {
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrBlocked):
		return StatusBlocked
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNetwork):
		return StatusTimeout
	case errors.Is(err, ErrBudgetExhausted):
		return StatusBudgetExhausted
	default:
		return StatusParseError
	}
}
