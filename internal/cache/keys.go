// Package cache implements the shared key-value adapter: positive
// results, negative markers, consecutive-failure counters, and
// circuit-breaker state. Every backend error is swallowed so an
// unreachable store degrades the pipeline to "no cache" instead of
// failing requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TTLs fixed by the caching contract.
const (
	PositiveTTL  = 6 * time.Hour
	NegativeTTL  = 60 * time.Second
	FailCountTTL = 120 * time.Second
	BreakerOpen  = 60 * time.Second
)

// BreakerThreshold is the consecutive upstream-failure count that
// opens the breaker.
const BreakerThreshold = 3

// hashQuery hashes the normalized primary query; the raw query is
// never used as a key.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func positiveKey(query string) string {
	return "price:pos:" + hashQuery(query)
}

func negativeKey(query string) string {
	return "price:neg:" + hashQuery(query)
}

func failCountKey(query string) string {
	return negativeKey(query) + ":fail_count"
}

func breakerOpenKey(origin string) string {
	return fmt.Sprintf("cb:%s:open", origin)
}

func breakerFailKey(origin string) string {
	return fmt.Sprintf("cb:%s:failures", origin)
}
