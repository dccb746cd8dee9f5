// Package census discovers the exact number of holder rows behind a
// paginated listing endpoint that exposes no total count. The only primitive
// is a point query for one page; the endpoint guarantees monotonic
// exhaustion: for a fixed snapshot, no non-empty page ever follows an empty
// one.
package census

import (
	"context"
	"errors"
	"fmt"

	"listing-radar/internal/ledger"
)

// ErrUpstreamUnavailable is returned when the very first page cannot be
// fetched. Failures after page 1 degrade to a partial result instead.
var ErrUpstreamUnavailable = errors.New("census: page source unavailable")

// MaxPages is the safety ceiling for the exponential probe phase.
const MaxPages = 10_000_000

// ProbeFunc fetches one page of holder rows. Pages are 1-based; pages past
// the end return an empty slice.
type ProbeFunc func(ctx context.Context, page int) ([]ledger.HolderRow, error)

// Result is the outcome of one estimation run. Results are never cached
// across runs; ownership changes over time and carries no staleness
// guarantee.
type Result struct {
	TotalHolders  int
	PagesExamined int
	// Partial is set when a fetch failed mid-search and the total is the
	// best confirmed lower bound rather than an exact count.
	Partial bool
	// TopHolders holds the page-1 rows, sorted descending by balance.
	TopHolders []ledger.HolderRow
}

// Estimate determines the exact holder total in O(log(total/pageSize))
// requests: one fetch of page 1, a x10 exponential probe to bracket the last
// non-empty page, then a binary search inside the bracket. Row counts of
// probed pages are cached so the final page is never refetched.
func Estimate(ctx context.Context, probe ProbeFunc, pageSize int) (Result, error) {
	if probe == nil {
		return Result{}, errors.New("census: probe is required")
	}
	if pageSize < 1 {
		return Result{}, errors.New("census: page size must be >= 1")
	}

	res := Result{}

	first, err := probe(ctx, 1)
	res.PagesExamined++
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	res.TopHolders = first

	if len(first) < pageSize {
		// Page 1 is also the last page; its row count is the exact total.
		// Covers the zero-holder case directly.
		res.TotalHolders = len(first)
		return res, nil
	}

	counts := map[int]int{1: len(first)}

	// Exponential probe: grow the candidate page x10 until an empty page
	// bounds the search, or the ceiling is hit.
	lo := 1
	hi := 0
	for hi == 0 {
		next := lo * 10
		if next > MaxPages {
			next = MaxPages
		}

		rows, err := probe(ctx, next)
		res.PagesExamined++
		if err != nil {
			return degraded(res, counts, lo, pageSize), nil
		}

		if len(rows) == 0 {
			hi = next
			break
		}

		counts[next] = len(rows)
		lo = next
		if next == MaxPages {
			// Ceiling page still non-empty; report the ceiling-bounded total.
			hi = next
			break
		}
	}

	// Binary search for the last non-empty page. Invariant: lo is a known
	// non-empty page, hi is a known empty page (or the ceiling).
	for lo < hi-1 {
		mid := lo + (hi-lo)/2

		rows, err := probe(ctx, mid)
		res.PagesExamined++
		if err != nil {
			return degraded(res, counts, lo, pageSize), nil
		}

		if len(rows) > 0 {
			counts[mid] = len(rows)
			lo = mid
		} else {
			hi = mid
		}
	}

	// A full page on the last index stays a full page: a total that is an
	// exact multiple of pageSize yields countOnLastPage == pageSize.
	res.TotalHolders = (lo-1)*pageSize + counts[lo]
	return res, nil
}

// degraded treats a mid-search fetch failure as "this is the last reachable
// page" and returns the total implied by the last confirmed non-empty page.
func degraded(res Result, counts map[int]int, lastConfirmed, pageSize int) Result {
	res.Partial = true
	res.TotalHolders = (lastConfirmed-1)*pageSize + counts[lastConfirmed]
	return res
}
