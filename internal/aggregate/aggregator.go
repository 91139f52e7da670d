// Package aggregate executes structured queries against the ledger store,
// producing deterministic numeric results. The result of a query depends
// only on the ledger snapshot and the query itself: running it twice
// against an unchanged ledger yields an identical AggregationResult.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"finchat/internal/cache"
	"finchat/internal/core"
	"finchat/internal/ledger"
)

// DefaultUnit labels monetary values in results.
const DefaultUnit = "EUR"

// Bucket width by range length. Fixed table:
// up to 31 days daily, up to 365 days monthly, beyond that yearly.
func widthForRange(r core.TimeRange) core.BucketWidth {
	days := r.Days()
	switch {
	case days <= 31:
		return core.BucketDaily
	case days <= 365:
		return core.BucketMonthly
	default:
		return core.BucketYearly
	}
}

type Aggregator struct {
	store ledger.Store
	cache *cache.LRUCache[core.AggregationResult]
	group singleflight.Group
}

// New creates an aggregator over the ledger store. cacheSize 0 disables
// result caching.
func New(store ledger.Store, cacheSize int, cacheTTL time.Duration) *Aggregator {
	a := &Aggregator{store: store}
	if cacheSize > 0 {
		a.cache = cache.NewLRUCache[core.AggregationResult](cacheSize, cacheTTL)
	}
	return a
}

// Cache exposes the result cache for lifecycle management. It returns
// nil when caching is disabled.
func (a *Aggregator) Cache() *cache.LRUCache[core.AggregationResult] {
	return a.cache
}

// Run executes the query. Results are cached by fingerprint; the
// fingerprint includes the user's ledger version, so new transactions
// invalidate the cache naturally. Concurrent identical queries are
// collapsed into a single ledger read.
func (a *Aggregator) Run(ctx context.Context, q core.StructuredQuery) (core.AggregationResult, error) {
	if err := q.Validate(); err != nil {
		return core.AggregationResult{}, err
	}

	version, err := a.store.Version(ctx, q.UserID)
	if err != nil {
		return core.AggregationResult{}, fmt.Errorf("%w: read ledger version: %v", core.ErrSourceUnavailable, err)
	}
	key := Fingerprint(q, version)

	if a.cache != nil {
		if res, ok := a.cache.Get(key); ok {
			return res, nil
		}
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		res, err := a.compute(ctx, q)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			a.cache.Set(key, res)
		}
		return res, nil
	})
	if err != nil {
		return core.AggregationResult{}, err
	}
	return v.(core.AggregationResult), nil
}

func (a *Aggregator) compute(ctx context.Context, q core.StructuredQuery) (core.AggregationResult, error) {
	txs, err := a.store.QueryTransactions(ctx, q.UserID, q.Range, q.Categories)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.AggregationResult{}, err
		}
		return core.AggregationResult{}, fmt.Errorf("%w: query transactions: %v", core.ErrSourceUnavailable, err)
	}

	res := core.AggregationResult{
		Kind:   q.Kind,
		Unit:   DefaultUnit,
		Range:  q.Range,
		Count:  len(txs),
		NoData: len(txs) == 0,
	}

	var total int64
	for _, tx := range txs {
		total += tx.Amount.Cents
	}

	switch q.Kind {
	case core.AggregationSum:
		res.Value = core.Money{Cents: total}
		res.ByCategory = categoryBreakdown(txs)
	case core.AggregationCount:
		// Count carries no monetary value.
	case core.AggregationAverage:
		if len(txs) == 0 {
			// Explicit NoData, never a division by zero.
			return res, nil
		}
		res.Value = core.Money{Cents: total / int64(len(txs))}
	case core.AggregationTrend:
		res.Value = core.Money{Cents: total}
		res.Width = widthForRange(q.Range)
		res.Buckets = bucketize(txs, q.Range, res.Width)
	}
	return res, nil
}

// categoryBreakdown sums per category, sorted by name for determinism.
func categoryBreakdown(txs []core.Transaction) []core.CategoryAmount {
	if len(txs) == 0 {
		return nil
	}
	byCat := make(map[string]int64)
	for _, tx := range txs {
		byCat[tx.Category] += tx.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(byCat))
	for name, cents := range byCat {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// bucketize produces one bucket per sub-interval covering the whole range,
// including empty ones, so trends always have a stable shape.
func bucketize(txs []core.Transaction, r core.TimeRange, width core.BucketWidth) []core.Bucket {
	var buckets []core.Bucket
	for start := truncate(r.Start, width); start.Before(r.End); start = next(start, width) {
		buckets = append(buckets, core.Bucket{Start: start})
	}
	for _, tx := range txs {
		i := bucketIndex(buckets, tx.Timestamp, width)
		if i >= 0 {
			buckets[i].Total.Cents += tx.Amount.Cents
		}
	}
	return buckets
}

func truncate(t time.Time, width core.BucketWidth) time.Time {
	y, m, d := t.Date()
	switch width {
	case core.BucketDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	case core.BucketMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
	}
}

func next(t time.Time, width core.BucketWidth) time.Time {
	switch width {
	case core.BucketDaily:
		return t.AddDate(0, 0, 1)
	case core.BucketMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

func bucketIndex(buckets []core.Bucket, ts time.Time, width core.BucketWidth) int {
	want := truncate(ts, width)
	for i := range buckets {
		if buckets[i].Start.Equal(want) {
			return i
		}
	}
	return -1
}
