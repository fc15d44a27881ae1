// Package cache holds computed credit-score breakdowns so repeated
// diagnostic calls do not rescan a customer's full loan history. The
// cache is advisory: misses and outages degrade to recomputation.
package cache

import (
	"context"
	"time"
)

// ScoreCache stores serialized score reports keyed per customer.
type ScoreCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
