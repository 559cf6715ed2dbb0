// Package ratelimiter provides token bucket rate limiting with a pluggable
// storage backend.
//
// # Token Bucket Algorithm
//
// The token bucket algorithm works by:
//  1. Maintaining a bucket with a fixed capacity of tokens
//  2. Adding tokens to the bucket at a constant rate (refill rate)
//  3. Consuming tokens when requests are made
//  4. Dropping tokens that exceed bucket capacity (burst control)
//
// This algorithm naturally supports burst traffic while maintaining an
// average rate limit.
//
// # Core Types
//
// RateLimiter defines the contract for rate limiting:
//   - Allow(ctx, key): consume 1 token
//   - AllowN(ctx, key, n): consume n tokens
//
// Bucket implements RateLimiter against a pluggable Store. MemoryStore is
// the only Store this package ships; a distributed backend (Redis, etc.)
// would satisfy the same interface.
//
// # Usage
//
// proxy.Server uses a single Bucket as a global admission limiter, bounding
// how fast init requests may consume spawn capacity independent of how long
// a spawned process then lives:
//
//	store := ratelimiter.NewMemoryStore(ratelimiter.WithStoreLogger(log))
//	admission, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       maxConcurrentSlaves,
//		RefillRate:     maxConcurrentSlaves,
//		RefillInterval: killSlavesAfter,
//	})
//	if err != nil {
//		return err
//	}
//
//	// on every init request, before forking:
//	result, err := admission.AllowN(ctx, "global", n)
//	if err != nil || !result.Allowed() {
//		// refuse the request; result.RetryAfter() reports when to retry
//	}
//
// Every caller of the server consumes tokens from the same key ("global"):
// this package is not used here for per-caller throttling, only for
// capping aggregate spawn throughput.
//
// A MemoryStore owns a background goroutine that evicts buckets unused for
// over an hour, started and stopped alongside the owning component's own
// lifecycle:
//
//	go store.Start(ctx) // blocks until ctx is cancelled or Stop is called
//	// ...
//	store.Stop()
//
// Stats and Healthcheck expose the store's cleanup state for monitoring and
// health endpoints.
//
// # Error Handling
//
// The package defines:
//   - ErrInvalidConfig: invalid rate limiting parameters
//   - ErrInvalidTokenCount: non-positive token count passed to AllowN
//   - ErrStoreAlreadyStarted / ErrStoreNotStarted: MemoryStore lifecycle misuse
//
// Storage backend errors are otherwise propagated as-is.
package ratelimiter
