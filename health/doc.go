// Package health checks the dependencies an ingestion deployment relies on:
// source files and URLs, the cache directory, the allow-list store, the
// work queue and the graph database.
//
// # Health Check Functions
//
//   - FileCheck: verify a file or directory exists
//   - WritableDirCheck: verify a directory exists and accepts new files
//   - URLCheck: verify an HTTP(S) source answers a HEAD request
//   - PingCheck: verify a client whose Ping method succeeds
//   - Combine: aggregate several statuses into one
//
// # Usage Example
//
//	report := health.Run(ctx, []health.Check{
//	    {Name: "attack source", Run: func(ctx context.Context) health.Status {
//	        return health.URLCheck(ctx, nil, attackURL)
//	    }},
//	    {Name: "allow-list store", Run: func(ctx context.Context) health.Status {
//	        return health.PingCheck(ctx, "redis", store)
//	    }},
//	})
//	if report.Overall.IsUnhealthy() {
//	    os.Exit(1)
//	}
//
// # Health Status Priority
//
// When combining health checks with Combine(), the result follows this priority:
//
//   - Unhealthy: If any check is unhealthy, the combined result is unhealthy
//   - Degraded: If any check is degraded (and none unhealthy), the result is degraded
//   - Healthy: If all checks are healthy, the result is healthy
//
// # Context and Timeouts
//
// URLCheck and PingCheck accept a context for timeout and
// cancellation control. If nil is passed, a default 5-second timeout is used.
package health
