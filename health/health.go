package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultTimeout = 5 * time.Second

// FileCheck verifies that a file or directory exists at the given path.
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{"path": path},
			)
		}

		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	return Healthy(fmt.Sprintf("%s '%s' exists", fileType, path))
}

// WritableDirCheck verifies that dir exists, or can be created, and that a
// file can be written into it.
func WritableDirCheck(dir string) Status {
	if dir == "" {
		return Unhealthy("directory cannot be empty", nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Unhealthy(
			fmt.Sprintf("cannot create directory '%s'", dir),
			map[string]any{"path": dir, "error": err.Error()},
		)
	}

	f, err := os.CreateTemp(dir, ".orbit-health-*")
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("directory '%s' is not writable", dir),
			map[string]any{"path": dir, "error": err.Error()},
		)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return Healthy(fmt.Sprintf("directory '%s' is writable", filepath.Clean(dir)))
}

// URLCheck sends a HEAD request to url. A 2xx or 3xx answer is healthy, any
// other answer degraded, and no answer unhealthy. A nil client uses
// http.DefaultClient.
func URLCheck(ctx context.Context, client *http.Client, url string) Status {
	if url == "" {
		return Unhealthy("url cannot be empty", nil)
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("invalid url '%s'", url),
			map[string]any{"url": url, "error": err.Error()},
		)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("failed to reach %s", url),
			map[string]any{"url": url, "error": err.Error()},
		)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Degraded(
			fmt.Sprintf("%s answered %d", url, resp.StatusCode),
			map[string]any{"url": url, "status_code": resp.StatusCode},
		)
	}
	return Healthy(fmt.Sprintf("%s answered %d", url, resp.StatusCode))
}

// Pinger is a client with a connectivity check, such as a Redis, SQLite or
// etcd allow-list store or a Neo4j loader.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck verifies that p answers. name appears in the message.
func PingCheck(ctx context.Context, name string, p Pinger) Status {
	if p == nil {
		return Unhealthy(fmt.Sprintf("%s is not configured", name), nil)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Unhealthy(
			fmt.Sprintf("%s ping failed", name),
			map[string]any{"error": err.Error()},
		)
	}
	return Status{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%s is reachable", name),
		Details: map[string]any{"latency_ms": time.Since(start).Milliseconds()},
	}
}

// Combine aggregates multiple health checks into a single status.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.Status {
		case StatusUnhealthy:
			unhealthyChecks = append(unhealthyChecks, msg)
		case StatusDegraded:
			degradedChecks = append(degradedChecks, msg)
		case StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}

// Check is a named health check.
type Check struct {
	Name string
	Run  func(ctx context.Context) Status
}

// Result is the outcome of one named check.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Report is the outcome of Run.
type Report struct {
	Results []Result `json:"results"`
	Overall Status   `json:"overall"`
}

// Run executes checks in order and combines their statuses.
func Run(ctx context.Context, checks []Check) Report {
	report := Report{Results: make([]Result, 0, len(checks))}
	statuses := make([]Status, 0, len(checks))
	for _, c := range checks {
		s := c.Run(ctx)
		if s.Message == "" {
			s.Message = c.Name
		}
		report.Results = append(report.Results, Result{Name: c.Name, Status: s})
		statuses = append(statuses, s)
	}
	report.Overall = Combine(statuses...)
	return report
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultTimeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}
