// Package health reports liveness and readiness over HTTP and gRPC.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// SQLCheck probes anything with PingContext, such as *sql.DB.
func SQLCheck(name string, db interface{ PingContext(context.Context) error }) Check {
	return Check{Name: name, Fn: db.PingContext}
}

// RedisCheck probes a Redis client. A nil client yields no check.
func RedisCheck(client *redis.Client) []Check {
	if client == nil {
		return nil
	}
	return []Check{{Name: "redis", Fn: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}}
}

type Checker struct {
	checks  []Check
	timeout time.Duration
}

func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Checker{checks: checks, timeout: timeout}
}

// Ready runs every check and returns the first failure.
func (c *Checker) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for _, check := range c.checks {
		if err := check.Fn(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", check.Name, err)
		}
	}
	return nil
}

// Handler serves /healthz and /readyz.
func (c *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}
