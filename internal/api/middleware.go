package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"courtbook/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ActorHeader carries the authenticated caller identity set by the gateway.
const ActorHeader = "X-Actor-ID"

// limiterIdleTTL is how long a key may go unseen before its limiter is dropped.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(rps rate.Limit, burst int, idleTTL time.Duration) *limiterStore {
	return &limiterStore{
		limiters:  make(map[string]*limiterEntry),
		rps:       rps,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL {
		s.sweep(now)
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep drops limiters idle for at least idleTTL. Caller holds mu.
func (s *limiterStore) sweep(now time.Time) {
	for key, e := range s.limiters {
		if now.Sub(e.lastSeen) >= s.idleTTL {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimit limits requests per actor, falling back to client IP for
// anonymous calls.
func RateLimit(rps float64, burst int, logger zerolog.Logger) gin.HandlerFunc {
	store := newLimiterStore(rate.Limit(rps), burst, limiterIdleTTL)
	return func(c *gin.Context) {
		key := c.GetHeader(ActorHeader)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !store.get(key).Allow() {
			logger.Warn().Str("key", key).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}
		c.Next()
	}
}

// AccessLog logs each request and counts it by route and status.
func AccessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.IncHTTPRequest(route, strconv.Itoa(status))

		logger.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(started)).
			Str("actor", c.GetHeader(ActorHeader)).
			Msg("http request")
	}
}
