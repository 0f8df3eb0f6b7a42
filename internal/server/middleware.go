package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/auth"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sessionClaimsContextKey = "cookbook_session_claims"
	requestIDContextKey     = "cookbook_request_id"
	requestIDHeader         = "X-Request-ID"
	limiterIdleTimeout      = 10 * time.Minute
)

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// requestLogger tags every request with an id and writes one access log line.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			if generated, err := uuid.NewV7(); err == nil {
				requestID = generated.String()
			} else {
				requestID = uuid.NewString()
			}
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)

		started := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("username", actorFrom(c).Username))
	}
}

// attachSession installs the caller's claims when a valid session cookie is
// present. Requests without a usable session continue anonymously.
func (h *httpHandler) attachSession(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			if errors.Is(err, auth.ErrExpiredSessionToken) {
				h.logger.Info("session validation failed", zap.Error(err))
			} else {
				h.logger.Warn("session validation failed", zap.Error(err))
			}
		}
		c.Next()
		return
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) requireSession(c *gin.Context) {
	if !actorFrom(c).Authenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorPayload{Error: errorCodeUnauthorized})
		return
	}
	c.Next()
}

func claimsFrom(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}

func actorFrom(c *gin.Context) users.Actor {
	claims, ok := claimsFrom(c)
	if !ok {
		return users.Actor{}
	}
	return claims.Actor()
}

func sessionFrom(c *gin.Context) users.SessionContext {
	claims, ok := claimsFrom(c)
	if !ok {
		return users.SessionContext{}
	}
	return claims.Session()
}

// clientLimiter applies a token bucket per caller to mutating requests. Callers
// are keyed by username when logged in and by client address otherwise.
type clientLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(requestsPerMinute, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTimeout {
		for candidate, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTimeout {
				delete(l.limiters, candidate)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *clientLimiter) middleware(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		c.Next()
		return
	}
	key := "ip:" + c.ClientIP()
	if actor := actorFrom(c); actor.Authenticated() {
		key = "user:" + actor.Username
	}
	if !l.allow(key) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorPayload{Error: errorCodeRateLimited})
		return
	}
	c.Next()
}
