package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kanban/api/internal/auth"
)

const (
	headerIdentity = "X-User"
	headerCSRF     = "X-CSRF-Token"
)

type requestIDKey struct{}

type identityKey struct{}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setSecurityHeaders(writer.Header())
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
			zap.String("remote_ip", clientIP(r)),
		}
		if writer.status >= http.StatusInternalServerError {
			zap.L().Error("request", fields...)
			return
		}
		zap.L().Info("request", fields...)
	})
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Content-Security-Policy", "default-src 'none'")
	h.Set("Cache-Control", "no-store")
}

// rateLimit counts requests per client IP and path. Store failures let the
// request through.
func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.limiter.Allow(r.Context(), clientIP(r)+":"+r.URL.Path)
		if err != nil {
			zap.L().Warn("rate limit store unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) limitBody(next http.Handler) http.Handler {
	limit := s.service.cfg.MaxBodySize
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > limit {
			writeError(w, errPayloadTooLarge.Status, errPayloadTooLarge.Code, errPayloadTooLarge.Message, nil)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.service.cfg.CSRFEnabled || !stateChanging(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.service.VerifyCSRF(r.Header.Get(headerCSRF)); err != nil {
			writeError(w, http.StatusForbidden, "CSRF_INVALID", "Missing or invalid CSRF token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireIdentity resolves the caller from a bearer token or, when trusted,
// the JSON identity header. Browsers cannot set headers on websocket
// upgrades, so those may pass the token as ?token=.
func (s *HTTPServer) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.identify(r)
		if err != nil {
			s.fail(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, actor)))
	})
}

func (s *HTTPServer) identify(r *http.Request) (auth.Identity, error) {
	token := bearerToken(r)
	if token == "" && websocket.IsWebSocketUpgrade(r) {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		return s.service.IdentityFromToken(token)
	}
	if !s.service.TrustIdentityHeader() {
		return auth.Identity{}, auth.ErrMissingIdentity
	}
	return auth.ParseIdentityHeader(r.Header.Get(headerIdentity))
}

func identityFrom(r *http.Request) auth.Identity {
	actor, _ := r.Context().Value(identityKey{}).(auth.Identity)
	return actor
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
