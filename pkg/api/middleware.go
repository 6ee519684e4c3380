package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"tablepos/pkg/intercept"
	"tablepos/pkg/otel"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyActor
)

const (
	sessionCookie = "session_id"
	sessionHeader = "X-Session-ID"
)

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func actorFromContext(ctx context.Context) intercept.Actor {
	a, _ := ctx.Value(ctxKeyActor).(intercept.Actor)
	return a
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.tracer != nil {
			ctx = otel.InjectTracing(ctx, s.tracer)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware resolves the session into an actor. Authorization happens
// per operation in the interceptor chain.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Lookup(r.Context(), sessionID(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "login required")
			return
		}
		actor := intercept.Actor{Name: sess.Username, Roles: sess.Roles}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyActor, actor)))
	})
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(sessionHeader)
}
