package intercept

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tablepos/pkg/apperr"
	"tablepos/pkg/logger"
	"tablepos/pkg/otel"
)

// AnyRole in a Policy entry admits every authenticated actor.
const AnyRole = "*"

// Policy maps an operation name to the roles allowed to run it.
// Operations missing from the policy are denied.
type Policy map[string][]string

// Allows reports whether a may run op.
func (p Policy) Allows(op string, a Actor) bool {
	for _, role := range p[op] {
		if role == AnyRole || a.HasRole(role) {
			return true
		}
	}
	return false
}

// Authorize rejects requests the policy does not allow. Rejected requests
// never reach next.
func Authorize(p Policy) Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (any, error) {
			if req.Actor.Name == "" {
				return nil, apperr.Wrap(ErrUnauthorized, "%s: no actor", req.Operation)
			}
			if !p.Allows(req.Operation, req.Actor) {
				return nil, apperr.Wrap(ErrForbidden, "%s may not %s", req.Actor.Name, req.Operation)
			}
			return next(ctx, req)
		}
	}
}

// Logging records every request that passes through it and its outcome.
func Logging(log *logger.Logger) Interceptor {
	log = log.With("component", "intercept")
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (any, error) {
			log.Debug(ctx, "operation started", "request_id", req.ID, "operation", req.Operation, "actor", req.Actor.Name)
			res, err := next(ctx, req)
			if err != nil {
				log.Warn(ctx, "operation failed",
					"request_id", req.ID,
					"operation", req.Operation,
					"actor", req.Actor.Name,
					"kind", apperr.KindOf(err),
					"error", err,
				)
				return res, err
			}
			log.Info(ctx, "operation succeeded", "request_id", req.ID, "operation", req.Operation, "actor", req.Actor.Name)
			return res, nil
		}
	}
}

const (
	DefaultSlow     = time.Second
	DefaultVerySlow = 2 * time.Second
)

// Timing measures the inner handler inside a span and flags operations
// slower than slow (info) or verySlow (warn).
func Timing(log *logger.Logger, slow, verySlow time.Duration) Interceptor {
	log = log.With("component", "intercept")
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (any, error) {
			ctx, span := otel.AddSpan(ctx, "op."+req.Operation,
				attribute.String("request.id", req.ID),
				attribute.String("actor", req.Actor.Name),
			)
			defer span.End()

			start := time.Now()
			res, err := next(ctx, req)
			elapsed := time.Since(start)

			span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, string(apperr.KindOf(err)))
			}
			kv := []any{"request_id", req.ID, "operation", req.Operation, "duration", elapsed.String()}
			switch {
			case elapsed > verySlow:
				log.Warn(ctx, "very slow operation", kv...)
			case elapsed > slow:
				log.Info(ctx, "slow operation", kv...)
			default:
				log.Debug(ctx, "operation timed", kv...)
			}
			return res, err
		}
	}
}

// Standard is the production chain: Authorize, then Logging, then Timing.
func Standard(p Policy, log *logger.Logger) []Interceptor {
	return []Interceptor{
		Authorize(p),
		Logging(log),
		Timing(log, DefaultSlow, DefaultVerySlow),
	}
}
