package intercept

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tablepos/pkg/apperr"
	"tablepos/pkg/logger"
)

func tracer(name string, calls *[]string) Interceptor {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (any, error) {
			*calls = append(*calls, name+">")
			res, err := next(ctx, req)
			*calls = append(*calls, "<"+name)
			return res, err
		}
	}
}

func TestChainOrder(t *testing.T) {
	var calls []string
	h := Chain(func(context.Context, Request) (any, error) {
		calls = append(calls, "handler")
		return "ok", nil
	}, tracer("a", &calls), tracer("b", &calls), tracer("c", &calls))

	res, err := h(context.Background(), Request{Operation: "x"})
	if err != nil || res != "ok" {
		t.Fatalf("unexpected result %v, %v", res, err)
	}
	want := "a> b> c> handler <c <b <a"
	if got := strings.Join(calls, " "); got != want {
		t.Fatalf("calls = %q, want %q", got, want)
	}
}

func TestForbiddenSkipsInnerLayers(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, "test", nil)
	ran := false
	h := Chain(func(context.Context, Request) (any, error) {
		ran = true
		return nil, nil
	}, Standard(Policy{"change_state": {"chef"}}, log)...)

	out := Run(context.Background(), h, Request{
		ID:        "r1",
		Operation: "change_state",
		Actor:     Actor{Name: "guest", Roles: []string{"waiter"}},
	})
	if out.OK || out.Kind != apperr.KindForbidden {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if ran {
		t.Fatal("handler ran")
	}
	if buf.Len() != 0 {
		t.Fatalf("logging or timing ran: %s", buf.String())
	}
}

func TestAuthorize(t *testing.T) {
	p := Policy{
		"pay":    {"cashier", "admin"},
		"lookup": {AnyRole},
	}
	ok := func(context.Context, Request) (any, error) { return 1, nil }
	h := Authorize(p)(ok)

	cases := []struct {
		name string
		req  Request
		kind apperr.Kind
	}{
		{"allowed role", Request{Operation: "pay", Actor: Actor{Name: "c", Roles: []string{"cashier"}}}, ""},
		{"wrong role", Request{Operation: "pay", Actor: Actor{Name: "w", Roles: []string{"waiter"}}}, apperr.KindForbidden},
		{"any role", Request{Operation: "lookup", Actor: Actor{Name: "w"}}, ""},
		{"unknown operation", Request{Operation: "drop", Actor: Actor{Name: "a", Roles: []string{"admin"}}}, apperr.KindForbidden},
		{"anonymous", Request{Operation: "lookup"}, apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h(context.Background(), tc.req)
			if got := apperr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %q, want %q (%v)", got, tc.kind, err)
			}
		})
	}
}

func TestLoggingRecordsOutcome(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "test", nil)
	fail := Logging(log)(func(context.Context, Request) (any, error) {
		return nil, apperr.Wrap(apperr.New(apperr.KindOrderLocked, "locked"), "order 3")
	})

	out := Run(context.Background(), fail, Request{ID: "r9", Operation: "add_item", Actor: Actor{Name: "ana"}})
	if out.Kind != apperr.KindOrderLocked {
		t.Fatalf("outcome kind %q", out.Kind)
	}
	got := buf.String()
	for _, want := range []string{"operation failed", "r9", "add_item", "ana", "OrderLocked"} {
		if !strings.Contains(got, want) {
			t.Errorf("log missing %q: %s", want, got)
		}
	}
}

func TestTimingFlagsSlowOperations(t *testing.T) {
	cases := []struct {
		name string
		slow time.Duration
		very time.Duration
		want string
	}{
		{"fast", time.Hour, 2 * time.Hour, "operation timed"},
		{"slow", time.Millisecond, time.Hour, "slow operation"},
		{"very slow", time.Microsecond, time.Millisecond, "very slow operation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(&buf, logger.LevelDebug, "test", nil)
			h := Timing(log, tc.slow, tc.very)(func(context.Context, Request) (any, error) {
				time.Sleep(5 * time.Millisecond)
				return nil, nil
			})
			if _, err := h(context.Background(), Request{Operation: "get_order"}); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if !strings.Contains(buf.String(), `"msg":"`+tc.want+`"`) {
				t.Fatalf("want %q in %s", tc.want, buf.String())
			}
		})
	}
}

func TestRunFoldsErrors(t *testing.T) {
	out := Run(context.Background(), func(context.Context, Request) (any, error) {
		return nil, errors.New("boom")
	}, Request{})
	if out.OK || out.Kind != apperr.KindInternal || out.Message != "boom" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
