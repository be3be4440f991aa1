package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formintake/internal/registration/store"
	"formintake/pkg/testutil"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestHealth(t *testing.T) {
	testutil.Given(t, "a reachable store", func(t *testing.T) {
		h := New(store.NewInMemory(), nil)
		calls := 0
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		h.now = func() time.Time {
			calls++
			return base.Add(time.Duration(calls-1) * 7 * time.Millisecond)
		}

		testutil.Then(t, "it reports connected with the round trip", func(t *testing.T) {
			rr := testutil.DoRequest(newRouter(h), testutil.NewRequest(t, http.MethodGet, "/health"))
			testutil.AssertStatus(t, rr, http.StatusOK)

			body := testutil.DecodeObject(t, rr)
			assert.Equal(t, "ok", body["status"])
			db := body["database"].(map[string]any)
			assert.Equal(t, "connected", db["status"])
			assert.EqualValues(t, 7, db["responseTime"])
			assert.NotContains(t, db, "error")
		})
	})

	testutil.Given(t, "an unreachable store", func(t *testing.T) {
		h := New(pingerFunc(func(context.Context) error {
			return errors.New("database is locked")
		}), nil)

		testutil.Then(t, "it reports disconnected with 503", func(t *testing.T) {
			rr := testutil.DoRequest(newRouter(h), testutil.NewRequest(t, http.MethodGet, "/health"))
			testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)

			body := testutil.DecodeObject(t, rr)
			assert.Equal(t, "error", body["status"])
			db := body["database"].(map[string]any)
			assert.Equal(t, "disconnected", db["status"])
			assert.Equal(t, "database is locked", db["error"])
			assert.NotContains(t, db, "responseTime")
		})
	})

	testutil.When(t, "the store hangs", func(t *testing.T) {
		h := New(pingerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := testutil.NewRequest(t, http.MethodGet, "/health").WithContext(ctx)
		rr := testutil.DoRequest(newRouter(h), req)
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
