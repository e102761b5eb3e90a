package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveEndpoint_PassingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("ok", time.Second, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Minute)
	defer h.Stop()

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
		return rec.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("broken", time.Second, func(context.Context) error {
		return errors.New("disk on fire")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Minute)
	defer h.Stop()

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
		return rec.Code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Contains(t, rec.Body.String(), "disk on fire")
}

func TestReadyEndpoint_GatedUntilSetReady(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Shutdown flips the gate back before draining.
	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIsReady_ReflectsReadinessChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	h.SetReady(true)

	assert.True(t, h.IsReady(), "checks have not run yet")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Minute)
	defer h.Stop()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 10*time.Millisecond)
}
