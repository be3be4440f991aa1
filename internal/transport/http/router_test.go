package httptransport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formintake/internal/health"
	platformmetrics "formintake/internal/platform/metrics"
	"formintake/internal/registration/handler"
	"formintake/internal/registration/metrics"
	"formintake/internal/registration/service"
	"formintake/internal/registration/store"
	"formintake/pkg/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := platformmetrics.New()
	m := metrics.NewWithRegisterer(reg)
	st := store.NewInMemory()
	return NewRouter(Deps{
		Registrations: handler.New(service.New(st, service.WithMetrics(m)), nil, m),
		Health:        health.New(st, nil),
		Metrics:       reg.Handler(),
	})
}

func TestRouter_Welcome(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/", APIPrefix, APIPrefix + "/"} {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertJSONContains(t, rr, "message", "Welcome to the Simple API Service")
	}
}

func TestRouter_RoutesServedUnderBothPrefixes(t *testing.T) {
	r := newTestRouter(t)
	valid := map[string]any{"formType": "D243", "penColourNotUsed": "BLACK", "guidanceRead": "YES"}

	for _, prefix := range []string{"", APIPrefix} {
		t.Run("prefix "+prefix, func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, prefix+"/registrations", valid))
			testutil.AssertStatus(t, rr, http.StatusCreated)
			regID := testutil.DecodeObject(t, rr)["id"].(string)

			rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, prefix+"/registrations/"+regID))
			testutil.AssertStatus(t, rr, http.StatusOK)
			testutil.AssertJSONContains(t, rr, "formType", "D243")

			rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, prefix+"/health"))
			testutil.AssertStatus(t, rr, http.StatusOK)
			testutil.AssertJSONContains(t, rr, "status", "ok")
		})
	}
}

func TestRouter_RecordsCreatedUnderOnePrefixAreVisibleUnderTheOther(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/registrations",
		map[string]any{"formType": "AD01", "penColourNotUsed": "BLUE", "guidanceRead": "NO"}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	regID := testutil.DecodeObject(t, rr)["id"].(string)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, APIPrefix+"/registrations/"+regID))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestRouter_UnknownPathIsJSON404(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/nothing-here"))
	testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Not Found")
}

func TestRouter_MetricsExposesRegistrationCounters(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/registrations", map[string]any{}))
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	assert.Contains(t, body, `formintake_submissions_total{outcome="rejected"} 1`)
	assert.Contains(t, body, `formintake_http_request_duration_seconds`)
}

func TestRouter_WithoutMetrics(t *testing.T) {
	r := NewRouter(Deps{Health: health.New(store.NewInMemory(), nil)})
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
