package interfaces_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"medisaga/internal/pkg/bootstrap"
	"medisaga/internal/service/booking"
	"medisaga/internal/service/booking/application"
	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/infrastructure"
	"medisaga/internal/service/booking/interfaces"
	"medisaga/internal/testfixtures"
)

func newTestServer(t *testing.T, hub *interfaces.PushHub) (*httptest.Server, *booking.Components) {
	t.Helper()
	db := testfixtures.NewSQLiteDB(t)
	require.NoError(t, infrastructure.AutoMigrate(db))

	cfg := bootstrap.DefaultConfig()
	cfg.App.Payment.Latency = 0
	cfg.App.AsyncDispatch = false
	tracer := noop.NewTracerProvider().Tracer("test")

	c, err := booking.NewComponents(booking.Options{Config: cfg, DB: db, Tracer: tracer})
	require.NoError(t, err)
	require.NoError(t, c.App.SeedCatalog(context.Background()))
	c.RegisterChoreography()
	if hub != nil {
		hub.WithHistory(c.SagaEvents)
		booking.SubscribeAll(c.Router, "push.hub", hub.HandleEvent)
	}

	mux := http.NewServeMux()
	interfaces.NewBookingHandler(c.App, hub, tracer).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, c
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestCreateBookingAndPollStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/booking", map[string]any{
		"customerName": "Meera",
		"gender":       "male",
		"dateOfBirth":  "1979-11-02",
		"serviceIds":   []string{"x-ray", "ecg"},
		"userId":       "u-77",
	}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	cid, _ := body["correlationId"].(string)
	require.NotEmpty(t, cid)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/booking/"+cid+"/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isComplete"])
	b := body["booking"].(map[string]any)
	assert.Equal(t, string(domain.StatusConfirmed), b["status"])
	assert.EqualValues(t, 1056, b["finalPrice"])
	assert.Len(t, body["events"], 5)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/user/bookings?userId=u-77&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["bookings"], 1)
}

func TestCreateBookingValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name    string
		body    any
		code    int
		message string
	}{
		{
			name: "malformed json",
			body: `{"customerName":`,
			code: http.StatusBadRequest,
		},
		{
			name:    "missing services",
			body:    map[string]any{"customerName": "A", "gender": "male", "dateOfBirth": "1990-01-01"},
			code:    http.StatusBadRequest,
			message: "validation failed: ServiceIDs failed on 'required'",
		},
		{
			name: "bad gender",
			body: map[string]any{"customerName": "A", "gender": "other", "dateOfBirth": "1990-01-01", "serviceIds": []string{"ecg"}},
			code: http.StatusBadRequest,
		},
		{
			name:    "bad date of birth",
			body:    map[string]any{"customerName": "A", "gender": "male", "dateOfBirth": "yesterday", "serviceIds": []string{"ecg"}},
			code:    http.StatusBadRequest,
			message: "Valid date of birth is required",
		},
		{
			name: "unknown service",
			body: map[string]any{"customerName": "A", "gender": "male", "dateOfBirth": "1990-01-01", "serviceIds": []string{"nope"}},
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/booking", tt.body, nil)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			}
		})
	}
}

func TestBookingStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/booking/missing/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestListServicesByGender(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/services?gender=female", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["services"], 9)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/services?gender=robot", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	admin := map[string]string{"X-Admin-ID": "ops-9"}

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/admin/quota", map[string]any{"newLimit": 5, "reason": "audit"}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 100, body["previousLimit"])
	assert.EqualValues(t, 5, body["newLimit"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/quota/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, body["limit"])
	assert.EqualValues(t, 5, body["available"])

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/admin/quota", map[string]any{"newLimit": -3}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/admin/config/discount", map[string]any{"discountPercentage": 20}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 20, body["discountPercentage"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/config/discount", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 20, body["discountPercentage"])

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/admin/config/discount", map[string]any{"discountPercentage": 101}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/admin/logs?actorType=admin&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])
	logs := body["logs"].([]any)
	for _, l := range logs {
		assert.Equal(t, "ops-9", l.(map[string]any)["actorId"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/logs?from=last-week", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/logs?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/admin/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "quotaHistory")
	assert.Contains(t, body, "byStatus")
}

func TestAdminAuthEventsAreAudited(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/admin/auth-events",
		map[string]any{"adminId": "ops-3", "email": "ops3@clinic.example", "action": "login"}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/auth-events",
		map[string]any{"adminId": "ops-3", "action": "sudo"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/admin/logs?actionSource=admin-panel", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
	entry := body["logs"].([]any)[0].(map[string]any)
	assert.Equal(t, string(domain.EventAdminAuthenticated), entry["event"])
	assert.Equal(t, "ops-3", entry["actorId"])
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, application.HealthResponse{Status: "healthy", Database: "connected", Bus: "local"},
		application.HealthResponse{Status: body["status"].(string), Database: body["database"].(string), Bus: body["bus"].(string)})

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/ws/booking/abc", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "websocket route is absent without a hub")
}
