package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/internal/services/call"
	"github.com/karthivk/Callcenter/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRooms struct{}

func (stubRooms) GenerateRoomName(ctx context.Context) (string, error) { return "call_handler00", nil }
func (stubRooms) CreateCallRoom(ctx context.Context, roomName string, config *domain.RoomConfig) error {
	return nil
}
func (stubRooms) DeleteRoom(ctx context.Context, roomName string) error { return nil }

type stubDialer struct{}

func (stubDialer) PlaceCall(to, answerURL, statusURL string) (string, error) {
	return "CA_handler_1", nil
}

func newTestRouter(t *testing.T) (*mux.Router, *call.Service) {
	t.Helper()

	cfg := &config.ServerConfig{
		Port:               "8081",
		APIBaseURL:         "http://localhost:8081",
		LiveKitSIPEndpoint: "sip.example.com",
		CallSetupTimeout:   time.Minute,
		InitiateRPS:        100,
	}
	svc := call.NewService(cfg, stubRooms{}, stubDialer{}, state.NewMemoryStore(), nil, nil)
	t.Cleanup(svc.Shutdown)

	router := mux.NewRouter()
	NewCallHandler(svc).SetupCallRoutes(router)
	NewTwilioWebhookHandler(svc).SetupTwilioWebhookRoutes(router)
	NewMSG91WebhookHandler(svc, "").SetupMSG91WebhookRoutes(router)
	NewLiveKitWebhookHandler(svc).SetupLiveKitWebhookRoutes(router)
	NewHealthHandler("callcenter", "test", nil).SetupHealthRoutes(router)
	return router, svc
}

func initiateTestCall(t *testing.T, router *mux.Router) call.InitiateCallResponse {
	t.Helper()

	body, _ := json.Marshal(call.InitiateCallRequest{
		PhoneNumber:  "+14155550100",
		Language:     "en-US",
		LanguageName: "English",
		Prompt:       "Say hello",
	})
	req := httptest.NewRequest(http.MethodPost, "/call/initiate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp call.InitiateCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp
}

func TestInitiateCallEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	body := []byte(`{"phone_number": "", "prompt": ""}`)
	req := httptest.NewRequest(http.MethodPost, "/call/initiate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp call.InitiateCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "phone_number and prompt required", resp.Error)
}

func TestInitiateCallEndpointBadBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/call/initiate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	initiated := initiateTestCall(t, router)

	req := httptest.NewRequest(http.MethodGet, "/call/status?call_id="+initiated.CallID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp call.CallStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, initiated.CallID, resp.CallID)
	assert.Equal(t, string(domain.CallStatusQueued), resp.Status)
	assert.Equal(t, "call_handler00", resp.RoomName)
	assert.Equal(t, "CA_handler_1", resp.TwilioCallSid)
}

func TestCallStatusEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/call/status?call_id=does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp call.CallStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Call not found", resp.Error)
}

func TestRoomConfigEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	initiated := initiateTestCall(t, router)

	req := httptest.NewRequest(http.MethodGet, "/call/config?room_name="+initiated.RoomName, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp call.RoomConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, initiated.CallID, resp.CallID)
	assert.Equal(t, "Say hello", resp.Prompt)
}

func TestRecentCallsEndpointWithoutDatabase(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/call/recent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	var resp call.RecentCallsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "call history not available", resp.Error)
}

func TestRecentCallsEndpointBadLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/call/recent?limit=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "callcenter")
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return assert.AnError }

func TestHealthzReportsDegradedDatabase(t *testing.T) {
	router := mux.NewRouter()
	NewHealthHandler("callcenter", "test", failingPinger{}).SetupHealthRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}
