package call

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/domain"
	"github.com/karthivk/Callcenter/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	mu          sync.Mutex
	createErr   error
	created     []string
	deleted     []string
	nextName    string
	nameCounter int
}

func (f *fakeRooms) GenerateRoomName(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextName != "" {
		return f.nextName, nil
	}
	f.nameCounter++
	return "call_test0000", nil
}

func (f *fakeRooms) CreateCallRoom(ctx context.Context, roomName string, config *domain.RoomConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, roomName)
	return nil
}

func (f *fakeRooms) DeleteRoom(ctx context.Context, roomName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, roomName)
	return nil
}

func (f *fakeRooms) deletedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeDialer struct {
	mu        sync.Mutex
	sid       string
	err       error
	calls     int
	lastTo    string
	answerURL string
	statusURL string
}

func (f *fakeDialer) PlaceCall(to, answerURL, statusURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTo = to
	f.answerURL = answerURL
	f.statusURL = statusURL
	if f.err != nil {
		return "", f.err
	}
	return f.sid, nil
}

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*domain.CallRecord
	order   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*domain.CallRecord)}
}

func (f *fakeRepo) Create(ctx context.Context, record *domain.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *record
	f.records[record.CallID] = &copied
	f.order = append(f.order, record.CallID)
	return nil
}

func (f *fakeRepo) GetByCallID(ctx context.Context, callID string) (*domain.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[callID]
	if !ok {
		return nil, assert.AnError
	}
	copied := *record
	return &copied, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, callID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[callID]; ok {
		record.Status = status
	}
	return nil
}

func (f *fakeRepo) UpdateCallSid(ctx context.Context, callID string, callSid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[callID]; ok {
		record.TwilioCallSid = callSid
	}
	return nil
}

func (f *fakeRepo) MarkEnded(ctx context.Context, callID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[callID]; ok {
		record.Status = status
		now := time.Now().UTC()
		record.EndedAt = &now
	}
	return nil
}

func (f *fakeRepo) ListRecent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CallRecord
	for i := len(f.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		copied := *f.records[f.order[i]]
		out = append(out, &copied)
	}
	return out, nil
}

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Port:               "8081",
		APIBaseURL:         "http://localhost:8081",
		LiveKitSIPEndpoint: "sip.example.com",
		AgentName:          "callcenter-agent",
		CallSetupTimeout:   time.Minute,
		InitiateRPS:        100,
	}
}

func newTestService(cfg *config.ServerConfig, rooms RoomAPI, dialer Dialer) (*Service, state.Store) {
	store := state.NewMemoryStore()
	svc := NewService(cfg, rooms, dialer, store, nil, nil)
	return svc, store
}

func TestInitiateCallValidation(t *testing.T) {
	svc, _ := newTestService(testConfig(), &fakeRooms{}, &fakeDialer{sid: "CA1"})

	_, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.InitiateCall(context.Background(), &InitiateCallRequest{PhoneNumber: "+14155550100"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.InitiateCall(context.Background(), &InitiateCallRequest{Prompt: "Say hello"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestInitiateCallHappyPath(t *testing.T) {
	rooms := &fakeRooms{}
	dialer := &fakeDialer{sid: "CA_sid_1"}
	svc, store := newTestService(testConfig(), rooms, dialer)

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber:  "1 415-555-0100",
		Language:     "en-US",
		LanguageName: "English",
		Prompt:       "Remind about the appointment",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.CallID)
	assert.Equal(t, "call_test0000", resp.RoomName)
	assert.Equal(t, "CA_sid_1", resp.TwilioCallSid)
	assert.Equal(t, string(domain.CallStatusQueued), resp.Status)
	assert.Equal(t, "Call initiated successfully", resp.Message)

	// Number is normalized before dialing
	assert.Equal(t, "+14155550100", dialer.lastTo)
	assert.Contains(t, dialer.answerURL, "/webhook/twilio/answer?call_id="+resp.CallID)
	assert.Contains(t, dialer.answerURL, "room_name=call_test0000")
	assert.True(t, strings.HasSuffix(dialer.statusURL, "/webhook/twilio/status"))

	// State keeps the number as submitted and is pollable
	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusQueued, callState.Status)
	assert.Equal(t, "CA_sid_1", callState.TwilioCallSid)
	assert.Equal(t, "1 415-555-0100", callState.Phone)

	roomConfig, err := store.GetRoomConfig(context.Background(), "call_test0000")
	require.NoError(t, err)
	assert.Equal(t, resp.CallID, roomConfig.CallID)
	assert.Equal(t, "1 415-555-0100", roomConfig.Phone)
	assert.Equal(t, "Remind about the appointment", roomConfig.Prompt)

	svc.Shutdown()
}

func TestInitiateCallWithoutDialer(t *testing.T) {
	rooms := &fakeRooms{}
	svc, store := newTestService(testConfig(), rooms, nil)

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, string(domain.CallStatusRoomCreated), resp.Status)
	assert.Empty(t, resp.TwilioCallSid)

	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusRoomCreated, callState.Status)
}

func TestInitiateCallRoomFailure(t *testing.T) {
	rooms := &fakeRooms{createErr: assert.AnError}
	svc, store := newTestService(testConfig(), rooms, &fakeDialer{sid: "CA1"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "failed to create room")
	assert.NotEmpty(t, resp.CallID)

	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, callState.Status)
}

func TestInitiateCallDialFailure(t *testing.T) {
	rooms := &fakeRooms{}
	svc, store := newTestService(testConfig(), rooms, &fakeDialer{err: assert.AnError})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "failed to place call")

	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, callState.Status)

	// A failed call is terminal, so the room was torn down
	assert.Contains(t, rooms.deletedRooms(), "call_test0000")
}

func TestInitiateCallRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.InitiateRPS = 0.001
	svc, _ := newTestService(cfg, &fakeRooms{}, &fakeDialer{sid: "CA1"})

	req := &InitiateCallRequest{PhoneNumber: "+14155550100", Prompt: "Say hello"}

	resp, err := svc.InitiateCall(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	_, err = svc.InitiateCall(context.Background(), req)
	assert.ErrorIs(t, err, ErrRateLimited)
	svc.Shutdown()
}

func TestHandleProviderStatus(t *testing.T) {
	rooms := &fakeRooms{}
	svc, store := newTestService(testConfig(), rooms, &fakeDialer{sid: "CA_sid_2"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	// Non-terminal update keeps the call live
	require.NoError(t, svc.HandleProviderStatus(context.Background(), "CA_sid_2", "in-progress"))
	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusConnected, callState.Status)
	assert.Empty(t, rooms.deletedRooms())

	// Terminal update cleans up the room
	require.NoError(t, svc.HandleProviderStatus(context.Background(), "CA_sid_2", "completed"))
	callState, err = store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, callState.Status)
	assert.Contains(t, rooms.deletedRooms(), resp.RoomName)

	// Unknown SID resolves to ErrCallNotFound
	assert.ErrorIs(t, svc.HandleProviderStatus(context.Background(), "CA_unknown", "completed"), ErrCallNotFound)
}

func TestHandleAnswer(t *testing.T) {
	svc, store := newTestService(testConfig(), &fakeRooms{}, &fakeDialer{sid: "CA_sid_3"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	doc, err := svc.HandleAnswer(context.Background(), resp.CallID, resp.RoomName, "CA_sid_3")
	require.NoError(t, err)
	assert.Contains(t, doc, "sip:"+resp.RoomName+"@sip.example.com")

	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAnswered, callState.Status)

	// Unknown calls still get usable TwiML back
	doc, err = svc.HandleAnswer(context.Background(), "nope", "call_ghost000", "")
	require.NoError(t, err)
	assert.Contains(t, doc, "sip:call_ghost000@sip.example.com")
	svc.Shutdown()
}

func TestHandleRoomFinished(t *testing.T) {
	svc, store := newTestService(testConfig(), &fakeRooms{}, &fakeDialer{sid: "CA_sid_4"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.NoError(t, svc.HandleRoomFinished(context.Background(), resp.RoomName))

	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusEnded, callState.Status)

	assert.ErrorIs(t, svc.HandleRoomFinished(context.Background(), "call_unknown0"), ErrCallNotFound)
}

func TestGetCallStatusFallsBackToAudit(t *testing.T) {
	repo := newFakeRepo()
	store := state.NewMemoryStore()
	svc := NewService(testConfig(), &fakeRooms{}, &fakeDialer{sid: "CA_sid_7"}, store, repo, nil)

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NoError(t, svc.HandleProviderStatus(context.Background(), "CA_sid_7", "completed"))

	// Once the live state is gone the audit record still answers
	require.NoError(t, store.DeleteCall(context.Background(), resp.CallID))
	_, err = store.GetCall(context.Background(), resp.CallID)
	require.ErrorIs(t, err, state.ErrNotFound)

	callState, err := svc.GetCallStatus(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, resp.CallID, callState.CallID)
	assert.Equal(t, "+14155550100", callState.Phone)
	assert.Equal(t, domain.CallStatusCompleted, callState.Status)
	assert.Equal(t, "CA_sid_7", callState.TwilioCallSid)

	// Calls unknown to both layers still 404
	_, err = svc.GetCallStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCallNotFound)
	svc.Shutdown()
}

func TestRecentCalls(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(testConfig(), &fakeRooms{}, &fakeDialer{sid: "CA1"}, state.NewMemoryStore(), repo, nil)

	for _, prompt := range []string{"first", "second", "third"} {
		resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
			PhoneNumber: "+14155550100",
			Prompt:      prompt,
		})
		require.NoError(t, err)
		require.True(t, resp.Success)
	}

	records, err := svc.RecentCalls(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Prompt)
	assert.Equal(t, "second", records[1].Prompt)
	svc.Shutdown()
}

func TestRecentCallsWithoutDatabase(t *testing.T) {
	svc, _ := newTestService(testConfig(), &fakeRooms{}, nil)

	_, err := svc.RecentCalls(context.Background(), 10)
	assert.ErrorIs(t, err, ErrAuditDisabled)
}

func TestWatchdogFailsStuckCalls(t *testing.T) {
	cfg := testConfig()
	cfg.CallSetupTimeout = 50 * time.Millisecond
	rooms := &fakeRooms{}
	svc, store := newTestService(cfg, rooms, &fakeDialer{sid: "CA_sid_5"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Eventually(t, func() bool {
		callState, err := store.GetCall(context.Background(), resp.CallID)
		return err == nil && callState.Status == domain.CallStatusFailed
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, rooms.deletedRooms(), resp.RoomName)
}

func TestWatchdogCancelledOnTerminalStatus(t *testing.T) {
	cfg := testConfig()
	cfg.CallSetupTimeout = 100 * time.Millisecond
	svc, store := newTestService(cfg, &fakeRooms{}, &fakeDialer{sid: "CA_sid_6"})

	resp, err := svc.InitiateCall(context.Background(), &InitiateCallRequest{
		PhoneNumber: "+14155550100",
		Prompt:      "Say hello",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	require.NoError(t, svc.HandleProviderStatus(context.Background(), "CA_sid_6", "completed"))

	time.Sleep(200 * time.Millisecond)
	callState, err := store.GetCall(context.Background(), resp.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, callState.Status)
}
