package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/requestdata"
	"github.com/rationalmind/rationalmind-backend/internal/services"
	"github.com/rationalmind/rationalmind-backend/internal/sse"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

type fakeSessionService struct {
	active map[uuid.UUID]*types.Session
}

func (f *fakeSessionService) CreateSession(ctx context.Context, userID uuid.UUID) (*types.Session, error) {
	return &types.Session{ID: uuid.New(), UserID: userID, Num: 1, Status: types.SessionStatusActive}, nil
}
func (f *fakeSessionService) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error) {
	return nil, services.ErrSessionNotFound
}
func (f *fakeSessionService) GetOwnedActiveSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.Session, error) {
	sess, ok := f.active[sessionID]
	if !ok || sess.UserID != userID {
		return nil, services.ErrSessionNotFound
	}
	if sess.Status != types.SessionStatusActive {
		return nil, services.ErrSessionNotActive
	}
	return sess, nil
}
func (f *fakeSessionService) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Session, error) {
	return nil, nil
}
func (f *fakeSessionService) ListMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]*types.Message, error) {
	return nil, nil
}

type fakeRelay struct {
	called bool
	text   string
}

func (f *fakeRelay) StreamTurn(ctx context.Context, writer *sse.Writer, userID, sessionID uuid.UUID, messageText string, rationalityOverride *int) {
	f.called = true
	f.text = messageText
	_ = writer.Send(sse.Frame{Text: "ok"})
	writer.Done()
}

func chatRouter(userID uuid.UUID, sessions *fakeSessionService, relay *fakeRelay) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
		c.Request = c.Request.WithContext(ctx)
	})
	h := NewChatHandler(newTestLogger(), sessions, relay)
	r.GET("/v1/chat/stream", h.Stream)
	return r
}

func doGet(t *testing.T, r *gin.Engine, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", url, nil)
	r.ServeHTTP(rec, req)
	return rec
}

func TestStreamValidationRejectsBeforeStreaming(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	sessions := &fakeSessionService{active: map[uuid.UUID]*types.Session{
		sessionID: {ID: sessionID, UserID: userID, Status: types.SessionStatusActive},
	}}
	relay := &fakeRelay{}
	r := chatRouter(userID, sessions, relay)

	cases := []struct {
		url    string
		status int
	}{
		{"/v1/chat/stream?session_id=notauuid&text=hi", http.StatusBadRequest},
		{"/v1/chat/stream?session_id=" + sessionID.String() + "&text=", http.StatusBadRequest},
		{"/v1/chat/stream?session_id=" + sessionID.String() + "&text=%20%20", http.StatusBadRequest},
		{"/v1/chat/stream?session_id=" + sessionID.String() + "&text=hi&rationality=7", http.StatusBadRequest},
		{"/v1/chat/stream?session_id=" + uuid.New().String() + "&text=hi", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := doGet(t, r, tc.url)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d (body %s)", tc.url, rec.Code, tc.status, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct == "text/event-stream" {
			t.Fatalf("%s: stream opened before validation passed", tc.url)
		}
	}
	if relay.called {
		t.Fatalf("relay must not run for rejected requests")
	}
}

func TestStreamRejectsEndedSession(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	sessions := &fakeSessionService{active: map[uuid.UUID]*types.Session{
		sessionID: {ID: sessionID, UserID: userID, Status: types.SessionStatusCompleted},
	}}
	r := chatRouter(userID, sessions, &fakeRelay{})

	rec := doGet(t, r, "/v1/chat/stream?session_id="+sessionID.String()+"&text=hi")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestStreamRejectsForeignSession(t *testing.T) {
	owner := uuid.New()
	sessionID := uuid.New()
	sessions := &fakeSessionService{active: map[uuid.UUID]*types.Session{
		sessionID: {ID: sessionID, UserID: owner, Status: types.SessionStatusActive},
	}}
	r := chatRouter(uuid.New(), sessions, &fakeRelay{})

	rec := doGet(t, r, "/v1/chat/stream?session_id="+sessionID.String()+"&text=hi")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign session should look missing, got %d", rec.Code)
	}
}

func TestStreamRunsRelayForValidRequest(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	sessions := &fakeSessionService{active: map[uuid.UUID]*types.Session{
		sessionID: {ID: sessionID, UserID: userID, Status: types.SessionStatusActive},
	}}
	relay := &fakeRelay{}
	r := chatRouter(userID, sessions, relay)

	rec := doGet(t, r, "/v1/chat/stream?session_id="+sessionID.String()+"&text=hello%20there")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !relay.called || relay.text != "hello there" {
		t.Fatalf("relay not invoked correctly: called=%v text=%q", relay.called, relay.text)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
