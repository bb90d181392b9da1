package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/classroom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPresenceReader struct {
	mock.Mock
}

func (m *MockPresenceReader) ClientCount(userID string) int {
	return m.Called(userID).Int(0)
}

func (m *MockPresenceReader) PendingCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

var _ PresenceReader = (*MockPresenceReader)(nil)

func newRouter(t *testing.T, presence PresenceReader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "Classrooms.txt")
	require.NoError(t, os.WriteFile(path, []byte("908호,CLASS,30\n911호,LAB,20\n"), 0o644))
	catalog, err := classroom.NewCatalog(path)
	require.NoError(t, err)

	r := gin.New()
	NewHandlers(presence, catalog).Register(r.Group("/api/v1"))
	return r
}

func do(r *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestPresence(t *testing.T) {
	presence := new(MockPresenceReader)
	presence.On("ClientCount", "alice").Return(2)
	presence.On("PendingCount", mock.Anything, "alice").Return(0, nil)
	presence.On("PendingCount", mock.Anything, "bob").Return(0, errors.New("io"))

	r := newRouter(t, presence)

	w := do(r, http.MethodGet, "/api/v1/users/alice/presence", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"alice","clients":2,"pending":0}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/users/bob/presence", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCapacity(t *testing.T) {
	r := newRouter(t, new(MockPresenceReader))

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantBody string
	}{
		{name: "Allowed", target: "/api/v1/rooms/908호/capacity?count=15", wantCode: http.StatusOK,
			wantBody: `{"room":"908호","exists":true,"allowed":true}`},
		{name: "Over Half", target: "/api/v1/rooms/908호/capacity?count=16", wantCode: http.StatusOK,
			wantBody: `{"room":"908호","exists":true,"allowed":false}`},
		{name: "Unknown Room", target: "/api/v1/rooms/101호/capacity?count=1", wantCode: http.StatusOK,
			wantBody: `{"room":"101호","exists":false,"allowed":false}`},
		{name: "Missing Count", target: "/api/v1/rooms/908호/capacity", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestRoomsAndUpdateCapacity(t *testing.T) {
	r := newRouter(t, new(MockPresenceReader))

	w := do(r, http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Rooms []classroom.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, []classroom.Room{
		{Name: "908호", Type: classroom.TypeClass, Capacity: 30},
		{Name: "911호", Type: classroom.TypeLab, Capacity: 20},
	}, listed.Rooms)

	w = do(r, http.MethodPut, "/api/v1/rooms/911호/capacity", []byte(`{"capacity":40}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/v1/rooms/911호/capacity?count=20", nil)
	assert.JSONEq(t, `{"room":"911호","exists":true,"allowed":true}`, w.Body.String())

	w = do(r, http.MethodPut, "/api/v1/rooms/101호/capacity", []byte(`{"capacity":40}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/v1/rooms/911호/capacity", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/rooms/911호/capacity", []byte(`{"capacity":-3}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
