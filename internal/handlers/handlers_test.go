package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/code-100-precent/LingRelay/pkg/auth"
	"github.com/code-100-precent/LingRelay/pkg/realtime"
	"github.com/code-100-precent/LingRelay/pkg/relay"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	counts map[string]int64
	err    error
	asked  []string
}

func (s *stubCounter) UnreadCount(_ context.Context, room string) (int64, error) {
	s.asked = append(s.asked, room)
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[room], nil
}

func testVerifier() auth.Verifier {
	principals := map[string]auth.Principal{
		"user-token":  {ID: "u1"},
		"admin-token": {ID: "a1", IsAdmin: true},
	}
	return auth.VerifierFunc(func(_ context.Context, credential string) (auth.Principal, error) {
		p, ok := principals[credential]
		if !ok {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		return p, nil
	})
}

func setupRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandlers(opts).Register(r)
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	rs := relay.NewServer(relay.DefaultConfig(), testVerifier(), nil, nil, nil)
	r := setupRouter(Options{Relay: rs})

	w := do(r, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["sessions"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(Options{})
	w := do(r, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lingrelay_")
}

func TestWebSocketRouteMounted(t *testing.T) {
	rs := relay.NewServer(relay.DefaultConfig(), testVerifier(), nil, nil, nil)
	r := setupRouter(Options{Relay: rs})

	// Plain GET without upgrade headers reaches the relay and is rejected there.
	w := do(r, relay.RouteWebSocket, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProbe_Connected(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	t.Cleanup(func() { _ = feed.Close() })
	r := setupRouter(Options{Prober: realtime.NewProber(feed, nil)})

	w := do(r, "/api/realtime/probe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["connected"])
}

func TestProbe_FeedClosed(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	require.NoError(t, feed.Close())
	r := setupRouter(Options{Prober: realtime.NewProber(feed, nil)})

	w := do(r, "/api/realtime/probe", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, realtime.ErrChannelClosed.Error(), body["error"])
}

func TestUnread_OwnRoom(t *testing.T) {
	counter := &stubCounter{counts: map[string]int64{"u1": 3}}
	r := setupRouter(Options{Verifier: testVerifier(), Unread: counter})

	w := do(r, "/api/rooms/u1/unread", "user-token")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 200, body["code"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "u1", data["roomId"])
	assert.EqualValues(t, 3, data["unread"])
}

func TestUnread_UserCannotReadOtherRoom(t *testing.T) {
	counter := &stubCounter{}
	r := setupRouter(Options{Verifier: testVerifier(), Unread: counter})

	w := do(r, "/api/rooms/u2/unread", "user-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, counter.asked)
}

func TestUnread_AdminAnyRoom(t *testing.T) {
	counter := &stubCounter{counts: map[string]int64{"u2": 1}}
	r := setupRouter(Options{Verifier: testVerifier(), Unread: counter})

	w := do(r, "/api/rooms/u2/unread", "admin-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u2"}, counter.asked)
}

func TestUnread_RequiresToken(t *testing.T) {
	r := setupRouter(Options{Verifier: testVerifier(), Unread: &stubCounter{}})

	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/rooms/u1/unread", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/rooms/u1/unread", "bogus").Code)
}

func TestUnread_StoreFailure(t *testing.T) {
	r := setupRouter(Options{Verifier: testVerifier(), Unread: &stubCounter{err: errors.New("db down")}})

	w := do(r, "/api/rooms/u1/unread", "user-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 500, decode(t, w)["code"])
}
