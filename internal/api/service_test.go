package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmdmdm-nz/pathwatchd/internal/pathmon"
	"github.com/dmdmdm-nz/pathwatchd/pkg/version"
)

// fakeProvider is a static PathProvider for testing
type fakeProvider struct {
	snap *pathmon.Snapshot
}

func (f *fakeProvider) Current() *pathmon.Snapshot {
	return f.snap
}

func newTestService(snap *pathmon.Snapshot) *Service {
	s := NewService("127.0.0.1", 0)
	s.Attach(&fakeProvider{snap: snap})
	return s
}

func TestHandleCurrent_Connected(t *testing.T) {
	snap := &pathmon.Snapshot{Name: "en0", IPv4: "10.0.0.2", Kind: pathmon.KindWifi, CapturedAt: 100}
	s := newTestService(snap)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.handleCurrent(rec, httptest.NewRequest(http.MethodGet, "/current", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status PathStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Connected)
	require.NotNil(t, status.Interface)
	assert.Equal(t, "en0", status.Interface.Name)
	assert.Equal(t, snap.Fingerprint(), status.Fingerprint)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestHandleCurrent_Disconnected(t *testing.T) {
	s := newTestService(nil)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.handleCurrent(rec, httptest.NewRequest(http.MethodGet, "/current", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status PathStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.Connected)
	assert.Nil(t, status.Interface)
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestHandleCurrent_NotModified(t *testing.T) {
	snap := &pathmon.Snapshot{Name: "en0", IPv4: "10.0.0.2"}
	s := newTestService(snap)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.handleCurrent(rec, httptest.NewRequest(http.MethodGet, "/current", nil))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/current", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.handleCurrent(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestHandleCurrent_MethodNotAllowed(t *testing.T) {
	s := newTestService(nil)
	defer s.Close()

	rec := httptest.NewRecorder()
	s.handleCurrent(rec, httptest.NewRequest(http.MethodPost, "/current", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCheckMinVersion(t *testing.T) {
	oldVersion := version.Version
	version.Version = "1.2.0"
	defer func() { version.Version = oldVersion }()

	s := newTestService(nil)
	defer s.Close()

	cases := []struct {
		header   string
		wantOK   bool
		wantCode int
	}{
		{"", true, 0},
		{"1.0.0", true, 0},
		{"1.2.0", true, 0},
		{"2.0.0", false, http.StatusUpgradeRequired},
		{"not-a-version", false, http.StatusBadRequest},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/watch", nil)
		if tc.header != "" {
			req.Header.Set(minVersionHeader, tc.header)
		}
		rec := httptest.NewRecorder()

		ok := s.checkMinVersion(rec, req)
		assert.Equal(t, tc.wantOK, ok, "header %q", tc.header)
		if !tc.wantOK {
			assert.Equal(t, tc.wantCode, rec.Code, "header %q", tc.header)
		}
	}
}

func TestCheckMinVersion_DevBuildPasses(t *testing.T) {
	s := newTestService(nil)
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/watch", nil)
	req.Header.Set(minVersionHeader, "99.0.0")
	rec := httptest.NewRecorder()

	// "dev" has no parseable version, so the gate lets clients through.
	assert.True(t, s.checkMinVersion(rec, req))
}

func TestHandleWatch_Streams(t *testing.T) {
	snap := &pathmon.Snapshot{Name: "en0", IPv4: "10.0.0.2"}
	s := newTestService(snap)
	defer s.Close()

	srv := httptest.NewServer(http.HandlerFunc(s.handleWatch))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "done")

	// First message carries the current snapshot.
	_, b, err := c.Read(ctx)
	require.NoError(t, err)

	var status PathStatus
	require.NoError(t, json.Unmarshal(b, &status))
	assert.True(t, status.Connected)
	require.NotNil(t, status.Interface)
	assert.Equal(t, "en0", status.Interface.Name)

	// Wait for the client to be registered, then publish a change.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Publish(&pathmon.Snapshot{Name: "en0", IPv4: "10.0.0.5"})

	_, b, err = c.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &status))
	require.NotNil(t, status.Interface)
	assert.Equal(t, "10.0.0.5", status.Interface.IPv4)
}

func TestHandleWatch_PublishesNilOnDisconnect(t *testing.T) {
	snap := &pathmon.Snapshot{Name: "en0", IPv4: "10.0.0.2"}
	s := newTestService(snap)
	defer s.Close()

	srv := httptest.NewServer(http.HandlerFunc(s.handleWatch))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "done")

	_, _, err = c.Read(ctx) // initial snapshot
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.Publish(nil)

	_, b, err := c.Read(ctx)
	require.NoError(t, err)

	var status PathStatus
	require.NoError(t, json.Unmarshal(b, &status))
	assert.False(t, status.Connected)
	assert.Nil(t, status.Interface)
}

func TestClose_Idempotent(t *testing.T) {
	s := newTestService(nil)

	require.NotPanics(t, func() {
		_ = s.Close()
		_ = s.Close()
	})
}

func TestPublish_AfterCloseIsNoOp(t *testing.T) {
	s := newTestService(nil)
	require.NoError(t, s.Close())

	require.NotPanics(t, func() {
		s.Publish(&pathmon.Snapshot{Name: "en0"})
	})
}
