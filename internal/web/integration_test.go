package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/metrics"
	"github.com/vbonduro/gallery/internal/persistence"
	"github.com/vbonduro/gallery/internal/realtime"
	"github.com/vbonduro/gallery/internal/service"
	"github.com/vbonduro/gallery/internal/web"
)

// pngBytes starts with the PNG signature so content sniffing identifies it.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type testEnv struct {
	srv *httptest.Server
	hub *realtime.Hub
}

// newTestServer sets up a real web.Server backed by a temporary SQLite
// database and fallback directory.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	hub := realtime.NewHub(slog.Default(), []string{"*"})
	go hub.Run(ctx)

	m := metrics.New()
	svc, cleanup := service.Bootstrap(ctx, service.BootstrapConfig{
		DBPath:  filepath.Join(t.TempDir(), "gallery.db"),
		DataDir: t.TempDir(),
	}, hub, m, slog.Default())

	srv := httptest.NewServer(web.NewServer(svc, hub, m, []string{"*"}, slog.Default()))
	t.Cleanup(func() {
		srv.Close()
		cleanup()
		cancel()
	})
	return &testEnv{srv: srv, hub: hub}
}

// buildMultipartBody creates a multipart/form-data body with an "image" field
// and the given text fields.
func buildMultipartBody(t *testing.T, imageData []byte, fields map[string]string) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if imageData != nil {
		fw, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(imageData)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func uploadPhoto(t *testing.T, env *testEnv, fields map[string]string) domain.Photo {
	t.Helper()
	body, ct := buildMultipartBody(t, pngBytes, fields)
	resp, err := http.Post(env.srv.URL+"/api/photos", ct, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST /api/photos status %d: %s", resp.StatusCode, b)
	}
	var p domain.Photo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func doJSON(t *testing.T, method, url string, in, out any) int {
	t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func decodeAPIError(t *testing.T, r io.Reader) web.APIErrorResponse {
	t.Helper()
	var e web.APIErrorResponse
	require.NoError(t, json.NewDecoder(r).Decode(&e))
	return e
}

func TestIntegration_SubmitPhoto(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env := newTestServer(t)

	p := uploadPhoto(t, env, map[string]string{"title": "  Dawn  ", "category": "nature"})
	assert.Equal(t, "Dawn", p.Title)
	assert.Equal(t, domain.DefaultAuthor, p.Author)
	assert.Equal(t, domain.CategoryNature, p.Category)
	assert.True(t, strings.HasPrefix(p.Src, "data:image/png;base64,"))
	assert.Zero(t, p.Likes)
	assert.False(t, p.Liked)

	var got domain.Photo
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/api/photos/"+p.ID, nil, &got))
	assert.Equal(t, p, got)
}

func TestIntegration_SubmitRejectsNonImage(t *testing.T) {
	env := newTestServer(t)

	body, ct := buildMultipartBody(t, []byte("%PDF-1.4 not an image"), map[string]string{"title": "doc"})
	resp, err := http.Post(env.srv.URL+"/api/photos", ct, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeAPIError(t, resp.Body)
	require.Len(t, e.Errors, 1)
	assert.Equal(t, "validation_error", e.Errors[0].Code)

	var list struct {
		Total int `json:"total"`
	}
	doJSON(t, http.MethodGet, env.srv.URL+"/api/photos", nil, &list)
	assert.Zero(t, list.Total)
}

func TestIntegration_SubmitRequiresImage(t *testing.T) {
	env := newTestServer(t)

	body, ct := buildMultipartBody(t, nil, map[string]string{"title": "nothing"})
	resp, err := http.Post(env.srv.URL+"/api/photos", ct, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_GetImage(t *testing.T) {
	env := newTestServer(t)
	p := uploadPhoto(t, env, nil)

	resp, err := http.Get(env.srv.URL + "/api/photos/" + p.ID + "/image")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, b)
}

func TestIntegration_ListFiltersAndSorts(t *testing.T) {
	env := newTestServer(t)
	uploadPhoto(t, env, map[string]string{"title": "Sunset", "category": "nature"})
	uploadPhoto(t, env, map[string]string{"title": "Tower", "category": "urban"})
	uploadPhoto(t, env, map[string]string{"title": "Sunrise", "category": "nature", "author": "Ana"})

	var list struct {
		Photos []domain.Photo `json:"photos"`
		Total  int            `json:"total"`
	}
	status := doJSON(t, http.MethodGet, env.srv.URL+"/api/photos?category=nature&sort=oldest&q=SUN", nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, list.Total)
	titles := []string{list.Photos[0].Title, list.Photos[1].Title}
	assert.ElementsMatch(t, []string{"Sunset", "Sunrise"}, titles)

	status = doJSON(t, http.MethodGet, env.srv.URL+"/api/photos?category=space", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status = doJSON(t, http.MethodGet, env.srv.URL+"/api/photos?sort=random", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIntegration_ToggleLike(t *testing.T) {
	env := newTestServer(t)
	p := uploadPhoto(t, env, nil)

	var liked domain.Photo
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, env.srv.URL+"/api/photos/"+p.ID+"/like", nil, &liked))
	assert.Equal(t, 1, liked.Likes)
	assert.True(t, liked.Liked)

	var unliked domain.Photo
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, env.srv.URL+"/api/photos/"+p.ID+"/like", nil, &unliked))
	assert.Zero(t, unliked.Likes)
	assert.False(t, unliked.Liked)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, env.srv.URL+"/api/photos/missing/like", nil, nil))
}

func TestIntegration_ViewState(t *testing.T) {
	env := newTestServer(t)
	uploadPhoto(t, env, map[string]string{"category": "food"})
	uploadPhoto(t, env, map[string]string{"category": "art"})

	var v struct {
		State  service.ViewState `json:"state"`
		Photos []domain.Photo    `json:"photos"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/api/view", nil, &v))
	assert.Equal(t, domain.CategoryAll, v.State.Filter)
	assert.Len(t, v.Photos, 2)

	filter, view := "food", "list"
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPatch, env.srv.URL+"/api/view",
		service.StateUpdate{Filter: &filter, View: &view}, &v))
	assert.Equal(t, "food", v.State.Filter)
	assert.Equal(t, domain.ViewList, v.State.View)
	require.Len(t, v.Photos, 1)
	assert.Equal(t, "food", v.Photos[0].Category)

	bad := "sideways"
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPatch, env.srv.URL+"/api/view",
		service.StateUpdate{Sort: &bad, Filter: &filter}, nil))
}

func TestIntegration_Lightbox(t *testing.T) {
	env := newTestServer(t)
	first := uploadPhoto(t, env, map[string]string{"title": "first"})
	second := uploadPhoto(t, env, map[string]string{"title": "second"})

	var st service.LightboxState
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/api/lightbox", nil, &st))
	assert.False(t, st.Open)

	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, env.srv.URL+"/api/lightbox/navigate",
		map[string]int{"direction": 1}, nil))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, env.srv.URL+"/api/lightbox",
		map[string]string{"id": second.ID}, &st))
	assert.True(t, st.Open)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, 2, st.Total)

	// Newest first, so stepping back from the first slot wraps to the oldest.
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, env.srv.URL+"/api/lightbox/navigate",
		map[string]int{"direction": -1}, &st))
	assert.Equal(t, 1, st.Index)
	require.NotNil(t, st.Photo)
	assert.Equal(t, first.ID, st.Photo.ID)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, env.srv.URL+"/api/lightbox/navigate",
		map[string]int{"direction": 2}, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, env.srv.URL+"/api/lightbox",
		map[string]string{"id": "missing"}, nil))

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, env.srv.URL+"/api/lightbox", nil, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/api/lightbox", nil, &st))
	assert.False(t, st.Open)
	assert.Equal(t, -1, st.Index)
}

func TestIntegration_StatsAndHealth(t *testing.T) {
	env := newTestServer(t)
	p := uploadPhoto(t, env, map[string]string{"author": "Ana"})
	uploadPhoto(t, env, map[string]string{"author": "Ben"})
	doJSON(t, http.MethodPost, env.srv.URL+"/api/photos/"+p.ID+"/like", nil, nil)

	var stats struct {
		Photos   int `json:"photos"`
		Creators int `json:"creators"`
		Likes    int `json:"likes"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/api/stats", nil, &stats))
	assert.Equal(t, 2, stats.Photos)
	assert.Equal(t, 2, stats.Creators)
	assert.Equal(t, 1, stats.Likes)

	var health map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, env.srv.URL+"/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, persistence.TierPrimary, health["tier"])
}

func TestIntegration_Metrics(t *testing.T) {
	env := newTestServer(t)
	uploadPhoto(t, env, nil)

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `gallery_uploads_total{result="created"} 1`)
}

func TestIntegration_WebsocketFeed(t *testing.T) {
	env := newTestServer(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return env.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	p := uploadPhoto(t, env, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventPhotoCreated, ev.Type)
	assert.Equal(t, p.ID, ev.PhotoID)
}

func TestIntegration_SecurityHeaders(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
}
