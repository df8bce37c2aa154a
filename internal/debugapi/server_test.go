package debugapi

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downhill/internal/config"
	"downhill/internal/physics"
	"downhill/internal/scene"
	"downhill/internal/world"
)

func newTestServer(t *testing.T) (*Server, *world.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.Terrain.SubdivisionsX = 16
	cfg.Terrain.SubdivisionsZ = 20
	logger := log.New(io.Discard, "", 0)
	m, err := world.NewManager(cfg, physics.NewMemoryWorld(), scene.NewMemoryScene(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return New(cfg.Debug, m, logger), m
}

func serve(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s, m := newTestServer(t)
	rr := serve(s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, m.RunID(), body["runId"])
}

func TestHeightQuery(t *testing.T) {
	s, m := newTestServer(t)

	t.Run("missing parameters", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/terrain/height?x=1", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, target := range []string{"/terrain/height?x=foo&z=1", "/terrain/height?x=1&z=NaN", "/terrain/height?x=Inf&z=1"} {
			rr := serve(s, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		}
	})

	t.Run("matches manager", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/terrain/height?x=2.5&z=-5000", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Height  float64    `json:"height"`
			Normal  [3]float64 `json:"normal"`
			Surface string     `json:"surface"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.InDelta(t, m.TerrainHeight(2.5, -5000), body.Height, 1e-9)
		assert.Equal(t, m.Classify(2.5, -5000).String(), body.Surface)
		n := mgl64.Vec3(body.Normal)
		assert.InDelta(t, 1, n.Len(), 1e-9)
	})
}

func TestSpawnQuery(t *testing.T) {
	s, m := newTestServer(t)
	rr := serve(s, http.MethodGet, "/terrain/spawn?steps=50", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]float64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	p := m.PointAtOffset(50)
	assert.InDelta(t, p.Z(), body["z"], 1e-9)
	assert.InDelta(t, p.Y(), body["y"], 1e-9)

	rr = serve(s, http.MethodGet, "/terrain/spawn?steps=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChunksAndPreview(t *testing.T) {
	s, m := newTestServer(t)
	rr := serve(s, http.MethodGet, "/chunks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var chunks []world.ChunkInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &chunks))
	require.Len(t, chunks, len(m.Chunks()))
	assert.Equal(t, int64(0), chunks[0].Index)

	rr = serve(s, http.MethodGet, "/chunks/1/preview.png", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)

	rr = serve(s, http.MethodGet, "/chunks/99/preview.png", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = serve(s, http.MethodGet, "/chunks/abc/preview.png", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWireframeEndpoint(t *testing.T) {
	s, m := newTestServer(t)

	rr := serve(s, http.MethodPost, "/debug/wireframe", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, m.Wireframe())

	rr = serve(s, http.MethodPost, "/debug/wireframe", strings.NewReader(`{"enabled":true}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, m.Wireframe())

	rr = serve(s, http.MethodPost, "/debug/wireframe", strings.NewReader(`{"enabled":false}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"wireframe":false}`, rr.Body.String())

	rr = serve(s, http.MethodPost, "/debug/wireframe", strings.NewReader(`{`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(s, http.MethodGet, "/debug/wireframe", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRegenerateEndpoint(t *testing.T) {
	s, m := newTestServer(t)
	seed := m.Stats().Seed

	rr := serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"slopeAngle":30,"difficulty":"expert"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	st := m.Stats()
	assert.Equal(t, seed, st.Seed)
	assert.Equal(t, config.DifficultyExpert, st.Difficulty)
	assert.Equal(t, 30.0, st.SlopeAngle)

	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"seed":7,"slopeAngle":15,"difficulty":"EASY"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(7), m.Stats().Seed)

	// Omitted fields keep the current run's values.
	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"seed":9}`))
	require.Equal(t, http.StatusOK, rr.Code)
	st = m.Stats()
	assert.Equal(t, int64(9), st.Seed)
	assert.Equal(t, 15.0, st.SlopeAngle)
	assert.Equal(t, config.DifficultyEasy, st.Difficulty)

	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"difficulty":"sport"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	st = m.Stats()
	assert.Equal(t, 15.0, st.SlopeAngle)
	assert.Equal(t, config.DifficultySport, st.Difficulty)

	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"slopeAngle":0}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0.0, m.Stats().SlopeAngle)

	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"slopeAngle":15,"difficulty":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(s, http.MethodPost, "/terrain/regenerate", strings.NewReader(`{"slopeAngle":89,"difficulty":"SPORT"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, int64(9), m.Stats().Seed)
}

func TestStreamDeliversRecycleEvents(t *testing.T) {
	s, m := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Update(mgl64.Vec3{0, 0, -200}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, MessageRecycle, env.Type)
	assert.Equal(t, uint64(1), env.Seq)

	var ev world.RecycleEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, int64(3), ev.Index)
	assert.Equal(t, m.RunID(), ev.RunID)

	s.Hub().Close()
	assert.Zero(t, s.Hub().Clients())
}
