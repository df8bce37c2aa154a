// Package debugapi exposes the terrain manager over HTTP for inspection: point
// queries, pool summaries, chunk previews and a websocket stream of recycle
// events.
package debugapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/mux"

	"downhill/internal/config"
	"downhill/internal/terrain"
	"downhill/internal/world"
)

// Terrain is the part of the manager the debug API reads and drives.
type Terrain interface {
	TerrainHeight(x, z float64) float64
	SurfaceNormal(x, z, d float64) mgl64.Vec3
	Classify(x, z float64) terrain.SurfaceType
	PointAtOffset(steps int) mgl64.Vec3
	Chunks() []world.ChunkInfo
	ChunkGeometry(slot int) (*terrain.Mesh, []terrain.Placement, bool)
	Stats() world.Stats
	Wireframe() bool
	SetWireframe(enabled bool)
	ToggleWireframe() bool
	RegenerateWithSeed(seed int64, slopeAngle float64, difficulty config.Difficulty) error
	OnRecycle(fn func(world.RecycleEvent))
}

const (
	MessageRecycle    = "recycle"
	MessageWireframe  = "wireframe"
	MessageRegenerate = "regenerate"
)

type Server struct {
	cfg     config.DebugConfig
	terrain Terrain
	hub     *Hub
	router  *mux.Router
	logger  *log.Logger
	httpSrv *http.Server
}

// New wires the routes and subscribes the stream hub to recycle events.
func New(cfg config.DebugConfig, t Terrain, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "debugapi ", log.LstdFlags|log.Lmicroseconds)
	}
	s := &Server{
		cfg:     cfg,
		terrain: t,
		hub:     NewHub(cfg.StreamBuffer, cfg.WriteTimeout.Duration(), logger),
		router:  mux.NewRouter(),
		logger:  logger,
	}
	s.routes()
	t.OnRecycle(func(ev world.RecycleEvent) {
		s.hub.Publish(MessageRecycle, ev)
	})
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/terrain/height", s.handleHeight).Methods(http.MethodGet)
	s.router.HandleFunc("/terrain/spawn", s.handleSpawn).Methods(http.MethodGet)
	s.router.HandleFunc("/terrain/regenerate", s.handleRegenerate).Methods(http.MethodPost)
	s.router.HandleFunc("/chunks", s.handleChunks).Methods(http.MethodGet)
	s.router.HandleFunc("/chunks/{slot:[0-9]+}/preview.png", s.handlePreview).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/wireframe", s.handleWireframe).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("debug API listening on %s", s.cfg.ListenAddress)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		s.hub.Close()
		return fmt.Errorf("debug API: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"runId":  s.terrain.Stats().RunID,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.terrain.Stats())
}

type heightResponse struct {
	X       float64             `json:"x"`
	Z       float64             `json:"z"`
	Height  float64             `json:"height"`
	Normal  [3]float64          `json:"normal"`
	Surface terrain.SurfaceType `json:"surface"`
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	xStr := q.Get("x")
	zStr := q.Get("z")
	if xStr == "" || zStr == "" {
		http.Error(w, "x and z query parameters required", http.StatusBadRequest)
		return
	}
	x, err := parseFinite(xStr)
	if err != nil {
		http.Error(w, "invalid x parameter", http.StatusBadRequest)
		return
	}
	z, err := parseFinite(zStr)
	if err != nil {
		http.Error(w, "invalid z parameter", http.StatusBadRequest)
		return
	}
	n := s.terrain.SurfaceNormal(x, z, 0)
	writeJSON(w, heightResponse{
		X:       x,
		Z:       z,
		Height:  s.terrain.TerrainHeight(x, z),
		Normal:  [3]float64{n.X(), n.Y(), n.Z()},
		Surface: s.terrain.Classify(x, z),
	})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	steps := 0
	if v := r.URL.Query().Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid steps parameter", http.StatusBadRequest)
			return
		}
		steps = n
	}
	p := s.terrain.PointAtOffset(steps)
	writeJSON(w, map[string]float64{"x": p.X(), "y": p.Y(), "z": p.Z()})
}

// regenerateRequest fields left out keep the current run's value.
type regenerateRequest struct {
	Seed       *int64            `json:"seed"`
	SlopeAngle *float64          `json:"slopeAngle"`
	Difficulty config.Difficulty `json:"difficulty"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	current := s.terrain.Stats()
	difficulty := current.Difficulty
	if req.Difficulty != "" {
		d, err := config.ParseDifficulty(string(req.Difficulty))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		difficulty = d
	}
	seed := current.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	slope := current.SlopeAngle
	if req.SlopeAngle != nil {
		slope = *req.SlopeAngle
	}
	if err := s.terrain.RegenerateWithSeed(seed, slope, difficulty); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	st := s.terrain.Stats()
	s.hub.Publish(MessageRegenerate, st)
	writeJSON(w, st)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.terrain.Chunks())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil {
		http.Error(w, "invalid slot", http.StatusBadRequest)
		return
	}
	mesh, placements, ok := s.terrain.ChunkGeometry(slot)
	if !ok {
		http.Error(w, fmt.Sprintf("slot %d not resident", slot), http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := world.EncodeChunkPreview(&buf, mesh, placements); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// handleWireframe sets the wireframe flag from {"enabled": bool}, or toggles
// it when the body is empty.
func (s *Server) handleWireframe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var state bool
	if req.Enabled == nil {
		state = s.terrain.ToggleWireframe()
	} else {
		s.terrain.SetWireframe(*req.Enabled)
		state = s.terrain.Wireframe()
	}
	resp := map[string]bool{"wireframe": state}
	s.hub.Publish(MessageWireframe, resp)
	writeJSON(w, resp)
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
