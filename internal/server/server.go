// Package server exposes the capability adapters over HTTP for a desktop UI
// shell: submit a job, poll it, or stream its progress over a websocket.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
)

// Capabilities are the adapter entry points the server dispatches to. Each
// runs synchronously, delivering events through the sink.
type Capabilities struct {
	DetectBeats           func(ctx context.Context, audioFile string, threshold float64, sink task.Sink) ([]types.Beat, error)
	DetectTempo           func(ctx context.Context, audioFile string, sink task.Sink) (float64, error)
	SplitAtBeats          func(ctx context.Context, inputFile, outputDir string, threshold float64, sink task.Sink) ([]string, error)
	RemoveImageBackground func(ctx context.Context, in, out string, alpha bool, bgColor, model string, sink task.Sink) error
	RemoveVideoBackground func(ctx context.Context, in, out string, alpha bool, bgColor, model string, fps float64, sink task.Sink) error
	ApplyChromaKey        func(ctx context.Context, in, out, keyColor string, similarity, smoothness, spill float64, sink task.Sink) error
	GenerateCaptions      func(ctx context.Context, inputFile, language, modelSize string, sink task.Sink) (string, error)
	SmartReframe          func(ctx context.Context, inputFile, outputFile, targetRatio string, sink task.Sink) (string, error)
}

type Server struct {
	addr   string
	router *chi.Mux
	jobs   *Manager
	caps   Capabilities
	log    *zap.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The desktop shell serves its UI from a file:// or app:// origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

func New(addr string, caps Capabilities, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		jobs:   NewManager(log),
		caps:   caps,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/beats", s.handleDetectBeats)
		r.Post("/tempo", s.handleDetectTempo)
		r.Post("/split", s.handleSplit)
		r.Post("/remove-bg", s.handleRemoveBackground)
		r.Post("/chroma", s.handleChromaKey)
		r.Post("/captions", s.handleCaptions)
		r.Post("/reframe", s.handleReframe)

		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleJobCancel)
		r.Get("/jobs/{id}/ws", s.handleJobStream)
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api server listening", zap.String("addr", s.addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// launch registers a job and runs the capability in the background. run
// receives the job-bound sink and reports its result for the job record.
func (s *Server) launch(w http.ResponseWriter, capability string, run func(ctx context.Context, sink task.Sink) (any, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	snap := s.jobs.Create(capability, cancel)

	go func() {
		defer cancel()
		s.jobs.SetProcessing(snap.ID)
		result, err := run(ctx, s.jobs.Sink(snap.ID))
		if err == nil && result != nil {
			s.jobs.SetResult(snap.ID, result)
		}
	}()

	writeJSON(w, http.StatusAccepted, snap)
}

type beatsRequest struct {
	Input     string  `json:"input"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleDetectBeats(w http.ResponseWriter, r *http.Request) {
	var req beatsRequest
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "detect-beats", func(ctx context.Context, sink task.Sink) (any, error) {
		return s.caps.DetectBeats(ctx, req.Input, req.Threshold, sink)
	})
}

func (s *Server) handleDetectTempo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "detect-tempo", func(ctx context.Context, sink task.Sink) (any, error) {
		return s.caps.DetectTempo(ctx, req.Input, sink)
	})
}

type splitRequest struct {
	Input     string  `json:"input"`
	OutputDir string  `json:"output_dir"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "split-at-beats", func(ctx context.Context, sink task.Sink) (any, error) {
		return s.caps.SplitAtBeats(ctx, req.Input, req.OutputDir, req.Threshold, sink)
	})
}

type removeBackgroundRequest struct {
	Input   string  `json:"input"`
	Output  string  `json:"output"`
	Video   bool    `json:"video"`
	Alpha   bool    `json:"alpha"`
	BGColor string  `json:"bg_color"`
	Model   string  `json:"model"`
	FPS     float64 `json:"fps"`
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req removeBackgroundRequest
	if !decode(w, r, &req) {
		return
	}
	capability := "remove-image-background"
	if req.Video {
		capability = "remove-video-background"
	}
	s.launch(w, capability, func(ctx context.Context, sink task.Sink) (any, error) {
		if req.Video {
			return nil, s.caps.RemoveVideoBackground(ctx, req.Input, req.Output, req.Alpha, req.BGColor, req.Model, req.FPS, sink)
		}
		return nil, s.caps.RemoveImageBackground(ctx, req.Input, req.Output, req.Alpha, req.BGColor, req.Model, sink)
	})
}

type chromaRequest struct {
	Input      string  `json:"input"`
	Output     string  `json:"output"`
	KeyColor   string  `json:"key_color"`
	Similarity float64 `json:"similarity"`
	Smoothness float64 `json:"smoothness"`
	Spill      float64 `json:"spill"`
}

func (s *Server) handleChromaKey(w http.ResponseWriter, r *http.Request) {
	var req chromaRequest
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "chroma-key", func(ctx context.Context, sink task.Sink) (any, error) {
		return nil, s.caps.ApplyChromaKey(ctx, req.Input, req.Output, req.KeyColor, req.Similarity, req.Smoothness, req.Spill, sink)
	})
}

type captionsRequest struct {
	Input    string `json:"input"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	var req captionsRequest
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "generate-captions", func(ctx context.Context, sink task.Sink) (any, error) {
		return s.caps.GenerateCaptions(ctx, req.Input, req.Language, req.Model, sink)
	})
}

type reframeRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Ratio  string `json:"ratio"`
}

func (s *Server) handleReframe(w http.ResponseWriter, r *http.Request) {
	var req reframeRequest
	if !decode(w, r, &req) {
		return
	}
	s.launch(w, "smart-reframe", func(ctx context.Context, sink task.Sink) (any, error) {
		return s.caps.SmartReframe(ctx, req.Input, req.Output, req.Ratio, sink)
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.jobs.Cancel(id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	snap, _ := s.jobs.Get(id)
	writeJSON(w, http.StatusOK, snap)
}

// handleJobStream streams job snapshots over a websocket until the job
// reaches a terminal state or the client goes away.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, release, ok := s.jobs.Subscribe(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	defer release()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for snap := range updates {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
