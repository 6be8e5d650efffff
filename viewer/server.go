// Package viewer serves motion-primitive trees over HTTP and websocket to an
// external renderer. It builds trees on request; drawing is left to the client.
package viewer

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/brensch/primtree/config"
	"github.com/brensch/primtree/expand"
	"github.com/brensch/primtree/motion"
)

// DefaultMarkerLength is the heading segment length, in metres, returned by
// format=markers when the request does not set marker_length.
const DefaultMarkerLength = 0.03

// Server holds the defaults requests are resolved against.
type Server struct {
	defaults config.File
	logger   *slog.Logger
}

// NewServer creates a Server. Viewer.MaxNodes in defaults caps every request.
func NewServer(defaults config.File, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		defaults: defaults,
		logger:   logger.With("component", "viewer"),
	}
}

// RegisterRoutes sets up all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/tree", s.handleTree)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws/tree", s.handleTreeSocket)
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.defaults.Viewer.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// request is a fully resolved tree request.
type request struct {
	root motion.State
	cfg  expand.Config
}

// parseRequest overlays query parameters on the server defaults.
func (s *Server) parseRequest(r *http.Request) (request, error) {
	req := request{root: s.defaults.Root, cfg: s.defaults.Expansion}
	var err error

	floats := []struct {
		key string
		dst *float64
	}{
		{"delta_time", &req.cfg.DeltaTime},
		{"time_horizon", &req.cfg.Horizon},
		{"yaw_step", &req.cfg.YawStep},
		{"speed", &req.root.Speed},
		{"x", &req.root.Pose.X},
		{"y", &req.root.Pose.Y},
		{"yaw", &req.root.Pose.Yaw},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloatQuery(r, f.key, *f.dst); err != nil {
			return request{}, err
		}
	}
	if req.cfg.Branching, err = parseIntQuery(r, "branching_factor", req.cfg.Branching); err != nil {
		return request{}, err
	}

	if limit := s.defaults.Viewer.MaxNodes; limit > 0 && (req.cfg.MaxNodes == 0 || req.cfg.MaxNodes > limit) {
		req.cfg.MaxNodes = limit
	}
	return req, nil
}

func (s *Server) build(ctx context.Context, req request) (*motion.Node, error) {
	e, err := expand.New(req.cfg)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	root, err := e.BuildParallel(ctx, req.root)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("tree built",
		"nodes", req.cfg.NodeCount(),
		"depth", req.cfg.Depth(),
		"took", time.Since(start),
	)
	return root, nil
}

type configResponse struct {
	Root         motion.State  `json:"root"`
	Expansion    expand.Config `json:"expansion"`
	MaxNodes     int           `json:"max_nodes"`
	MarkerLength float64       `json:"marker_length"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, configResponse{
		Root:         s.defaults.Root,
		Expansion:    s.defaults.Expansion,
		MaxNodes:     s.defaults.Viewer.MaxNodes,
		MarkerLength: DefaultMarkerLength,
	})
}

// Marker is one heading segment for a renderer to draw.
type Marker struct {
	ID    int        `json:"id"`
	Depth int        `json:"depth"`
	From  [2]float64 `json:"from"`
	To    [2]float64 `json:"to"`
}

func markers(flat []motion.FlatNode, length float64) []Marker {
	out := make([]Marker, len(flat))
	for i, fn := range flat {
		x0, y0, x1, y1 := motion.Marker(fn.State.Pose, length)
		out[i] = Marker{ID: fn.ID, Depth: fn.Depth, From: [2]float64{x0, y0}, To: [2]float64{x1, y1}}
	}
	return out
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	markerLength, err := parseFloatQuery(r, "marker_length", DefaultMarkerLength)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case "", "nested", "flat", "markers":
	default:
		http.Error(w, "format must be nested, flat or markers", http.StatusBadRequest)
		return
	}

	root, err := s.build(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case "flat":
		writeJSON(w, motion.Flatten(root))
	case "markers":
		writeJSON(w, markers(motion.Flatten(root), markerLength))
	default:
		writeJSON(w, root)
	}
}

type statsResponse struct {
	Expansion expand.Config `json:"expansion"`
	Stats     motion.Stats  `json:"stats"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	root, err := s.build(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, statsResponse{Expansion: req.cfg, Stats: motion.Summarize(root)})
}
