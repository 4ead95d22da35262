package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/foldgen/internal/models"
	"github.com/denysvitali/foldgen/pkg/config"
	"github.com/denysvitali/foldgen/pkg/fixture"
	"github.com/denysvitali/foldgen/pkg/folding"
	"github.com/denysvitali/foldgen/pkg/telemetry"
)

// Server exposes fold computation and fixture writing over HTTP
type Server struct {
	config   *config.Config
	logger   *logrus.Logger
	computer folding.Computer
	writer   *fixture.Writer
	cache    *folding.SourceCache
	engine   *gin.Engine
	server   *http.Server

	// computeMu serialises computations; editor sessions are single-user.
	computeMu sync.Mutex

	startTime   time.Time
	lastRequest atomic.Int64
	requests    atomic.Int64
}

// New creates a new server instance
func New(cfg *config.Config, logger *logrus.Logger, computer folding.Computer) (*Server, error) {
	cache, err := folding.NewSourceCache(cfg.Server.CacheSize)
	if err != nil {
		return nil, err
	}

	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ginLogger(logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(telemetry.ServiceName))
	}

	engine.Use(corsMiddleware())

	if cfg.Server.SessionAPIKey != "" {
		engine.Use(authMiddleware(cfg.Server.SessionAPIKey))
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		computer:  computer,
		writer:    fixture.New(computer, logger),
		cache:     cache,
		engine:    engine,
		startTime: time.Now(),
	}
	s.lastRequest.Store(s.startTime.UnixNano())

	s.setupRoutes()

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.Port),
		Handler: s.engine,
	}

	s.logger.Infof("Starting server on port %d", s.config.Server.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/alive", s.handleAlive)
	s.engine.GET("/server_info", s.handleServerInfo)

	s.engine.POST("/folds", s.handleFolds)
	s.engine.POST("/fixtures", s.handleFixtures)
}

func (s *Server) touch() {
	s.requests.Add(1)
	s.lastRequest.Store(time.Now().UnixNano())
}

func (s *Server) handleAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleServerInfo(c *gin.Context) {
	now := time.Now()
	lastRequest := time.Unix(0, s.lastRequest.Load())

	response := models.ServerInfoResponse{
		Backend:    s.config.Fold.Backend,
		StartTime:  s.startTime,
		Uptime:     now.Sub(s.startTime).Seconds(),
		IdleTime:   now.Sub(lastRequest).Seconds(),
		Requests:   s.requests.Load(),
		CacheSize:  s.cache.Len(),
		WorkingDir: s.config.Server.WorkingDir,
		Resources:  collectResources(s.config.Server.WorkingDir, s.logger),
	}

	s.logger.Debugf("Server info: uptime=%.2fs, idle_time=%.2fs", response.Uptime, response.IdleTime)
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleFolds(c *gin.Context) {
	tracer := otel.Tracer(telemetry.ServiceName)
	ctx, span := tracer.Start(c.Request.Context(), "handle_folds")
	defer span.End()
	s.touch()

	var req models.FoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if (req.Path == "") == (req.Source == "") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "exactly one of path or source is required"})
		return
	}

	var (
		resp models.FoldResponse
		err  error
	)
	if req.Path != "" {
		span.SetAttributes(attribute.String("path", req.Path))
		resp, err = s.foldsForPath(ctx, req.Path)
	} else {
		span.SetAttributes(attribute.Int("source_bytes", len(req.Source)))
		resp, err = s.foldsForSource(ctx, []byte(req.Source))
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Errorf("Failed to compute folds: %v", err)
		c.JSON(statusFor(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	if s.config.Telemetry.Enabled {
		telemetry.Report(ctx, s.logger, "fold_response", resp.Folds, attribute.Int("fold_count", len(resp.Folds)))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) foldsForPath(ctx context.Context, path string) (models.FoldResponse, error) {
	path, err := s.resolvePath(path)
	if err != nil {
		return models.FoldResponse{}, err
	}

	s.computeMu.Lock()
	defer s.computeMu.Unlock()

	folds, err := s.computer.Compute(ctx, path)
	if err != nil {
		return models.FoldResponse{}, err
	}
	return models.NewFoldResponse(path, folds), nil
}

func (s *Server) foldsForSource(ctx context.Context, src []byte) (models.FoldResponse, error) {
	if folds, ok := s.cache.Lookup(src); ok {
		resp := models.NewFoldResponse("", folds)
		resp.Cached = true
		return resp, nil
	}

	dir, err := os.MkdirTemp("", "foldgen-source-")
	if err != nil {
		return models.FoldResponse{}, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "source.py")
	if err := os.WriteFile(path, src, 0644); err != nil {
		return models.FoldResponse{}, fmt.Errorf("failed to write source: %w", err)
	}

	s.computeMu.Lock()
	folds, err := s.computer.Compute(ctx, path)
	s.computeMu.Unlock()
	if err != nil {
		return models.FoldResponse{}, err
	}

	s.cache.Store(src, folds)
	return models.NewFoldResponse("", folds), nil
}

func (s *Server) handleFixtures(c *gin.Context) {
	tracer := otel.Tracer(telemetry.ServiceName)
	ctx, span := tracer.Start(c.Request.Context(), "handle_fixtures")
	defer span.End()
	s.touch()

	var req models.FixturesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	paths := make([]string, len(req.Paths))
	for i, p := range req.Paths {
		resolved, err := s.resolvePath(p)
		if err != nil {
			span.RecordError(err)
			c.JSON(statusFor(err), models.FixturesResponse{Written: []string{}, Error: err.Error()})
			return
		}
		paths[i] = resolved
	}
	span.SetAttributes(attribute.StringSlice("paths", paths))

	if s.config.Telemetry.Enabled {
		telemetry.Report(ctx, s.logger, "fixtures_request", paths, attribute.Int("path_count", len(paths)))
	}

	s.computeMu.Lock()
	written, err := s.writer.WriteEach(ctx, paths)
	s.computeMu.Unlock()

	resp := models.FixturesResponse{Written: written}
	if err != nil {
		span.RecordError(err)
		s.logger.Errorf("Failed to write fixtures: %v", err)
		resp.Error = err.Error()
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ErrOutsideWorkingDir is returned for request paths that escape the working directory.
var ErrOutsideWorkingDir = errors.New("path is outside the working directory")

// resolvePath resolves a path relative to the working directory and
// rejects anything that does not stay below it.
func (s *Server) resolvePath(path string) (string, error) {
	root := filepath.Clean(s.config.Server.WorkingDir)
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkingDir, path)
	}
	return resolved, nil
}

// statusFor maps input problems to 422, escaping paths to 403 and
// everything else to 500.
func statusFor(err error) int {
	var syntaxErr *folding.SyntaxError
	switch {
	case errors.Is(err, ErrOutsideWorkingDir):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), errors.As(err, &syntaxErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
