// Package controlapi is the HTTP control/monitoring plane (spec §4.2, §4.9):
// a thin gin server exposing scheduler/engine status, pause/resume/stop,
// a download-log tail, and checkpoint listing. Grounded on the teacher's
// own gin-based internal/api surface (internal/api/routes.go,
// internal/api/handlers.go), generalized from job-management endpoints to
// this project's controller/download/generation domain.
package controlapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/download"
	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/sysinfo"
	"github.com/flowloom/flowloom/internal/workflow"
)

// Server wires a Controller (pause/resume/stop/checkpoints), an optional
// DownloadLog (for the download tail), and an optional generation-status
// poller into one control surface. Log and GenerationStatus may be nil:
// a bare execution-engine run has no download log, and a scheduler batch
// with no active generation-download action has nothing to report there.
type Server struct {
	Controller       *controller.Controller
	Log              *download.DownloadLog
	GenerationStatus func() workflow.GenerationStatus
	Logger           *logging.Logger

	engine *gin.Engine
}

// New builds a Server and its gin engine. Call Engine() to get the
// http.Handler, or ListenAndServe to run it directly.
func New(ctl *controller.Controller, logger *logging.Logger) *Server {
	s := &Server{Controller: ctl, Logger: logger}
	s.setupRoutes()
	return s
}

// Engine returns the underlying gin engine (an http.Handler), primarily so
// callers can mount it under http.Server for graceful shutdown.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe starts the control API on addr. Blocks until the server
// stops or errors.
func (s *Server) ListenAndServe(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) setupRoutes() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(s.Logger), gin.Recovery(), cors())

	r.GET("/status", s.handleStatus)
	r.POST("/pause", s.handlePause)
	r.POST("/resume", s.handleResume)
	r.POST("/stop", s.handleStop)
	r.GET("/downloads/log", s.handleDownloadsLog)
	r.GET("/checkpoints", s.handleListCheckpoints)
	r.GET("/checkpoints/:id", s.handleGetCheckpoint)
	r.GET("/healthz", s.handleHealthz)

	s.engine = r
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func successResponse(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

type statusPayload struct {
	State        controller.State          `json:"state"`
	ElapsedMs    int64                      `json:"elapsedMs"`
	TotalActions int64                      `json:"totalActions"`
	Generation   int64                      `json:"generation"`
	ShouldStop   bool                       `json:"shouldStop"`
	Emergency    bool                       `json:"emergency"`
	Download     *workflow.GenerationStatus `json:"download,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	payload := statusPayload{
		State:        s.Controller.State(),
		ElapsedMs:    s.Controller.Elapsed().Milliseconds(),
		TotalActions: s.Controller.TotalActions(),
		Generation:   s.Controller.Generation(),
		ShouldStop:   s.Controller.CheckShouldStop(),
		Emergency:    s.Controller.IsEmergency(),
	}
	if s.GenerationStatus != nil {
		gs := s.GenerationStatus()
		payload.Download = &gs
	}
	successResponse(c, http.StatusOK, payload)
}

func (s *Server) handlePause(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	s.Controller.RequestPause()
	successResponse(c, http.StatusOK, gin.H{"state": s.Controller.State()})
}

func (s *Server) handleResume(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	s.Controller.RequestResume()
	successResponse(c, http.StatusOK, gin.H{"state": s.Controller.State()})
}

type stopRequest struct {
	Emergency bool `json:"emergency"`
}

func (s *Server) handleStop(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	var body stopRequest
	// An empty or absent body is a normal graceful stop request, not an
	// error: ShouldBindJSON's result is only consulted to pick up an
	// explicit emergency flag when present.
	_ = c.ShouldBindJSON(&body)
	s.Controller.RequestStop(body.Emergency)
	successResponse(c, http.StatusOK, gin.H{"state": s.Controller.State()})
}

func (s *Server) handleDownloadsLog(c *gin.Context) {
	if s.Log == nil {
		errorResponse(c, http.StatusNotFound, "no download log wired for this run")
		return
	}
	entries := s.Log.IterAll()
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(entries) {
			entries = entries[:limit]
		}
	}
	successResponse(c, http.StatusOK, gin.H{"count": s.Log.Count(), "entries": entries})
}

func (s *Server) handleListCheckpoints(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	ids, err := s.Controller.ListCheckpoints()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, http.StatusOK, gin.H{"checkpoints": ids})
}

func (s *Server) handleGetCheckpoint(c *gin.Context) {
	if s.Controller == nil {
		errorResponse(c, http.StatusServiceUnavailable, "no controller wired")
		return
	}
	cp, err := s.Controller.LoadCheckpoint(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, http.StatusOK, cp)
}

func (s *Server) handleHealthz(c *gin.Context) {
	successResponse(c, http.StatusOK, sysinfo.Run())
}
