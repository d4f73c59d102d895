package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/infra"
	"github.com/Tsinling0525/flowrun/model"
)

const userHeader = "X-User-ID"

// APIResponse represents the API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ExecuteRequest is the body of POST /workflows/:id/execute.
type ExecuteRequest struct {
	Input string `json:"input"`
}

// Helper function to send JSON response
func sendResponse(c *gin.Context, statusCode int, success bool, data map[string]interface{}, errorMsg string) {
	response := APIResponse{Success: success, Data: data, Error: errorMsg}
	c.JSON(statusCode, response)
}

func sendSuccess(c *gin.Context, data map[string]interface{}) {
	sendResponse(c, http.StatusOK, true, data, "")
}

func sendError(c *gin.Context, statusCode int, errorMsg string) {
	sendResponse(c, statusCode, false, nil, errorMsg)
}

// sendFailure maps domain errors onto status codes.
func sendFailure(c *gin.Context, err error) {
	var de *graph.DefinitionError
	switch {
	case errors.As(err, &de):
		nodes := de.Nodes
		if nodes == nil {
			nodes = []string{}
		}
		sendResponse(c, http.StatusBadRequest, false, map[string]interface{}{"kind": de.KindName(), "nodes": nodes}, err.Error())
	case errors.Is(err, infra.ErrInputTooLarge):
		sendResponse(c, http.StatusBadRequest, false, map[string]interface{}{"kind": "too_large"}, err.Error())
	case errors.Is(err, infra.ErrNotFound):
		sendError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, infra.ErrConflict):
		sendError(c, http.StatusConflict, err.Error())
	case errors.Is(err, infra.ErrRateLimited):
		sendError(c, http.StatusTooManyRequests, err.Error())
	default:
		ctxlog.FromContext(c.Request.Context()).Error("request failed", "error", err)
		sendError(c, http.StatusInternalServerError, "internal error")
	}
}

type handlers struct {
	app *App
}

func (h handlers) health(c *gin.Context) {
	sendSuccess(c, map[string]interface{}{"status": "healthy", "timestamp": time.Now().Unix(), "version": "1.0.0"})
}

func (h handlers) readDefinition(c *gin.Context) ([]byte, bool) {
	limit := int64(h.app.Config.Limits.MaxDefinitionBytes)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			sendResponse(c, http.StatusBadRequest, false, map[string]interface{}{"kind": "too_large"}, "definition exceeds size limit")
			return nil, false
		}
		sendError(c, http.StatusBadRequest, "read body: "+err.Error())
		return nil, false
	}
	return raw, true
}

func (h handlers) createWorkflow(c *gin.Context) {
	raw, ok := h.readDefinition(c)
	if !ok {
		return
	}
	sw, err := h.app.Runner.SaveWorkflow(c.Request.Context(), c.GetString(userHeader), raw)
	if err != nil {
		sendFailure(c, err)
		return
	}
	sendResponse(c, http.StatusCreated, true, map[string]interface{}{"workflowId": sw.ID, "name": sw.Name, "createdAt": sw.CreatedAt}, "")
}

func (h handlers) getWorkflow(c *gin.Context) {
	sw, err := h.app.Runner.Workflow(c.Request.Context(), c.GetString(userHeader), c.Param("id"))
	if err != nil {
		sendFailure(c, err)
		return
	}
	sendSuccess(c, map[string]interface{}{
		"workflowId": sw.ID,
		"name":       sw.Name,
		"definition": json.RawMessage(sw.Definition),
		"createdAt":  sw.CreatedAt,
		"updatedAt":  sw.UpdatedAt,
	})
}

func (h handlers) validateWorkflow(c *gin.Context) {
	raw, ok := h.readDefinition(c)
	if !ok {
		return
	}
	wf, err := h.app.Runner.Validate(raw)
	if err != nil {
		sendFailure(c, err)
		return
	}
	order, _ := graph.Order(wf)
	ids := make([]string, 0, len(order))
	for _, n := range order {
		ids = append(ids, n.ID)
	}
	entry, _ := graph.Entry(wf)
	sendSuccess(c, map[string]interface{}{"valid": true, "entry": entry.ID, "order": ids})
}

func (h handlers) executeWorkflow(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	res, err := h.app.Runner.Run(c.Request.Context(), c.GetString(userHeader), c.Param("id"), req.Input)
	if err != nil {
		sendFailure(c, err)
		return
	}
	sendSuccess(c, executionData(res))
}

func (h handlers) getExecution(c *gin.Context) {
	res, err := h.app.Runner.Execution(c.Request.Context(), c.GetString(userHeader), c.Param("id"))
	if err != nil {
		sendFailure(c, err)
		return
	}
	sendSuccess(c, executionData(res))
}

func executionData(res model.ExecutionResult) map[string]interface{} {
	return map[string]interface{}{"execution": res}
}

// requireUser reads the caller identity set by the upstream auth layer.
func requireUser(c *gin.Context) {
	user := c.GetHeader(userHeader)
	if user == "" {
		sendError(c, http.StatusUnauthorized, "missing "+userHeader+" header")
		c.Abort()
		return
	}
	c.Set(userHeader, user)
	logger := ctxlog.FromContext(c.Request.Context()).With("user_id", user)
	c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), logger))
	c.Next()
}

// requestLogger puts a request scoped logger into the request context and logs
// each request when it completes.
func requestLogger(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := app.Logger.With("request_id", uuid.NewString())
		c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), logger))
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// NewRouter builds the Gin router with routes and middleware
func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(app))
	// CORS
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+userHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := handlers{app: app}
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/", requireUser)
	api.POST("/workflows", h.createWorkflow)
	api.POST("/workflows/validate", h.validateWorkflow)
	api.GET("/workflows/:id", h.getWorkflow)
	api.POST("/workflows/:id/execute", h.executeWorkflow)
	api.GET("/executions/:id", h.getExecution)

	return r
}
