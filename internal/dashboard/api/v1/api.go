package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"probeview/internal/command"
	"probeview/internal/dashboard/api/response"
	"probeview/internal/gateway"
	"probeview/internal/live"
	"probeview/internal/types"
	"probeview/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API represents the v1 API
type API struct {
	// baseCtx scopes background work (poll loops, dispatch chains) to
	// the process lifetime rather than to a single request.
	baseCtx    context.Context
	poller     *live.Poller
	dispatcher *command.Dispatcher
	gw         gateway.Client
	logger     *zap.Logger
}

// NewAPI creates new API
func NewAPI(baseCtx context.Context, poller *live.Poller, dispatcher *command.Dispatcher, gw gateway.Client, logger *zap.Logger) *API {
	return &API{
		baseCtx:    baseCtx,
		poller:     poller,
		dispatcher: dispatcher,
		gw:         gw,
		logger:     logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	liveGroup := r.Group("/live")
	{
		liveGroup.POST("/target", api.changeTarget)
		liveGroup.POST("/start", api.startLive)
		liveGroup.POST("/pause", api.pauseLive)
		liveGroup.POST("/resume", api.resumeLive)
		liveGroup.POST("/stop", api.stopLive)
		liveGroup.GET("/snapshot", api.getSnapshot)
		liveGroup.POST("/visibility", api.toggleVisibility)
	}

	diagnostics := r.Group("/diagnostics")
	{
		diagnostics.POST("", api.dispatchDiagnostic)
		diagnostics.GET("/current", api.currentDiagnostic)
	}

	r.GET("/agents", api.getAgents)
	r.GET("/health", api.healthCheck)
}

// changeTarget selects the live target, resetting the session
func (api *API) changeTarget(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req struct {
		TargetID string `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("target_id is required"))
		return
	}

	// A stale diagnostic chain must not outlive its target.
	api.dispatcher.Reset()
	api.poller.ChangeTarget(req.TargetID)
	resp.Success(gin.H{"target_id": req.TargetID, "state": api.poller.State()})
}

// startLive starts the live polling loop
func (api *API) startLive(c *gin.Context) {
	resp := response.New(c, api.logger)
	if api.poller.Snapshot().TargetID == "" {
		resp.Conflict(types.ErrNoTarget)
		return
	}
	api.poller.Start(api.baseCtx)
	resp.Success(gin.H{"state": api.poller.State()})
}

// pauseLive pauses the live polling loop without clearing the buffer
func (api *API) pauseLive(c *gin.Context) {
	resp := response.New(c, api.logger)
	api.poller.Pause()
	resp.Success(gin.H{"state": api.poller.State()})
}

// resumeLive resumes a paused polling loop
func (api *API) resumeLive(c *gin.Context) {
	resp := response.New(c, api.logger)
	api.poller.Resume(api.baseCtx)
	resp.Success(gin.H{"state": api.poller.State()})
}

// stopLive tears the live session down
func (api *API) stopLive(c *gin.Context) {
	resp := response.New(c, api.logger)
	api.poller.Stop()
	resp.Success(gin.H{"state": api.poller.State()})
}

// getSnapshot returns the current reconciled view
func (api *API) getSnapshot(c *gin.Context) {
	resp := response.New(c, api.logger)
	resp.Success(api.poller.Snapshot())
}

// toggleVisibility flips one agent series on the tri-state filter
func (api *API) toggleVisibility(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("agent_id is required"))
		return
	}

	api.poller.ToggleVisibility(req.AgentID)
	resp.Success(api.poller.Snapshot())
}

// dispatchDiagnostic dispatches a route-trace to the chosen agents
func (api *API) dispatchDiagnostic(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req struct {
		TargetID string   `json:"target_id" binding:"required"`
		AgentIDs []string `json:"agent_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("target_id is required"))
		return
	}

	commandID, err := api.dispatcher.Dispatch(api.baseCtx, req.TargetID, req.AgentIDs)
	if err != nil {
		resp.BadGateway(fmt.Errorf("dispatch failed: %w", err))
		return
	}

	resp.Accepted(gin.H{"command_id": commandID})
}

// currentDiagnostic returns the current command envelope
func (api *API) currentDiagnostic(c *gin.Context) {
	resp := response.New(c, api.logger)
	resp.Success(api.dispatcher.Envelope())
}

// getAgents lists the fleet agents known to the gateway
func (api *API) getAgents(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	agents, err := api.gw.GetAgents(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			api.logger.Info("Client canceled agents request")
			return
		}
		api.logger.Error("Failed to get agents",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		resp.BadGateway(errors.New("failed to get agents"))
		return
	}

	resp.Success(agents)
}

// healthCheck reports process health
func (api *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.GetInfo().Version,
		"live":    api.poller.State(),
	})
}
