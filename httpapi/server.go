// Package httpapi exposes the engine's operational surface: liveness,
// Prometheus scraping, and a debug endpoint for checking what a given
// backtest configuration would hash to.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backtestcore/hashid"
	"backtestcore/logging"
	"backtestcore/metrics"
)

// Server wraps a gin engine bound to the process's metrics registry.
type Server struct {
	engine *gin.Engine
	logger logging.Logger
}

// New builds a Server with routes registered.
func New() *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine: gin.New(),
		logger: logging.Default().With("component", "httpapi"),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Run starts the HTTP server on addr, blocking until it exits.
func (s *Server) Run(addr string) error {
	s.logger.Infof("listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	s.engine.POST("/debug/hash", s.handleDebugHash)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDebugHash computes and returns the configuration hash a backtest
// with this request body would run under, without actually running it.
func (s *Server) handleDebugHash(c *gin.Context) {
	var req struct {
		StrategyName       string          `json:"strategy_name" binding:"required"`
		StrategyParams     map[string]any  `json:"strategy_params"`
		StepFrequency      string          `json:"step_frequency"`
		CapitalPerTrade    float64         `json:"capital_per_trade"`
		RiskFreeRate       float64         `json:"risk_free_rate"`
		WalkForward        map[string]any  `json:"walk_forward"`
		PositionManagerCfg *map[string]any `json:"position_manager_config"`
		FilterCfg          *map[string]any `json:"filter_config"`
		ExecutionConfig    struct {
			SlippageBps        float64 `json:"slippage_bps"`
			CommissionPerShare float64 `json:"commission_per_share"`
			UseLimitOrders     bool    `json:"use_limit_orders"`
			FillDelayMinutes   float64 `json:"fill_delay_minutes"`
		} `json:"execution_config"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	hash, err := hashid.Compute(hashid.Config{
		StrategyName:       req.StrategyName,
		StrategyParams:     req.StrategyParams,
		StepFrequency:      req.StepFrequency,
		CapitalPerTrade:    req.CapitalPerTrade,
		RiskFreeRate:        req.RiskFreeRate,
		WalkForward:        req.WalkForward,
		PositionManagerCfg: req.PositionManagerCfg,
		FilterCfg:          req.FilterCfg,
		ExecutionConfig: hashid.ExecutionCfg{
			SlippageBps:        req.ExecutionConfig.SlippageBps,
			CommissionPerShare: req.ExecutionConfig.CommissionPerShare,
			UseLimitOrders:     req.ExecutionConfig.UseLimitOrders,
			FillDelayMinutes:   req.ExecutionConfig.FillDelayMinutes,
		},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute hash: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hash_id": hash})
}
