package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stock-trading-bot/internal/engine"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.engine.Start(); err != nil {
		switch {
		case errors.Is(err, engine.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"error": "engine already running"})
		case errors.Is(err, engine.ErrHalted):
			c.JSON(http.StatusConflict, gin.H{"error": "engine halted by risk limits, use /api/restart"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "engine started"})
}

func (s *Server) handleStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "engine stopped"})
}

func (s *Server) handleRestart(c *gin.Context) {
	if err := s.engine.Restart(); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "engine already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "engine restarted"})
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.engine.Reset(); err != nil {
		if errors.Is(err, engine.ErrRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "stop the engine before resetting"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account reset"})
}

func (s *Server) handlePositions(c *gin.Context) {
	status := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"positions": status.Positions,
		"count":     status.PositionCount,
	})
}

// handleConfig exposes the non-secret parts of the running
// configuration.
func (s *Server) handleConfig(c *gin.Context) {
	if s.appConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "configuration not exposed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"strategy": s.appConfig.StrategyConfig,
		"risk":     s.appConfig.RiskConfig,
		"trading":  s.appConfig.TradingConfig,
		"account":  s.appConfig.AccountConfig,
		"market":   s.appConfig.MarketConfig,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := s.repo.GetPositionHistory(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load position history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records, "count": len(records)})
}

func (s *Server) handleStatistics(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	stats, err := s.repo.GetDailyStats(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load daily statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats, "count": len(stats)})
}
