package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"soh-gateway/internal/events"
	"soh-gateway/internal/history"
	"soh-gateway/internal/workflow"
)

const (
	actorHeader  = "X-User-Name"
	defaultActor = "unknown"
)

type acknowledgeRequest struct {
	StationNames []string `json:"stationNames"`
	Comment      *string  `json:"comment"`
}

type quietRequest struct {
	ChannelMonitorsToQuiet []events.ChannelMonitorInput `json:"channelMonitorsToQuiet"`
}

type settingsResponse struct {
	RedisplayPeriodMs              int64    `json:"redisplayPeriodMs"`
	AcknowledgementQuietDurationMs int64    `json:"acknowledgementQuietDurationMs"`
	DisplayedStationGroups         []string `json:"displayedStationGroups"`
}

func actor(c *gin.Context) string {
	if name := c.GetHeader(actorHeader); name != "" {
		return name
	}
	return defaultActor
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) handleListStations(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Soh.CurrentView())
}

func (s *Server) handleGetStation(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Soh.StationDetail(c.Param("station")))
}

func (s *Server) handleAcknowledge(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := s.deps.Commands.Acknowledge(c.Request.Context(), actor(c), req.StationNames, req.Comment)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleQuiet(c *gin.Context) {
	var req quietRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := s.deps.Commands.Quiet(c.Request.Context(), actor(c), req.ChannelMonitorsToQuiet)
	if err != nil {
		if isValidationError(err) {
			badRequest(c, err)
			return
		}
		slog.Error("Quiet command failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (s *Server) handleHistoricalSoh(c *gin.Context) {
	var input *history.HistoricalSohInput
	if err := bindOptional(c, &input); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.deps.History.GetHistoricalSoh(c.Request.Context(), input)
	if err != nil {
		s.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistoricalAcei(c *gin.Context) {
	var input *history.HistoricalAceiInput
	if err := bindOptional(c, &input); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.deps.History.GetHistoricalAcei(c.Request.Context(), input)
	if err != nil {
		s.historyError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) historyError(c *gin.Context, err error) {
	if errors.Is(err, history.ErrMissingInput) || errors.Is(err, history.ErrMissingStationName) {
		badRequest(c, err)
		return
	}
	slog.Error("Historical query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func (s *Server) handleSettings(c *gin.Context) {
	st := s.deps.Settings
	c.JSON(http.StatusOK, settingsResponse{
		RedisplayPeriodMs:              st.RedisplayPeriod.Milliseconds(),
		AcknowledgementQuietDurationMs: st.AcknowledgementQuietDuration.Milliseconds(),
		DisplayedStationGroups:         st.DisplayedStationGroups,
	})
}

func (s *Server) handleServiceMetrics(c *gin.Context) {
	if s.deps.Metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics are not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Metrics.GetSnapshot())
}

// bindOptional decodes a JSON body into *dst, leaving it nil when the body
// is empty.
func bindOptional[T any](c *gin.Context, dst **T) error {
	var v T
	if err := c.ShouldBindJSON(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	*dst = &v
	return nil
}

func isValidationError(err error) bool {
	return errors.Is(err, workflow.ErrMissingStationName) ||
		errors.Is(err, workflow.ErrInvalidPair) ||
		errors.Is(err, workflow.ErrNegativeDuration) ||
		errors.Is(err, workflow.ErrDurationTooLong)
}
