// Package history is a client for the historical SOH query service.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	historicalSohPath  = "/retrieve-decimated-historical-station-soh"
	historicalAceiPath = "/retrieve-acei-monitor-type-history"
)

var (
	// ErrMissingInput is returned when a query has no input at all.
	ErrMissingInput = errors.New("unable to retrieve historical data due to missing input")
	// ErrMissingStationName is returned when a query has no station name.
	ErrMissingStationName = errors.New("unable to retrieve historical data due to missing stationName")
)

// HistoricalSohInput selects monitor history for one station. Times are
// epoch milliseconds.
type HistoricalSohInput struct {
	StationName     string   `json:"stationName"`
	StartTime       int64    `json:"startTime"`
	EndTime         int64    `json:"endTime"`
	SohMonitorTypes []string `json:"sohMonitorTypes"`
}

// MonitorValues is one channel's history for one monitor type.
type MonitorValues struct {
	ChannelName string    `json:"channelName"`
	MonitorType string    `json:"monitorType"`
	Values      []float64 `json:"values"`
	Average     float64   `json:"average"`
}

// HistoricalSoh is the monitor history for one station.
type HistoricalSoh struct {
	StationName      string          `json:"stationName"`
	CalculationTimes []int64         `json:"calculationTimes"`
	MonitorValues    []MonitorValues `json:"monitorValues"`
}

// HistoricalAceiInput selects ACEI history for one station and monitor type.
// Times are epoch milliseconds.
type HistoricalAceiInput struct {
	StationName string `json:"stationName"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	Type        string `json:"type"`
}

// aceiRequest is the wire form of HistoricalAceiInput; the service expects
// RFC 3339 times.
type aceiRequest struct {
	StationName string `json:"stationName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Type        string `json:"type"`
}

// HistoricalAcei is the ACEI history for one channel. Each issue is a run of
// [timeMs, value] samples.
type HistoricalAcei struct {
	ChannelName string        `json:"channelName"`
	MonitorType string        `json:"monitorType"`
	Issues      [][][]float64 `json:"issues"`
}

// Client calls the historical SOH service.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: http}
}

// GetHistoricalSoh returns monitor history for a station. An empty response
// body yields nil.
func (c *Client) GetHistoricalSoh(ctx context.Context, input *HistoricalSohInput) (*HistoricalSoh, error) {
	if input == nil {
		return nil, ErrMissingInput
	}
	if input.StationName == "" {
		return nil, ErrMissingStationName
	}

	slog.Debug("Calling historical SOH query",
		"station_name", input.StationName,
		"start_time", input.StartTime,
		"end_time", input.EndTime,
		"monitor_types", input.SohMonitorTypes,
	)

	var result HistoricalSoh
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(input).
		SetResult(&result).
		Post(historicalSohPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call historical SOH service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("historical SOH service returned status %d", resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, nil
	}

	slog.Debug("Returning historical SOH data", "station_name", input.StationName, "size", len(result.MonitorValues))
	return &result, nil
}

// GetHistoricalAcei returns ACEI history for a station. An empty response
// yields an empty slice.
func (c *Client) GetHistoricalAcei(ctx context.Context, input *HistoricalAceiInput) ([]HistoricalAcei, error) {
	if input == nil {
		return nil, ErrMissingInput
	}
	if input.StationName == "" {
		return nil, ErrMissingStationName
	}

	req := aceiRequest{
		StationName: input.StationName,
		StartTime:   time.UnixMilli(input.StartTime).UTC().Format(time.RFC3339Nano),
		EndTime:     time.UnixMilli(input.EndTime).UTC().Format(time.RFC3339Nano),
		Type:        input.Type,
	}

	slog.Debug("Calling historical ACEI query",
		"station_name", req.StationName,
		"start_time", req.StartTime,
		"end_time", req.EndTime,
		"type", req.Type,
	)

	var result []HistoricalAcei
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(historicalAceiPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call historical ACEI service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("historical ACEI service returned status %d", resp.StatusCode())
	}
	if result == nil {
		return []HistoricalAcei{}, nil
	}

	slog.Debug("Returning historical ACEI data", "station_name", req.StationName, "size", len(result))
	return result, nil
}
