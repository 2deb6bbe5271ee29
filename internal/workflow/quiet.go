package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"soh-gateway/internal/events"
)

// Quiet emits one quiet event per channel/monitor pair. quietUntilMs is now
// plus the requested duration; a duration of zero cancels quieting. All
// requests are validated before anything is emitted, and events are
// independent once emitted.
func (w *Workflows) Quiet(ctx context.Context, actor string, requests []events.ChannelMonitorInput) (Receipt, error) {
	nowMs := w.now().UnixMilli()
	for i, req := range requests {
		if err := validateQuiet(req, nowMs); err != nil {
			return Receipt{}, fmt.Errorf("request %d: %w", i, err)
		}
	}

	receipt := Receipt{Accepted: true}

	for _, req := range requests {
		durationMs := w.defaultQuiet.Milliseconds()
		if req.QuietDurationMs != nil {
			durationMs = *req.QuietDurationMs
		}

		slog.Info("Publishing SOH quiet",
			"station_name", req.StationName,
			"pairs", pairString(req.ChannelMonitorPairs),
			"quiet_duration_ms", durationMs,
			"actor", actor,
			"comment", commentText(req.Comment),
		)

		for _, pair := range req.ChannelMonitorPairs {
			quiet := &events.QuietEvent{
				StationName:     req.StationName,
				ChannelName:     pair.ChannelName,
				MonitorType:     pair.MonitorType,
				QuietUntilMs:    nowMs + durationMs,
				QuietDurationMs: durationMs,
				QuietedBy:       actor,
				Comment:         req.Comment,
			}
			w.emit(ctx, "quiet",
				[]any{"station_name", quiet.StationName, "channel_name", quiet.ChannelName, "monitor_type", quiet.MonitorType},
				func(ctx context.Context) error { return w.publisher.PublishQuiet(ctx, quiet) },
			)
			receipt.Emitted++
		}
	}

	return receipt, nil
}

func validateQuiet(req events.ChannelMonitorInput, nowMs int64) error {
	if req.StationName == "" {
		return ErrMissingStationName
	}
	if req.QuietDurationMs != nil {
		if *req.QuietDurationMs < 0 {
			return ErrNegativeDuration
		}
		// quietUntilMs must stay representable
		if *req.QuietDurationMs > math.MaxInt64-nowMs {
			return ErrDurationTooLong
		}
	}
	for _, pair := range req.ChannelMonitorPairs {
		if pair.ChannelName == "" || pair.MonitorType == "" {
			return ErrInvalidPair
		}
	}
	return nil
}

func pairString(pairs []events.ChannelMonitorPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.ChannelName+"/"+p.MonitorType)
	}
	return strings.Join(parts, ",")
}
