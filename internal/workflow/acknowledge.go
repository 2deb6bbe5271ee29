package workflow

import (
	"context"
	"log/slog"
	"strings"

	"soh-gateway/internal/events"
)

// Acknowledge emits one acknowledgement event per station that has
// unacknowledged monitor changes. Stations absent from the cache are listed
// in the receipt's Skipped; stations with nothing to acknowledge emit nothing.
func (w *Workflows) Acknowledge(ctx context.Context, actor string, stationNames []string, comment *string) (Receipt, error) {
	if len(stationNames) == 0 {
		return Receipt{}, ErrNoStations
	}

	slog.Info("Publishing SOH acknowledgement",
		"stations", strings.Join(stationNames, ","),
		"actor", actor,
		"comment", commentText(comment),
	)

	receipt := Receipt{Accepted: true}
	nowMs := w.now().UnixMilli()

	for _, name := range stationNames {
		rec, ok := w.stations.Get(name)
		if !ok {
			receipt.Skipped = append(receipt.Skipped, name)
			slog.Debug("Skipping acknowledgement for unknown station", "station_name", name)
			continue
		}

		changes := rec.UnacknowledgedChanges()
		if len(changes) == 0 {
			slog.Debug("Nothing to acknowledge", "station_name", name)
			continue
		}

		ack := &events.AcknowledgementEvent{
			ID:                  newEventID(),
			AcknowledgedStation: name,
			AcknowledgedBy:      actor,
			AcknowledgedAtMs:    nowMs,
			Comment:             comment,
			AcknowledgedChanges: changes,
		}
		w.emit(ctx, "acknowledgement",
			[]any{"station_name", name, "changes", len(changes)},
			func(ctx context.Context) error { return w.publisher.PublishAcknowledgement(ctx, ack) },
		)
		receipt.Emitted++
	}

	return receipt, nil
}
