package reconcile

import "log/slog"

// LogHandler returns an EventHandler that renders pass progress through a
// slog.Logger. Tool-level events carry the one-line record summary.
func LogHandler(logger *slog.Logger) EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e Event) {
		switch e.Kind {
		case EventPassStarted:
			logger.Info("pass started", "pass_id", e.PassID)
		case EventToolInserted:
			logger.Info("inserted new tool", "pass_id", e.PassID, "tool", toolLine(e))
		case EventToolDeactivated:
			logger.Info("deactivating removed tool", "pass_id", e.PassID, "tool", toolKey(e))
		case EventToolRefreshed:
			logger.Info("refreshed stale tool", "pass_id", e.PassID, "tool", toolLine(e))
		case EventToolEmpty:
			logger.Warn("tool has no recorded runs", "pass_id", e.PassID, "tool", toolKey(e))
		case EventPassFinished:
			logger.Info("pass finished",
				"pass_id", e.PassID,
				"elapsed", e.Elapsed,
				"inserted", e.Counts.Inserted,
				"deactivated", e.Counts.Deactivated,
				"refreshed", e.Counts.Refreshed,
				"empty", e.Counts.Empty,
			)
		case EventPassFailed:
			logger.Error("pass failed",
				"pass_id", e.PassID,
				"elapsed", e.Elapsed,
				"inserted", e.Counts.Inserted,
				"deactivated", e.Counts.Deactivated,
				"refreshed", e.Counts.Refreshed,
				"error", e.Err,
			)
		}
	}
}

func toolLine(e Event) string {
	if e.Tool == nil {
		return ""
	}
	return e.Tool.String()
}

func toolKey(e Event) string {
	if e.Tool == nil {
		return ""
	}
	return e.Tool.Key()
}
