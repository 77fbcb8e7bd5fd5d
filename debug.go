package sapling

import (
	"io"
	"log/slog"
)

// discardLogger is the default for every component that takes a logger.
var discardLogger = slog.New(slog.DiscardHandler)

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// NewDebugLogger returns a text logger writing debug-level records to w.
// Pass it to StateOptions, DialogueOptions or NewScriptHost to trace
// checkpoints, prunes, page transitions and script lifecycle.
func NewDebugLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// debugMaxResources is the store size above which a prune logs a warning.
// Large counts usually mean something forks on every frame.
const debugMaxResources = 4096

func debugCheckResourceCount(l *slog.Logger, n int) {
	if n > debugMaxResources {
		l.Warn("resource store is large after prune", "count", n, "threshold", debugMaxResources)
	}
}

// debugMaxHistoryDoc warns when a single history entry references more
// resources than this, which makes every prune proportionally slower.
const debugMaxHistoryDoc = 1024

func debugCheckManifestSize(l *slog.Logger, n int) {
	if n > debugMaxHistoryDoc {
		l.Warn("document manifest is large", "ids", n, "threshold", debugMaxHistoryDoc)
	}
}
