package wallet

import (
	"context"
	"log/slog"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelError   = "error"
)

// Notification kinds.
const (
	KindConnected    = "connected"
	KindDisconnected = "disconnected"
	KindError        = "error"
)

// Notification is user-facing feedback about the wallet.
type Notification struct {
	Kind    string `json:"kind"`
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Account string `json:"account,omitempty"`
}

// Notifier delivers notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	level := slog.LevelInfo
	if note.Level == LevelError {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, note.Title,
		"kind", note.Kind,
		"message", note.Message,
		"account", note.Account,
	)
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
