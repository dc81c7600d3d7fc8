package livesync

import (
	"context"
	"log/slog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// Notice is a user-visible message raised by a hook, e.g. a failed send.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger. It is the default when a hook has no
// client to talk to.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelWarning {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notice", "title", n.Title, "message", n.Message)
}
