package livesync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusconnect/internal/changes"
	"campusconnect/internal/domain"
	"campusconnect/internal/metrics"
)

const DefaultTimeout = 10 * time.Second

// Options carries what every hook needs besides its stores. ActingUserID is the
// authenticated user the hook acts for; it is required.
type Options struct {
	ActingUserID string
	Feed         changes.Feed
	Notifier     Notifier
	Logger       *slog.Logger
	Metrics      *metrics.Sync
	Timeout      time.Duration
	Now          func() time.Time
	// NewToken returns the per-batch token in media object keys.
	NewToken func() string
}

func (o Options) withDefaults() (Options, error) {
	o.ActingUserID = strings.TrimSpace(o.ActingUserID)
	if o.ActingUserID == "" {
		return o, domain.ErrUnauthorized
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = LogNotifier{Logger: o.Logger}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewToken == nil {
		o.NewToken = shortToken
	}
	return o, nil
}

func shortToken() string {
	return uuid.NewString()[:8]
}

func (o Options) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.Timeout)
}

// fail records a remote failure and tells the user about it.
func (o Options) fail(entity string, err error, title, message string) {
	kind := errorKind(err)
	o.Metrics.Error(entity, kind)
	o.Logger.Warn("sync failure", "entity", entity, "kind", kind, "err", err)
	if kind == "timeout" {
		message = "The request timed out. Please try again."
	}
	o.Notifier.Notify(Notice{Level: LevelWarning, Title: title, Message: message})
}

func (o Options) succeed(title, message string) {
	o.Notifier.Notify(Notice{Level: LevelSuccess, Title: title, Message: message})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrDuplicateConnection):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "transition"
	case errors.Is(err, domain.ErrUpload):
		return "upload"
	case errors.Is(err, domain.ErrWrite):
		return "write"
	case errors.Is(err, domain.ErrFetch):
		return "fetch"
	default:
		return "other"
	}
}

func validation(field, msg string) error {
	return domain.NewValidationError(map[string]string{field: msg})
}
