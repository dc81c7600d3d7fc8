package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusconnect/internal/changes"
	"campusconnect/internal/livesync"
	"campusconnect/internal/metrics"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Stores  livesync.Stores
	Feed    changes.Feed
	Metrics *metrics.Sync
	// Timeout bounds every store call a hook makes; zero means the hook default.
	Timeout time.Duration
	// AllowedOrigins lists the browser origins allowed to open live sessions.
	// Empty means same-origin only; "*" allows any.
	AllowedOrigins []string
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:  logger,
		isProd:  opts.IsProd,
		dbPing:  opts.DBPing,
		stores:  opts.Stores,
		feed:    opts.Feed,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	publicMux.Handle("GET /metrics", promhttp.Handler())

	apiMux.HandleFunc("GET /v1/live/chat/{peerID}", api.requireUser(api.handleLiveChat))
	apiMux.HandleFunc("GET /v1/live/comments/{postID}", api.requireUser(api.handleLiveComments))
	apiMux.HandleFunc("GET /v1/live/feed", api.requireUser(api.handleLiveFeed))
	apiMux.HandleFunc("GET /v1/live/notifications", api.requireUser(api.handleLiveNotifications))
	apiMux.HandleFunc("GET /v1/live/connections", api.requireUser(api.handleLiveConnections))

	apiMux.HandleFunc("GET /v1/profile", api.requireUser(api.handleProfileGet))
	apiMux.HandleFunc("PATCH /v1/profile", api.requireUser(api.handleProfileUpdate))
	apiMux.HandleFunc("POST /v1/profile/avatar", api.requireUser(api.handleProfileAvatar))
	apiMux.HandleFunc("GET /v1/users/search", api.requireUser(api.handleUsersSearch))
	apiMux.HandleFunc("GET /v1/connections/status/{userID}", api.requireUser(api.handleConnectionStatus))
	apiMux.HandleFunc("POST /v1/chat/{peerID}/attachments", api.requireUser(api.handleChatAttachments))
	apiMux.HandleFunc("POST /v1/feed/media", api.requireUser(api.handleFeedMedia))

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	stores   livesync.Stores
	feed     changes.Feed
	metrics  *metrics.Sync
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// hookOptions builds the options a hook runs with for one acting user.
func (a *api) hookOptions(userID string, notifier livesync.Notifier) livesync.Options {
	return livesync.Options{
		ActingUserID: userID,
		Feed:         a.feed,
		Notifier:     notifier,
		Logger:       a.logger.With("user_id", userID),
		Metrics:      a.metrics,
		Timeout:      a.timeout,
	}
}

// remote bounds a store call made outside a hook the same way hooks do.
func (a *api) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := a.timeout
	if timeout <= 0 {
		timeout = livesync.DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
