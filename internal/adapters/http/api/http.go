// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/roles"
	"github.com/okian/xpboard/internal/domain/types"
)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// RankView is the read shape of GET /rank/{user_id}.
type RankView = types.RankView

// ReadDependencies are the public read operations.
type ReadDependencies interface {
	Leaderboard(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, userID string) (RankView, error)
}

// AdminDependencies are the operations behind the admin routes.
type AdminDependencies interface {
	Submit(ctx context.Context, e model.GatewayEvent) (service.Disposition, error)

	GrantXP(ctx context.Context, guildID, userID, displayName string, amount int64) (service.XPOutcome, error)
	CorrectXP(ctx context.Context, guildID, userID, displayName string, xp int64) (service.XPOutcome, error)
	SyncRoles(ctx context.Context, guildID, userID string) (roles.Report, error)

	Settings() model.Settings
	AddLevelRole(ctx context.Context, level int, roleID, name string) error
	UpdateLevelRole(ctx context.Context, level int, roleID, name string) error
	RemoveLevelRole(ctx context.Context, level int) (string, error)
	AddIgnoredChannel(ctx context.Context, channelID string) error
	RemoveIgnoredChannel(ctx context.Context, channelID string) error
	UpdateStarboard(ctx context.Context, patch service.StarboardPatch) (model.StarboardConfig, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ReadDependencies
	AdminDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	eventsHandler      *EventsHandler
	adminHandler       *AdminHandler

	adminSecret []byte
}

// Option configures the Server.
type Option func(*Server)

// WithAdminSecret enables the admin routes, authenticated with HS256 tokens
// signed by secret.
func WithAdminSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.adminSecret = []byte(secret)
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		eventsHandler:      NewEventsHandler(deps),
		adminHandler:       NewAdminHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux. Admin routes are only mounted
// when an admin secret is configured.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	if len(s.adminSecret) == 0 {
		return
	}
	admin := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(AdminAuth(s.adminSecret, h), endpoint))
	}
	a := s.adminHandler
	admin("POST /admin/events", "admin_events", s.eventsHandler.HandlePostEvent)
	admin("POST /admin/xp", "admin_xp", a.HandleGrantXP)
	admin("PUT /admin/xp", "admin_xp", a.HandleCorrectXP)
	admin("POST /admin/roles/sync", "admin_roles_sync", a.HandleSyncRoles)
	admin("GET /admin/config", "admin_config", a.HandleGetConfig)
	admin("POST /admin/level-roles", "admin_level_roles", a.HandleAddLevelRole)
	admin("PATCH /admin/level-roles/{level}", "admin_level_roles", a.HandleUpdateLevelRole)
	admin("DELETE /admin/level-roles/{level}", "admin_level_roles", a.HandleRemoveLevelRole)
	admin("POST /admin/ignored-channels", "admin_ignored_channels", a.HandleAddIgnoredChannel)
	admin("DELETE /admin/ignored-channels/{channel_id}", "admin_ignored_channels", a.HandleRemoveIgnoredChannel)
	admin("PATCH /admin/starboard", "admin_starboard", a.HandleUpdateStarboard)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the domain error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidArgument),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, model.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "persistence_failure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
