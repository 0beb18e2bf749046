package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/roles"
	"github.com/okian/xpboard/pkg/logger"
)

// AdminHandler serves the XP and configuration admin routes.
type AdminHandler struct {
	deps AdminDependencies
	log  logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps, log: logger.Get().Named("admin-api")}
}

type xpRequest struct {
	GuildID  string `json:"guild_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	XP       *int64 `json:"xp"`
}

type roleSyncRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
}

type roleReport struct {
	Grant   string   `json:"grant,omitempty"`
	Revoke  []string `json:"revoke,omitempty"`
	Granted []string `json:"granted"`
	Revoked []string `json:"revoked"`
	Errors  []string `json:"errors,omitempty"`
}

type xpResponse struct {
	UserID       string      `json:"user_id"`
	Username     string      `json:"username"`
	Source       string      `json:"source"`
	Gain         int64       `json:"gain"`
	XP           int64       `json:"xp"`
	Level        int         `json:"level"`
	OldLevel     int         `json:"old_level"`
	LevelsGained int         `json:"levels_gained"`
	Roles        *roleReport `json:"roles,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
}

type levelRoleRequest struct {
	Level  int    `json:"level"`
	RoleID string `json:"role_id"`
	Name   string `json:"name"`
}

type channelRequest struct {
	ChannelID string `json:"channel_id"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

func (h *AdminHandler) audit(r *http.Request, action string, fields ...logger.Field) {
	fields = append(fields, logger.String("admin", AdminSubject(r.Context())), logger.String("action", action))
	h.log.Info(r.Context(), "admin action", fields...)
}

// HandleGrantXP handles POST /admin/xp.
func (h *AdminHandler) HandleGrantXP(w http.ResponseWriter, r *http.Request) {
	var req xpRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, errors.New("missing user_id")))
		return
	}
	out, err := h.deps.GrantXP(r.Context(), req.GuildID, req.UserID, req.Username, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "grant_xp", logger.String("user_id", req.UserID), logger.Int64("amount", req.Amount))
	writeJSON(w, http.StatusOK, toXPResponse(out))
}

// HandleCorrectXP handles PUT /admin/xp, which sets an absolute XP value.
func (h *AdminHandler) HandleCorrectXP(w http.ResponseWriter, r *http.Request) {
	var req xpRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.XP == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, errors.New("user_id and xp are required")))
		return
	}
	out, err := h.deps.CorrectXP(r.Context(), req.GuildID, req.UserID, req.Username, *req.XP)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "correct_xp", logger.String("user_id", req.UserID), logger.Int64("xp", *req.XP))
	writeJSON(w, http.StatusOK, toXPResponse(out))
}

// HandleSyncRoles handles POST /admin/roles/sync.
func (h *AdminHandler) HandleSyncRoles(w http.ResponseWriter, r *http.Request) {
	var req roleSyncRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.GuildID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.Join(ErrBadRequest, errors.New("guild_id and user_id are required")))
		return
	}
	rep, err := h.deps.SyncRoles(r.Context(), req.GuildID, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "sync_roles", logger.String("user_id", req.UserID))
	writeJSON(w, http.StatusOK, toRoleReport(rep))
}

// HandleGetConfig handles GET /admin/config.
func (h *AdminHandler) HandleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings())
}

// HandleAddLevelRole handles POST /admin/level-roles.
func (h *AdminHandler) HandleAddLevelRole(w http.ResponseWriter, r *http.Request) {
	var req levelRoleRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.AddLevelRole(r.Context(), req.Level, req.RoleID, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "add_level_role", logger.Int("level", req.Level), logger.String("role_id", req.RoleID))
	writeJSON(w, http.StatusCreated, h.deps.Settings())
}

// HandleUpdateLevelRole handles PATCH /admin/level-roles/{level}.
func (h *AdminHandler) HandleUpdateLevelRole(w http.ResponseWriter, r *http.Request) {
	level, err := pathLevel(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req levelRoleRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.UpdateLevelRole(r.Context(), level, req.RoleID, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "update_level_role", logger.Int("level", level))
	writeJSON(w, http.StatusOK, h.deps.Settings())
}

// HandleRemoveLevelRole handles DELETE /admin/level-roles/{level}.
func (h *AdminHandler) HandleRemoveLevelRole(w http.ResponseWriter, r *http.Request) {
	level, err := pathLevel(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	roleID, err := h.deps.RemoveLevelRole(r.Context(), level)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "remove_level_role", logger.Int("level", level), logger.String("role_id", roleID))
	writeJSON(w, http.StatusOK, levelRoleRequest{Level: level, RoleID: roleID})
}

// HandleAddIgnoredChannel handles POST /admin/ignored-channels.
func (h *AdminHandler) HandleAddIgnoredChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.AddIgnoredChannel(r.Context(), req.ChannelID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "add_ignored_channel", logger.String("channel_id", req.ChannelID))
	writeJSON(w, http.StatusCreated, req)
}

// HandleRemoveIgnoredChannel handles DELETE /admin/ignored-channels/{channel_id}.
func (h *AdminHandler) HandleRemoveIgnoredChannel(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel_id")
	if err := h.deps.RemoveIgnoredChannel(r.Context(), channelID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "remove_ignored_channel", logger.String("channel_id", channelID))
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateStarboard handles PATCH /admin/starboard.
func (h *AdminHandler) HandleUpdateStarboard(w http.ResponseWriter, r *http.Request) {
	var patch service.StarboardPatch
	if err := decode(r, &patch); err != nil {
		writeDomainError(w, err)
		return
	}
	cfg, err := h.deps.UpdateStarboard(r.Context(), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.audit(r, "update_starboard",
		logger.Bool("enabled", cfg.Enabled),
		logger.Int("threshold", cfg.Threshold))
	writeJSON(w, http.StatusOK, cfg)
}

func pathLevel(r *http.Request) (int, error) {
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		return 0, errors.Join(ErrBadRequest, err)
	}
	return level, nil
}

func toXPResponse(out service.XPOutcome) xpResponse {
	resp := xpResponse{
		UserID:   out.Progress.UserID,
		Username: out.Progress.Username,
		Source:   string(out.Source),
		Gain:     out.Gain,
		XP:       out.Progress.XP,
		Level:    out.Progress.Level,
		OldLevel: out.Progress.Level,
	}
	if out.Change != nil {
		resp.OldLevel = out.Change.OldLevel
		resp.LevelsGained = out.Change.Delta()
	}
	if out.Roles != nil {
		rr := toRoleReport(*out.Roles)
		resp.Roles = &rr
	}
	resp.Warnings = errorStrings(out.CollaboratorErr)
	return resp
}

func toRoleReport(rep roles.Report) roleReport {
	return roleReport{
		Grant:   rep.Plan.Grant,
		Revoke:  rep.Plan.Revoke,
		Granted: nonNil(rep.Granted),
		Revoked: nonNil(rep.Revoked),
		Errors:  errorStrings(rep.Err),
	}
}

// errorStrings lists each collaborator failure in err.
func errorStrings(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorStrings(e)...)
		}
		return out
	}
	var ce *model.CollaboratorError
	if errors.As(err, &ce) {
		return []string{ce.Error()}
	}
	return []string{err.Error()}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
