package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/okian/xpboard/internal/domain/ledger"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/progression"
	"github.com/okian/xpboard/internal/domain/roles"
	"github.com/okian/xpboard/internal/domain/types"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

const defaultLeaderboard = 10

// XPOutcome is the result of one XP operation plus its side effects.
type XPOutcome struct {
	ledger.Result
	// Roles is set when a level change triggered a role sync.
	Roles *roles.Report
	// CollaboratorErr joins announcement and role failures. The XP write has
	// already succeeded when it is non-nil.
	CollaboratorErr error
}

// HandleMessage awards message XP to the author, subject to the cooldown.
// Bot authors and ignored channels earn nothing.
func (s *Service) HandleMessage(ctx context.Context, m model.MessageEvent) (XPOutcome, error) {
	if m.IsBot || s.settings.IsIgnored(m.ChannelID) {
		return XPOutcome{Result: ledger.Result{Source: ledger.SourceMessage}}, nil
	}

	res, err := s.ledger.OnMessage(ctx, m.AuthorID, m.AuthorName, utf8.RuneCountInString(m.Content), s.now())
	if err != nil {
		s.recordLedgerFailure(ctx, err, m.AuthorID)
		return XPOutcome{}, err
	}
	if !res.Awarded {
		metrics.RecordCooldownRejection()
		return XPOutcome{Result: res}, nil
	}
	return s.afterXP(ctx, m.GuildID, m.ChannelID, res), nil
}

// GrantXP adds amount (> 0) to userID. A level change syncs roles when
// guildID is set; no announcement is made.
func (s *Service) GrantXP(ctx context.Context, guildID, userID, displayName string, amount int64) (XPOutcome, error) {
	res, err := s.ledger.Grant(ctx, userID, displayName, amount)
	if err != nil {
		s.recordLedgerFailure(ctx, err, userID)
		return XPOutcome{}, err
	}
	return s.afterXP(ctx, guildID, "", res), nil
}

// CorrectXP sets userID's XP to an absolute value. The level may go down.
func (s *Service) CorrectXP(ctx context.Context, guildID, userID, displayName string, xp int64) (XPOutcome, error) {
	res, err := s.ledger.Correct(ctx, userID, displayName, xp)
	if err != nil {
		s.recordLedgerFailure(ctx, err, userID)
		return XPOutcome{}, err
	}
	return s.afterXP(ctx, guildID, "", res), nil
}

// SyncRoles reapplies the level roles of userID's current level.
func (s *Service) SyncRoles(ctx context.Context, guildID, userID string) (roles.Report, error) {
	if s.sync == nil {
		return roles.Report{}, fmt.Errorf("%w: no role mutator configured", model.ErrInvalidArgument)
	}
	return s.syncStoredLevel(ctx, guildID, userID)
}

// syncStoredLevel applies the roles of userID's stored level. Syncs for one
// user run one at a time and each reads the level after the previous one
// finished, so overlapping XP writes converge on the latest level's role.
func (s *Service) syncStoredLevel(ctx context.Context, guildID, userID string) (roles.Report, error) {
	unlock := s.roleLocks.Lock(userID)
	defer unlock()

	p, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return roles.Report{}, err
	}
	rep := s.sync.Apply(ctx, guildID, userID, p.Level, s.settings.LevelRoles())
	recordRoleMetrics(rep)
	return rep, nil
}

func (s *Service) afterXP(ctx context.Context, guildID, channelID string, res ledger.Result) XPOutcome {
	metrics.RecordXPAwarded(string(res.Source), res.Gain)
	out := XPOutcome{Result: res}
	if res.Change == nil {
		return out
	}

	change := *res.Change
	s.logger.Info(ctx, "level changed",
		logger.String("user_id", change.UserID),
		logger.Int("old_level", change.OldLevel),
		logger.Int("new_level", change.NewLevel),
		logger.String("source", string(res.Source)))

	var errs []error
	if change.IsLevelUp() {
		metrics.RecordLevelUp()
		if s.announcer != nil && channelID != "" {
			if err := s.announcer.AnnounceLevelUp(ctx, channelID, change); err != nil {
				errs = append(errs, model.NewCollaboratorError("announce_level_up", channelID, err))
			}
		}
	}
	if s.sync != nil && guildID != "" {
		rep, err := s.syncStoredLevel(ctx, guildID, change.UserID)
		switch {
		case err != nil:
			errs = append(errs, model.NewCollaboratorError("sync_roles", change.UserID, err))
		default:
			out.Roles = &rep
			if rep.Err != nil {
				errs = append(errs, rep.Err)
			}
		}
	}
	out.CollaboratorErr = errors.Join(errs...)
	return out
}

func (s *Service) recordLedgerFailure(ctx context.Context, err error, userID string) {
	if errors.Is(err, model.ErrPersistence) {
		metrics.RecordPersistenceFailure("ledger")
		s.logger.Error(ctx, "xp write failed", logger.String("user_id", userID), logger.Error(err))
	}
}

func recordRoleMetrics(rep roles.Report) {
	for range rep.Granted {
		metrics.RecordRoleMutation(roles.OpGrant, "ok")
	}
	for range rep.Revoked {
		metrics.RecordRoleMutation(roles.OpRevoke, "ok")
	}
	for _, ce := range collaboratorFailures(rep.Err) {
		metrics.RecordRoleMutation(ce.Op, "error")
	}
}

// collaboratorFailures flattens a joined error into its collaborator failures.
func collaboratorFailures(err error) []*model.CollaboratorError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*model.CollaboratorError
		for _, e := range joined.Unwrap() {
			out = append(out, collaboratorFailures(e)...)
		}
		return out
	}
	var ce *model.CollaboratorError
	if errors.As(err, &ce) {
		return []*model.CollaboratorError{ce}
	}
	return nil
}

// Rank returns userID's leaderboard position and level progress.
func (s *Service) Rank(ctx context.Context, userID string) (types.RankView, error) {
	entry, err := s.store.Rank(ctx, userID)
	if err != nil {
		return types.RankView{}, err
	}
	info := progression.Progress(entry.XP)
	return types.RankView{
		Entry:          entry,
		CurrentLevelXP: info.CurrentLevelXP,
		NextLevelXP:    info.NextLevelXP,
		XPNeeded:       info.XPNeeded,
		Percent:        info.Percent,
		MaxLevel:       info.MaxLevel,
	}, nil
}

// Leaderboard returns the top n users. n <= 0 means the default size; larger
// requests are capped.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	if n <= 0 {
		n = defaultLeaderboard
	}
	n = min(n, s.maxLeaderboard)
	return s.store.TopN(ctx, n)
}
