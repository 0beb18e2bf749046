package service

import (
	"context"
	"errors"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/settings"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

// StarboardPatch is a partial starboard update.
type StarboardPatch = settings.StarboardPatch

// Settings returns a copy of the current configuration.
func (s *Service) Settings() model.Settings {
	return s.settings.Snapshot()
}

// AddLevelRole maps level to roleID.
func (s *Service) AddLevelRole(ctx context.Context, level int, roleID, name string) error {
	return s.configResult(ctx, "add_level_role", s.settings.AddLevelRole(ctx, level, roleID, name))
}

// UpdateLevelRole changes the role or display name mapped to level.
func (s *Service) UpdateLevelRole(ctx context.Context, level int, roleID, name string) error {
	return s.configResult(ctx, "update_level_role", s.settings.UpdateLevelRole(ctx, level, roleID, name))
}

// RemoveLevelRole unmaps level and returns the role it pointed to.
func (s *Service) RemoveLevelRole(ctx context.Context, level int) (string, error) {
	roleID, err := s.settings.RemoveLevelRole(ctx, level)
	return roleID, s.configResult(ctx, "remove_level_role", err)
}

// AddIgnoredChannel stops XP accrual in channelID.
func (s *Service) AddIgnoredChannel(ctx context.Context, channelID string) error {
	return s.configResult(ctx, "add_ignored_channel", s.settings.AddIgnoredChannel(ctx, channelID))
}

// RemoveIgnoredChannel resumes XP accrual in channelID.
func (s *Service) RemoveIgnoredChannel(ctx context.Context, channelID string) error {
	return s.configResult(ctx, "remove_ignored_channel", s.settings.RemoveIgnoredChannel(ctx, channelID))
}

// UpdateStarboard applies a partial starboard update.
func (s *Service) UpdateStarboard(ctx context.Context, patch StarboardPatch) (model.StarboardConfig, error) {
	cfg, err := s.settings.UpdateStarboard(ctx, patch)
	return cfg, s.configResult(ctx, "update_starboard", err)
}

func (s *Service) configResult(ctx context.Context, op string, err error) error {
	if err == nil {
		s.logger.Info(ctx, "configuration updated", logger.String("op", op))
		return nil
	}
	if errors.Is(err, model.ErrPersistence) {
		metrics.RecordPersistenceFailure("settings")
		s.logger.Error(ctx, "configuration write failed", logger.String("op", op), logger.Error(err))
	}
	return err
}
