package replay

import (
	"context"
	"fmt"

	"github.com/okian/xpboard/internal/domain/progression"
	"github.com/okian/xpboard/internal/domain/types"
	"github.com/okian/xpboard/pkg/logger"
)

// verify checks that the leaderboard is ordered, that its ranks are
// positional and that every listed user's rank view agrees with it.
func verify(ctx context.Context, c *client, cfg *Config, stats *Stats) error {
	log := logger.Get().Named("replay")

	board, err := c.leaderboard(ctx, cfg.TopN)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	stats.BoardCount = len(board)
	if err := checkBoard(board); err != nil {
		return err
	}
	if len(board) > 0 {
		stats.TopUserID = board[0].UserID
		stats.TopUserXP = board[0].XP
	}

	for _, e := range board {
		view, err := c.rank(ctx, e.UserID)
		if err != nil {
			return fmt.Errorf("rank %s: %w", e.UserID, err)
		}
		// XP can only grow between the two reads while events are in flight.
		if view.XP < e.XP {
			return fmt.Errorf("%w: %s has %d XP on the board but %d in its rank view", ErrInconsistent, e.UserID, e.XP, view.XP)
		}
		if view.Level != progression.LevelFor(view.XP) {
			return fmt.Errorf("%w: %s is level %d with %d XP", ErrInconsistent, e.UserID, view.Level, view.XP)
		}
		stats.Verified++
	}

	log.Info(ctx, "leaderboard verified",
		logger.Int("entries", len(board)),
		logger.String("top_user", stats.TopUserID),
		logger.Int64("top_xp", stats.TopUserXP))
	return nil
}

// checkBoard validates ordering, positional ranks and derived levels.
func checkBoard(board []types.Entry) error {
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if e.Level != progression.LevelFor(e.XP) {
			return fmt.Errorf("%w: %s is level %d with %d XP", ErrInconsistent, e.UserID, e.Level, e.XP)
		}
		if i > 0 && e.XP > board[i-1].XP {
			return fmt.Errorf("%w: entry %d outranks entry %d", ErrInconsistent, i, i-1)
		}
	}
	return nil
}
