package repository

import (
	"errors"
	"fmt"

	"github.com/okian/xpboard/internal/domain/model"
)

// Sentinel kinds for store errors. Both wrap the domain kinds so callers can
// match either.
var (
	ErrNotFound      = fmt.Errorf("record %w", model.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("record %w", model.ErrAlreadyExists)
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrClosed        = errors.New("store closed")
)
