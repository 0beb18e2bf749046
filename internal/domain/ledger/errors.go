package ledger

import (
	"fmt"

	"github.com/okian/xpboard/internal/domain/model"
)

var (
	errNonPositiveGrant = fmt.Errorf("%w: grant must be positive", model.ErrInvalidAmount)
	errNegativeXP       = fmt.Errorf("%w: xp must not be negative", model.ErrInvalidAmount)
	errOverflow         = fmt.Errorf("%w: xp would overflow", model.ErrInvalidAmount)
	errEmptyUser        = fmt.Errorf("%w: user id is required", model.ErrInvalidArgument)
)
