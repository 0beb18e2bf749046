// Package roles keeps a member's level-role set consistent with their level.
package roles

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/pkg/logger"
)

// Operation names reported in collaborator errors.
const (
	OpGrant        = "grant_role"
	OpRevoke       = "revoke_role"
	OpCurrentRoles = "current_roles"
)

// Plan is the role mutation set for one member.
type Plan struct {
	Grant  string   // empty when no configured level has been reached
	Revoke []string // sorted, never contains Grant
}

// RolesToApply picks the role of the highest configured level not above
// level and lists every other level-role to revoke. held filters the revoke
// list to roles the member holds; a nil held returns every candidate.
func RolesToApply(level int, levelRoles map[int]string, held map[string]struct{}) Plan {
	best := 0
	for l := range levelRoles {
		if l <= level && l > best {
			best = l
		}
	}
	var plan Plan
	if best > 0 {
		plan.Grant = levelRoles[best]
	}

	revoke := make(map[string]struct{})
	for _, roleID := range levelRoles {
		if roleID == plan.Grant || roleID == "" {
			continue
		}
		if held != nil {
			if _, ok := held[roleID]; !ok {
				continue
			}
		}
		revoke[roleID] = struct{}{}
	}
	plan.Revoke = slices.Sorted(maps.Keys(revoke))
	return plan
}

// Mutator applies role changes on the chat platform.
type Mutator interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
	CurrentRoles(ctx context.Context, guildID, userID string) (map[string]struct{}, error)
}

// Report describes what Apply did. Err joins one *model.CollaboratorError per
// failed call; every other call in the plan was still attempted.
type Report struct {
	Plan    Plan
	Granted []string
	Revoked []string
	Err     error
}

// Synchronizer applies plans through a Mutator.
type Synchronizer struct {
	mutator Mutator
	log     logger.Logger
}

// Option applies a configuration option to the Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(m Mutator, opts ...Option) *Synchronizer {
	s := &Synchronizer{mutator: m, log: logger.Get().Named("roles")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply brings userID's level-roles in line with level. Revocations run before
// the grant. When the member's roles cannot be read, every candidate role is
// revoked and the grant is always attempted.
func (s *Synchronizer) Apply(ctx context.Context, guildID, userID string, level int, levelRoles map[int]string) Report {
	var errs []error

	held, err := s.mutator.CurrentRoles(ctx, guildID, userID)
	if err != nil {
		errs = append(errs, model.NewCollaboratorError(OpCurrentRoles, userID, err))
		held = nil
	}

	rep := Report{Plan: RolesToApply(level, levelRoles, held)}
	for _, roleID := range rep.Plan.Revoke {
		if err := s.mutator.RevokeRole(ctx, guildID, userID, roleID); err != nil {
			errs = append(errs, model.NewCollaboratorError(OpRevoke, roleID, err))
			continue
		}
		rep.Revoked = append(rep.Revoked, roleID)
	}

	if rep.Plan.Grant != "" {
		_, alreadyHeld := held[rep.Plan.Grant]
		if !alreadyHeld {
			if err := s.mutator.GrantRole(ctx, guildID, userID, rep.Plan.Grant); err != nil {
				errs = append(errs, model.NewCollaboratorError(OpGrant, rep.Plan.Grant, err))
			} else {
				rep.Granted = append(rep.Granted, rep.Plan.Grant)
			}
		}
	}

	rep.Err = errors.Join(errs...)
	if rep.Err != nil {
		s.log.Warn(ctx, "role sync incomplete",
			logger.String("user_id", userID),
			logger.Int("level", level),
			logger.Error(rep.Err))
	}
	return rep
}
