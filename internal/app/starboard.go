package service

import (
	"context"
	"errors"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/starboard"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

// Collaborator operations on promoted posts.
const (
	OpCreatePost = "create_post"
	OpUpdatePost = "update_post"
)

// StarboardOutcome reports what a reaction did to the starboard.
type StarboardOutcome struct {
	Action starboard.Action
	// Entry is the stored entry after a create or update.
	Entry model.StarboardEntry
	// CollaboratorErr is set when the post could not be created or edited.
	CollaboratorErr error
}

// HandleReaction evaluates the star count of a message and creates or
// updates its promoted post. The message is locked from evaluation until
// the entry is registered, so one message never gets two posts.
func (s *Service) HandleReaction(ctx context.Context, r model.ReactionEvent) (StarboardOutcome, error) { //nolint:gocritic // hugeParam
	cfg := s.settings.Starboard()
	if r.ReactorIsBot || r.AuthorIsBot || r.Emoji != cfg.Emoji {
		return StarboardOutcome{Action: starboard.Action{Kind: starboard.NoAction, StarCount: r.StarCount}}, nil
	}

	unlock := s.msgLocks.Lock(r.MessageID)
	defer unlock()

	act, err := s.registry.Evaluate(ctx, r.MessageID, r.StarCount, cfg)
	if err != nil {
		if errors.Is(err, model.ErrPersistence) {
			metrics.RecordPersistenceFailure("starboard")
		}
		return StarboardOutcome{}, err
	}
	metrics.RecordStarboardAction(act.Kind.String())
	out := StarboardOutcome{Action: act}

	switch act.Kind {
	case starboard.CreatePromotion:
		return s.promote(ctx, r, act, cfg)
	case starboard.UpdateCount:
		out.Entry = model.StarboardEntry{
			SourceMessageID:   r.MessageID,
			PromotedMessageID: act.PromotedMessageID,
			StarCount:         act.StarCount,
			AuthorID:          r.Post.AuthorID,
			SourceChannelID:   r.ChannelID,
		}
		if s.publisher == nil {
			return out, nil
		}
		if err := s.publisher.UpdatePostStarCount(ctx, cfg.ChannelID, act.PromotedMessageID, act.StarCount, cfg.Emoji); err != nil {
			out.CollaboratorErr = model.NewCollaboratorError(OpUpdatePost, act.PromotedMessageID, err)
			s.logger.Warn(ctx, "promoted post update failed",
				logger.String("source_message_id", r.MessageID),
				logger.Error(err))
		}
	}
	return out, nil
}

func (s *Service) promote(ctx context.Context, r model.ReactionEvent, act starboard.Action, cfg model.StarboardConfig) (StarboardOutcome, error) { //nolint:gocritic // hugeParam
	out := StarboardOutcome{Action: act}
	if s.publisher == nil || cfg.ChannelID == "" {
		s.registry.Abandon(r.MessageID)
		out.CollaboratorErr = model.NewCollaboratorError(OpCreatePost, r.MessageID, errors.New("no starboard channel"))
		return out, nil
	}

	postID, err := s.publisher.CreatePost(ctx, cfg.ChannelID, r.Post, act.StarCount, cfg.Emoji)
	if err != nil {
		s.registry.Abandon(r.MessageID)
		out.CollaboratorErr = model.NewCollaboratorError(OpCreatePost, r.MessageID, err)
		s.logger.Warn(ctx, "promoted post creation failed",
			logger.String("source_message_id", r.MessageID),
			logger.Error(err))
		return out, nil
	}

	authorID := r.Post.AuthorID
	stored, err := s.registry.Register(ctx, model.StarboardEntry{
		SourceMessageID:   r.MessageID,
		PromotedMessageID: postID,
		StarCount:         act.StarCount,
		AuthorID:          authorID,
		SourceChannelID:   r.ChannelID,
	})
	switch {
	case errors.Is(err, model.ErrAlreadyExists):
		// Another path promoted the message first; its post is the one kept.
		out.Entry = stored
		return out, nil
	case err != nil:
		// The claim keeps postID; the next reaction stores it instead of promoting again.
		metrics.RecordPersistenceFailure("starboard")
		s.logger.Warn(ctx, "promoted post not registered",
			logger.String("source_message_id", r.MessageID),
			logger.String("promoted_message_id", postID),
			logger.Error(err))
		return out, err
	}
	out.Entry = stored

	s.logger.Info(ctx, "message promoted",
		logger.String("source_message_id", r.MessageID),
		logger.String("promoted_message_id", postID),
		logger.Int("stars", stored.StarCount))

	if stored.StarCount > act.StarCount {
		if err := s.publisher.UpdatePostStarCount(ctx, cfg.ChannelID, postID, stored.StarCount, cfg.Emoji); err != nil {
			out.CollaboratorErr = model.NewCollaboratorError(OpUpdatePost, postID, err)
		}
	}
	return out, nil
}
