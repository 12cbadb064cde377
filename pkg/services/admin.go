package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// broadcastConcurrency bounds the DM fan-out; the adapter is rate-limited IO.
const broadcastConcurrency = 8

// BroadcastAudience selects who receives an admin broadcast.
type BroadcastAudience string

const (
	AudienceUser           BroadcastAudience = "user"
	AudienceGuardians      BroadcastAudience = "guardians"      // Guardians and above
	AudienceModerators     BroadcastAudience = "moderators"     // Moderators and above
	AudienceAdministrators BroadcastAudience = "administrators" // Administrators only
	AudienceGuildChannel   BroadcastAudience = "guild-channel"
)

// AdminService exposes the operator surface: balance adjustments and
// broadcasts. Callers must hold the Administrator tier.
type AdminService struct {
	store   *repository.Store
	adapter chat.Adapter
	chatCfg config.ChatConfig
	logger  *logging.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(store *repository.Store, adapter chat.Adapter, chatCfg config.ChatConfig, logger *logging.Logger) *AdminService {
	return &AdminService{store: store, adapter: adapter, chatCfg: chatCfg, logger: logger}
}

func (s *AdminService) requireAdmin(ctx context.Context, actorID int64) error {
	actor, err := s.store.Reviewers.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Tier != models.TierAdministrator {
		return models.ErrNotAuthorized
	}
	return nil
}

// AdjustPoints changes a reviewer's points (and the coupled XP) by delta.
// Balances clamp at zero.
func (s *AdminService) AdjustPoints(ctx context.Context, actorID, reviewerID int64, delta int) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := s.store.Reviewers.AdjustPointsXP(ctx, reviewerID, delta, delta*2); err != nil {
		return err
	}
	s.logger.Info("points adjusted",
		zap.Int64("actor_id", actorID),
		zap.Int64("reviewer_id", reviewerID),
		zap.Int("delta", delta),
	)
	return nil
}

// AdjustExperience changes a reviewer's XP only.
func (s *AdminService) AdjustExperience(ctx context.Context, actorID, reviewerID int64, delta int) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := s.store.Reviewers.AdjustPointsXP(ctx, reviewerID, 0, delta); err != nil {
		return err
	}
	s.logger.Info("experience adjusted",
		zap.Int64("actor_id", actorID),
		zap.Int64("reviewer_id", reviewerID),
		zap.Int("delta", delta),
	)
	return nil
}

// Broadcast fans the payload out to the chosen audience. Target is a user id
// for AudienceUser and a channel id for AudienceGuildChannel; ignored
// otherwise. Returns the number of successful deliveries.
func (s *AdminService) Broadcast(ctx context.Context, actorID int64, audience BroadcastAudience, target int64, payload chat.Payload) (int, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return 0, err
	}

	switch audience {
	case AudienceUser:
		if err := s.sendOne(ctx, target, payload); err != nil {
			return 0, err
		}
		return 1, nil

	case AudienceGuildChannel:
		callCtx, cancel := context.WithTimeout(ctx, s.chatCfg.CallTimeout)
		defer cancel()
		if _, err := s.adapter.SendChannelMessage(callCtx, target, payload); err != nil {
			return 0, fmt.Errorf("channel broadcast: %w", err)
		}
		return 1, nil

	case AudienceGuardians, AudienceModerators, AudienceAdministrators:
		return s.fanOut(ctx, audience, payload)

	default:
		return 0, fmt.Errorf("unknown audience %q", audience)
	}
}

func (s *AdminService) fanOut(ctx context.Context, audience BroadcastAudience, payload chat.Payload) (int, error) {
	var tiers []models.Tier
	switch audience {
	case AudienceGuardians:
		tiers = []models.Tier{models.TierGuardian, models.TierModerator, models.TierAdministrator}
	case AudienceModerators:
		tiers = []models.Tier{models.TierModerator, models.TierAdministrator}
	case AudienceAdministrators:
		tiers = []models.Tier{models.TierAdministrator}
	}

	recipients, err := s.store.Reviewers.ListByTiers(ctx, tiers)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}

	var delivered int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)

	results := make(chan struct{}, len(recipients))
	for _, recipient := range recipients {
		id := recipient.ID
		g.Go(func() error {
			if err := s.sendOne(gctx, id, payload); err != nil {
				s.logger.Warn("broadcast DM failed", zap.Int64("reviewer_id", id), zap.Error(err))
				return nil
			}
			results <- struct{}{}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(delivered), err
	}
	close(results)
	for range results {
		delivered++
	}

	s.logger.Infof("broadcast delivered to %d of %d recipients", delivered, len(recipients))
	return int(delivered), nil
}

func (s *AdminService) sendOne(ctx context.Context, userID int64, payload chat.Payload) error {
	callCtx, cancel := context.WithTimeout(ctx, s.chatCfg.CallTimeout)
	defer cancel()
	_, err := s.adapter.SendDM(callCtx, userID, payload)
	return err
}
