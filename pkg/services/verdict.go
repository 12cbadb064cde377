package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/events"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/metrics"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// XP credited per vote choice on finalization.
var voteXP = map[models.VoteChoice]int{
	models.VoteOK:          10,
	models.VoteIntimidated: 15,
	models.VoteSerious:     20,
}

// punishRetryBackoff is the retry schedule against a not-ready or transient
// adapter before a punishment is given up on.
var punishRetryBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 5 * time.Second}

// VerdictEngine tallies weighted votes, decides by the fixed rule table and
// applies the outcome.
type VerdictEngine struct {
	store   *repository.Store
	adapter chat.Adapter
	bus     *events.Bus
	cfg     config.EngineConfig
	chatCfg config.ChatConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewVerdictEngine creates a new verdict engine
func NewVerdictEngine(store *repository.Store, adapter chat.Adapter, bus *events.Bus, cfg config.EngineConfig, chatCfg config.ChatConfig, logger *logging.Logger, m *metrics.Metrics) *VerdictEngine {
	return &VerdictEngine{
		store:   store,
		adapter: adapter,
		bus:     bus,
		cfg:     cfg,
		chatCfg: chatCfg,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CastVote records one reviewer's judgement and finalizes the report once
// the weighted total crosses the threshold.
func (v *VerdictEngine) CastVote(ctx context.Context, reportID, reviewerID int64, choice models.VoteChoice) error {
	if !choice.Valid() {
		return fmt.Errorf("unknown vote choice %q", choice)
	}

	report, err := v.store.Reports.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}
	if !report.Open() {
		return models.ErrReportClosed
	}

	reviewer, err := v.store.Reviewers.Get(ctx, reviewerID)
	if err != nil {
		return err
	}

	// Voting requires a committed (Accepted) assignment.
	assignment, err := v.store.Assignments.GetActive(ctx, reportID, reviewerID)
	if err != nil {
		return err
	}
	if assignment.State != models.AssignmentAccepted {
		return fmt.Errorf("%w: accept the report before voting", models.ErrNoSlotAvailable)
	}

	vote := &models.Vote{
		ReportID:   reportID,
		ReviewerID: reviewerID,
		Choice:     choice,
		Weight:     reviewer.VoteWeight(),
		CastAt:     v.now(),
	}
	if err := v.store.Votes.Insert(ctx, vote); err != nil {
		return err
	}

	if _, err := v.store.Assignments.UpdateStateCAS(ctx, assignment.ID, models.AssignmentAccepted, models.AssignmentVoted); err != nil {
		v.logger.Error("vote transition failed", zap.Int64("assignment_id", assignment.ID), zap.Error(err))
	}

	v.metrics.VotesCast.Inc()
	v.logger.Info("vote cast",
		zap.String("hash", report.Hash),
		zap.Int64("reviewer_id", reviewerID),
		zap.String("choice", string(choice)),
		zap.Int("weight", vote.Weight),
	)

	v.bus.Publish(events.Event{
		Type:       events.EventVoteCast,
		ReportID:   reportID,
		ReviewerID: reviewerID,
	})

	return v.MaybeFinalize(ctx, reportID)
}

// MaybeFinalize recomputes the tally and finalizes once the threshold is
// reached. Safe to call repeatedly; the status CAS makes duplicates no-ops.
func (v *VerdictEngine) MaybeFinalize(ctx context.Context, reportID int64) error {
	report, err := v.store.Reports.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}
	if !report.Open() {
		return nil
	}

	tally, err := v.store.Votes.Tally(ctx, reportID)
	if err != nil {
		return fmt.Errorf("tally: %w", err)
	}

	// An appeal keeps the first-round votes counted, so the second verdict
	// waits for a full required-weight of fresh votes on top of them.
	required := v.cfg.RequiredWeight
	if report.Status == models.ReportAppealed && report.VerdictAt != nil {
		baseline, err := v.store.Votes.TallyBefore(ctx, reportID, *report.VerdictAt)
		if err != nil {
			return fmt.Errorf("baseline tally: %w", err)
		}
		required += baseline.Total()
	}
	if tally.Total() < required {
		return nil
	}

	return v.finalize(ctx, report, tally)
}

// Decide evaluates the rule table top to bottom; the first match wins. The
// ordering is load-bearing: overwhelming Grave support is checked before the
// combined and lower branches so a few Intimidated votes cannot mask it.
func Decide(tally models.Tally, cfg *models.GuildConfig) (models.Verdict, time.Duration) {
	switch {
	case tally.OK >= 3:
		return models.VerdictImprocedente, 0
	case tally.Serious >= 4:
		return models.VerdictSerious, time.Duration(cfg.SeriousBanHours) * time.Hour
	case tally.Serious >= 3:
		return models.VerdictSerious, time.Duration(cfg.SeriousHours) * time.Hour
	case tally.Intimidated >= 3 && tally.Serious >= 2:
		return models.VerdictIntimidatedSerious, time.Duration(cfg.IntimidatedSeriousHours) * time.Hour
	case tally.Intimidated >= 3:
		return models.VerdictIntimidated, time.Duration(cfg.IntimidatedHours) * time.Hour
	default:
		return models.VerdictImprocedente, 0
	}
}

// finalize runs the ordered side effects. Each step is best-effort and
// independently logged; only the status CAS decides whether this call owns
// the finalization.
func (v *VerdictEngine) finalize(ctx context.Context, report *models.Report, tally models.Tally) error {
	guildCfg := models.DefaultGuildConfig(report.GuildID)
	if report.IsPremium {
		cfg, err := v.store.Premium.GetConfig(ctx, report.GuildID)
		if err != nil {
			v.logger.Error("guild config load failed", zap.String("hash", report.Hash), zap.Error(err))
		} else {
			guildCfg = cfg
		}
	}

	verdict, duration := Decide(tally, guildCfg)
	now := v.now()

	// Votes cast after the previous verdict belong to the appeal round;
	// only those are paid a second time.
	var paidSince *time.Time
	if report.Status == models.ReportAppealed {
		paidSince = report.VerdictAt
	}

	ok, err := v.store.Reports.UpdateStatusCAS(ctx, report.ID,
		[]models.ReportStatus{models.ReportInAnalysis, models.ReportAppealed},
		models.ReportFinalized, &verdict, &now)
	if err != nil {
		return fmt.Errorf("finalize transition: %w", err)
	}
	if !ok {
		// Another finalization won; nothing left to do.
		return nil
	}

	v.metrics.Verdicts.WithLabelValues(string(verdict)).Inc()
	v.logger.Info("report finalized",
		zap.String("hash", report.Hash),
		zap.String("verdict", string(verdict)),
		zap.Duration("punishment", duration),
	)

	if duration > 0 {
		v.applyPunishment(ctx, report, verdict, duration, guildCfg)
	}

	v.payExperience(ctx, report, paidSince)

	if verdict != models.VerdictImprocedente {
		v.notifyAccused(ctx, report, verdict, duration)
	}

	v.bus.Publish(events.Event{Type: events.EventReportFinalized, ReportID: report.ID})
	return nil
}

// applyPunishment resolves the guild and member, applies the timeout with
// bounded retries, and writes the audit trail.
func (v *VerdictEngine) applyPunishment(ctx context.Context, report *models.Report, verdict models.Verdict, duration time.Duration, guildCfg *models.GuildConfig) {
	log := &models.PunishmentLog{
		ReportID:      report.ID,
		GuildID:       report.GuildID,
		AccusedID:     report.AccusedID,
		Verdict:       verdict,
		DurationHours: int(duration / time.Hour),
	}

	err := v.withRetries(ctx, func(callCtx context.Context) error {
		if err := v.adapter.WaitReady(callCtx, v.chatCfg.ReadyTimeout); err != nil {
			return fmt.Errorf("%w: %v", chat.ErrTransient, err)
		}
		if _, err := v.adapter.ResolveGuild(callCtx, report.GuildID); err != nil {
			return err
		}
		if _, err := v.adapter.ResolveMember(callCtx, report.GuildID, report.AccusedID); err != nil {
			return err
		}
		return v.adapter.ApplyTimeout(callCtx, report.GuildID, report.AccusedID, duration,
			fmt.Sprintf("auto - %s", verdict))
	})
	if err != nil {
		log.Err = err.Error()
		v.logger.Error("punishment failed",
			zap.String("hash", report.Hash),
			zap.Int64("accused_id", report.AccusedID),
			zap.Error(err),
		)
	}

	if err := v.store.Punishments.Insert(ctx, log); err != nil {
		v.logger.Error("punishment log failed", zap.String("hash", report.Hash), zap.Error(err))
	}

	if log.Err == "" && guildCfg.LogChannelID != nil {
		payload := chat.Payload{
			Title: "Moderation action",
			Body:  fmt.Sprintf("Report `%s` resolved: **%s**", report.Hash, verdict),
			Fields: []chat.Field{
				{Name: "Duration", Value: duration.String()},
			},
		}
		callCtx, cancel := context.WithTimeout(ctx, v.chatCfg.CallTimeout)
		defer cancel()
		if _, err := v.adapter.SendChannelMessage(callCtx, *guildCfg.LogChannelID, payload); err != nil {
			v.logger.Warn("audit log message failed", zap.String("hash", report.Hash), zap.Error(err))
		}
	}
}

// withRetries runs the call, retrying on transient or rate-limited failures
// per the fixed backoff schedule.
func (v *VerdictEngine) withRetries(ctx context.Context, call func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, v.chatCfg.CallTimeout)
		err = call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !errors.Is(err, chat.ErrTransient) && !errors.Is(err, chat.ErrRateLimited) {
			return err
		}
		if attempt >= len(punishRetryBackoff) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(punishRetryBackoff[attempt]):
		}
	}
}

// payExperience credits each voter once. On an appeal round only the votes
// cast after the first verdict are paid.
func (v *VerdictEngine) payExperience(ctx context.Context, report *models.Report, since *time.Time) {
	votes, err := v.store.Votes.ListByReport(ctx, report.ID)
	if err != nil {
		v.logger.Error("vote list for payout failed", zap.String("hash", report.Hash), zap.Error(err))
		return
	}

	for _, vote := range votes {
		if since != nil && !vote.CastAt.After(*since) {
			continue
		}
		xp := voteXP[vote.Choice]
		if xp == 0 {
			continue
		}
		if err := v.store.Reviewers.AdjustPointsXP(ctx, vote.ReviewerID, 0, xp); err != nil {
			v.logger.Error("XP payout failed",
				zap.String("hash", report.Hash),
				zap.Int64("reviewer_id", vote.ReviewerID),
				zap.Error(err),
			)
		}
	}
}

// notifyAccused DMs the verdict with an appeal button valid for 24 hours.
func (v *VerdictEngine) notifyAccused(ctx context.Context, report *models.Report, verdict models.Verdict, duration time.Duration) {
	payload := chat.Payload{
		Title: "A report against you was resolved",
		Body: fmt.Sprintf("Report `%s` concluded with verdict **%s** (%s). You may appeal within 24 hours.",
			report.Hash, verdict, duration),
		Buttons: []chat.Button{
			{ID: fmt.Sprintf("appeal:%s", report.Hash), Label: "Appeal", Style: "danger"},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, v.chatCfg.CallTimeout)
	defer cancel()
	msgID, err := v.adapter.SendDM(callCtx, report.AccusedID, payload)
	if err != nil {
		v.logger.Warn("verdict DM failed",
			zap.String("hash", report.Hash),
			zap.Int64("accused_id", report.AccusedID),
			zap.Error(err),
		)
		return
	}

	if err := v.store.Reports.SetAppealMessage(ctx, report.ID, msgID); err != nil {
		v.logger.Warn("appeal message persist failed", zap.String("hash", report.Hash), zap.Error(err))
	}
}
