package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
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

// tierFallbackAge is how long a report may sit before moderators join the
// candidate pool.
const tierFallbackAge = 15 * time.Minute

// Distributor keeps every open report under review by enough reviewers,
// with fairness and anti-spam controls.
type Distributor struct {
	store   *repository.Store
	adapter chat.Adapter
	bus     *events.Bus
	cfg     config.EngineConfig
	chatCfg config.ChatConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	rand    *rand.Rand
	randMu  sync.Mutex

	// dmLocks serializes DM sends per recipient; fan-out across recipients
	// stays concurrent.
	dmLocks   map[int64]*sync.Mutex
	dmLocksMu sync.Mutex

	displayZone *time.Location
}

// NewDistributor creates a new distributor
func NewDistributor(store *repository.Store, adapter chat.Adapter, bus *events.Bus, cfg config.EngineConfig, chatCfg config.ChatConfig, logger *logging.Logger, m *metrics.Metrics) *Distributor {
	return &Distributor{
		store:       store,
		adapter:     adapter,
		bus:         bus,
		cfg:         cfg,
		chatCfg:     chatCfg,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		dmLocks:     make(map[int64]*sync.Mutex),
		displayZone: time.FixedZone("display", chatCfg.DisplayZoneOff*3600),
	}
}

// Tick processes one highest-priority report. Remaining reports wait for the
// next pass, bounding the work done per tick.
func (d *Distributor) Tick(ctx context.Context) error {
	reports, err := d.store.Reports.ListActionable(ctx)
	if err != nil {
		return fmt.Errorf("list actionable: %w", err)
	}

	now := d.now()
	for i := range reports {
		report := &reports[i]

		needed, err := d.neededDeliveries(ctx, report, now)
		if err != nil {
			d.logger.Error("delivery math failed", zap.String("hash", report.Hash), zap.Error(err))
			continue
		}
		if needed == 0 {
			continue
		}

		// Evidence still being captured: hold the report back briefly so
		// reviewers never open an empty view by accident. After the grace
		// period it goes out regardless.
		if now.Sub(report.CreatedAt) < d.cfg.CaptureGrace {
			count, err := d.store.Messages.CountByReport(ctx, report.ID)
			if err != nil {
				return fmt.Errorf("evidence count: %w", err)
			}
			if count == 0 {
				continue
			}
		}

		return d.distribute(ctx, report, needed, now)
	}

	return nil
}

// neededDeliveries computes how many new assignments the report wants. Each
// outstanding delivery counts as weight 1 — conservative: the engine may
// over-deliver but never under-decides. An appealed report keeps its
// first-round votes, so its threshold sits a full required-weight above the
// weight already present when the verdict fell.
func (d *Distributor) neededDeliveries(ctx context.Context, report *models.Report, now time.Time) (int, error) {
	tally, err := d.store.Votes.Tally(ctx, report.ID)
	if err != nil {
		return 0, err
	}

	outstanding, err := d.store.Assignments.CountOutstanding(ctx, report.ID, now)
	if err != nil {
		return 0, err
	}

	required := d.cfg.RequiredWeight
	if report.Status == models.ReportAppealed && report.VerdictAt != nil {
		baseline, err := d.store.Votes.TallyBefore(ctx, report.ID, *report.VerdictAt)
		if err != nil {
			return 0, err
		}
		required += baseline.Total()
	}

	missing := required - tally.Total() - int(outstanding)
	if missing <= 0 {
		return 0, nil
	}

	room := d.cfg.MaxOutstanding - int(outstanding)
	if room <= 0 {
		return 0, nil
	}
	if missing > room {
		missing = room
	}
	return missing, nil
}

// candidateTiers resolves the tier pool per the fallback ladder.
func (d *Distributor) candidateTiers(ctx context.Context, report *models.Report, now time.Time) ([]models.Tier, error) {
	guardians, err := d.store.Reviewers.CountOnDutyByTier(ctx, models.TierGuardian)
	if err != nil {
		return nil, err
	}

	if guardians == 0 {
		// Nobody of the base tier is around; staff handles the queue alone.
		return []models.Tier{models.TierModerator, models.TierAdministrator}, nil
	}

	aged := now.Sub(report.CreatedAt) > tierFallbackAge &&
		(report.Status == models.ReportPending || report.Status == models.ReportInAnalysis)
	starvedPremium := report.IsPremium && guardians < 2

	if aged || starvedPremium {
		return []models.Tier{models.TierGuardian, models.TierModerator, models.TierAdministrator}, nil
	}

	return []models.Tier{models.TierGuardian}, nil
}

// selectAssignees picks up to k eligible reviewers uniformly at random.
func (d *Distributor) selectAssignees(ctx context.Context, report *models.Report, k int, now time.Time) ([]models.Reviewer, error) {
	tiers, err := d.candidateTiers(ctx, report, now)
	if err != nil {
		return nil, err
	}

	onDuty, err := d.store.Reviewers.ListOnDuty(ctx, tiers)
	if err != nil {
		return nil, err
	}

	engaged, err := d.store.Assignments.ListEngagedReviewerIDs(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	engagedSet := make(map[int64]bool, len(engaged))
	for _, id := range engaged {
		engagedSet[id] = true
	}

	var eligible []models.Reviewer
	for _, reviewer := range onDuty {
		if reviewer.ID == report.ReporterID || reviewer.ID == report.AccusedID {
			continue
		}
		if reviewer.OnDispenseCooldown(now) || reviewer.OnInactivityCooldown(now) {
			continue
		}
		if engagedSet[reviewer.ID] {
			continue
		}
		voted, err := d.store.Votes.Exists(ctx, report.ID, reviewer.ID)
		if err != nil {
			return nil, err
		}
		if voted {
			continue
		}
		eligible = append(eligible, reviewer)
	}

	d.randMu.Lock()
	d.rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	d.randMu.Unlock()

	if len(eligible) > k {
		eligible = eligible[:k]
	}
	return eligible, nil
}

// distribute fans out up to needed deliveries for one report.
func (d *Distributor) distribute(ctx context.Context, report *models.Report, needed int, now time.Time) error {
	assignees, err := d.selectAssignees(ctx, report, needed, now)
	if err != nil {
		return fmt.Errorf("select assignees: %w", err)
	}
	if len(assignees) == 0 {
		return nil
	}

	delivered := 0
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range assignees {
		reviewer := assignees[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.deliver(ctx, report, &reviewer, now); err != nil {
				if !errors.Is(err, models.ErrNoSlotAvailable) {
					d.logger.Error("delivery failed",
						zap.String("hash", report.Hash),
						zap.Int64("reviewer_id", reviewer.ID),
						zap.Error(err),
					)
				}
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if delivered > 0 && report.Status == models.ReportPending {
		ok, err := d.store.Reports.UpdateStatusCAS(ctx, report.ID,
			[]models.ReportStatus{models.ReportPending}, models.ReportInAnalysis, nil, nil)
		if err != nil {
			return fmt.Errorf("pending transition: %w", err)
		}
		if ok {
			d.logger.Info("report entered analysis", zap.String("hash", report.Hash))
		}
	}

	return nil
}

// deliver persists one assignment and sends the review request DM. The
// assignment is persisted before the send: an adapter timeout leaves a row
// with no DM message id, which the TTL sweeper reconciles.
func (d *Distributor) deliver(ctx context.Context, report *models.Report, reviewer *models.Reviewer, now time.Time) error {
	assignment := &models.Assignment{
		ReportID:    report.ID,
		ReviewerID:  reviewer.ID,
		State:       models.AssignmentDelivered,
		DeliveredAt: now,
		ExpiresAt:   now.Add(d.cfg.DeliveryTTL),
	}

	if err := d.store.Assignments.Insert(ctx, assignment, d.cfg.MaxOutstanding); err != nil {
		return err
	}

	payload := d.requestPayload(report)

	msgID, err := d.sendDM(ctx, reviewer.ID, payload)
	if err != nil {
		d.logger.Warn("review request DM failed",
			zap.String("hash", report.Hash),
			zap.Int64("reviewer_id", reviewer.ID),
			zap.Error(err),
		)
	} else {
		assignment.DMMessageID = msgID
		if err := d.store.Assignments.SetDMMessageID(ctx, assignment.ID, msgID); err != nil {
			d.logger.Warn("DM message id persist failed",
				zap.Int64("assignment_id", assignment.ID),
				zap.Error(err),
			)
		}
	}

	d.metrics.AssignmentsDelivered.Inc()
	d.bus.Publish(events.Event{
		Type:       events.EventAssignmentDelivered,
		ReportID:   report.ID,
		ReviewerID: reviewer.ID,
	})

	return nil
}

func (d *Distributor) requestPayload(report *models.Report) chat.Payload {
	badge := "Standard"
	if report.IsPremium {
		badge = "⭐ Priority"
	}
	return chat.Payload{
		Title: "New report to review",
		Body:  fmt.Sprintf("Report `%s` is waiting for your review.", report.Hash),
		Fields: []chat.Field{
			{Name: "Reason", Value: report.Reason},
			{Name: "Priority", Value: badge},
		},
		Buttons: []chat.Button{
			{ID: fmt.Sprintf("accept:%d", report.ID), Label: "Accept", Style: "primary"},
			{ID: fmt.Sprintf("dispense:%d", report.ID), Label: "Dispense", Style: "secondary"},
		},
	}
}

// sendDM sends with the per-recipient lock held and the adapter deadline.
func (d *Distributor) sendDM(ctx context.Context, userID int64, payload chat.Payload) (int64, error) {
	d.dmLocksMu.Lock()
	lock, ok := d.dmLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		d.dmLocks[userID] = lock
	}
	d.dmLocksMu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, d.chatCfg.CallTimeout)
	defer cancel()
	return d.adapter.SendDM(callCtx, userID, payload)
}

// Accept commits the reviewer to voting: the delivery TTL stops and the vote
// deadline starts. The DM shifts to the anonymized evidence view.
func (d *Distributor) Accept(ctx context.Context, reportID, reviewerID int64) error {
	report, err := d.store.Reports.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}
	if !report.Open() {
		return models.ErrReportClosed
	}

	assignment, err := d.store.Assignments.GetActive(ctx, reportID, reviewerID)
	if err != nil {
		return err
	}

	now := d.now()
	ok, err := d.store.Assignments.MarkAccepted(ctx, assignment.ID, now, now.Add(d.cfg.VoteDeadline))
	if err != nil {
		return fmt.Errorf("accept transition: %w", err)
	}
	if !ok {
		return models.ErrNoSlotAvailable
	}

	messages, err := d.store.Messages.ListByReport(ctx, report.ID)
	if err != nil {
		d.logger.Error("evidence load failed", zap.String("hash", report.Hash), zap.Error(err))
		messages = nil
	}

	view := RenderEvidence(report, messages, d.displayZone)
	if assignment.DMMessageID != 0 {
		callCtx, cancel := context.WithTimeout(ctx, d.chatCfg.CallTimeout)
		defer cancel()
		if err := d.adapter.EditDM(callCtx, reviewerID, assignment.DMMessageID, view); err != nil {
			d.logger.Warn("evidence view edit failed",
				zap.String("hash", report.Hash),
				zap.Int64("reviewer_id", reviewerID),
				zap.Error(err),
			)
		}
	}

	d.bus.Publish(events.Event{
		Type:       events.EventAssignmentAccepted,
		ReportID:   reportID,
		ReviewerID: reviewerID,
	})
	return nil
}

// Dispense lets the reviewer pass on the report, at the cost of a cooldown
// that discourages cherry-picking.
func (d *Distributor) Dispense(ctx context.Context, reportID, reviewerID int64) error {
	assignment, err := d.store.Assignments.GetActive(ctx, reportID, reviewerID)
	if err != nil {
		return err
	}

	ok, err := d.store.Assignments.UpdateStateCAS(ctx, assignment.ID, models.AssignmentDelivered, models.AssignmentDispensed)
	if err != nil {
		return fmt.Errorf("dispense transition: %w", err)
	}
	if !ok {
		return models.ErrNoSlotAvailable
	}

	now := d.now()
	if err := d.store.Reviewers.SetDispenseCooldown(ctx, reviewerID, now.Add(d.cfg.DispenseCooldown)); err != nil {
		return fmt.Errorf("dispense cooldown: %w", err)
	}

	if assignment.DMMessageID != 0 {
		callCtx, cancel := context.WithTimeout(ctx, d.chatCfg.CallTimeout)
		defer cancel()
		if err := d.adapter.DeleteDM(callCtx, reviewerID, assignment.DMMessageID); err != nil && !errors.Is(err, chat.ErrNotFound) {
			d.logger.Warn("dispense DM delete failed", zap.Int64("reviewer_id", reviewerID), zap.Error(err))
		}
	}

	d.bus.Publish(events.Event{
		Type:       events.EventAssignmentDispensed,
		ReportID:   reportID,
		ReviewerID: reviewerID,
	})
	return nil
}

// SweepExpired marks Delivered assignments past their TTL as Expired and
// deletes the stale DMs, freeing reviewers for other reports.
func (d *Distributor) SweepExpired(ctx context.Context) error {
	expired, err := d.store.Assignments.ListExpiredDelivered(ctx, d.now())
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}

	for i := range expired {
		assignment := &expired[i]
		ok, err := d.store.Assignments.UpdateStateCAS(ctx, assignment.ID, models.AssignmentDelivered, models.AssignmentExpired)
		if err != nil {
			d.logger.Error("expiry transition failed", zap.Int64("assignment_id", assignment.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if assignment.DMMessageID != 0 {
			callCtx, cancel := context.WithTimeout(ctx, d.chatCfg.CallTimeout)
			err := d.adapter.DeleteDM(callCtx, assignment.ReviewerID, assignment.DMMessageID)
			cancel()
			if err != nil && !errors.Is(err, chat.ErrNotFound) {
				d.logger.Warn("expired DM delete failed",
					zap.Int64("reviewer_id", assignment.ReviewerID),
					zap.Error(err),
				)
			}
		}

		d.metrics.AssignmentsExpired.Inc()
		d.bus.Publish(events.Event{
			Type:       events.EventAssignmentExpired,
			ReportID:   assignment.ReportID,
			ReviewerID: assignment.ReviewerID,
		})
	}

	return nil
}

// SweepOverdueVotes penalises reviewers who accepted but never voted: the
// assignment goes Inactive, points and XP drop, and an hour-long cooldown
// keeps them out of the pool.
func (d *Distributor) SweepOverdueVotes(ctx context.Context) error {
	overdue, err := d.store.Assignments.ListOverdueAccepted(ctx, d.now())
	if err != nil {
		return fmt.Errorf("list overdue: %w", err)
	}

	for i := range overdue {
		assignment := &overdue[i]
		ok, err := d.store.Assignments.UpdateStateCAS(ctx, assignment.ID, models.AssignmentAccepted, models.AssignmentInactive)
		if err != nil {
			d.logger.Error("inactivity transition failed", zap.Int64("assignment_id", assignment.ID), zap.Error(err))
			continue
		}
		if !ok {
			// A concurrent vote won the race; no penalty.
			continue
		}

		if err := d.store.Reviewers.AdjustPointsXP(ctx, assignment.ReviewerID, -5, -10); err != nil {
			d.logger.Error("inactivity penalty failed", zap.Int64("reviewer_id", assignment.ReviewerID), zap.Error(err))
		}
		if err := d.store.Reviewers.SetInactivityCooldown(ctx, assignment.ReviewerID, d.now().Add(d.cfg.InactivityCooldown)); err != nil {
			d.logger.Error("inactivity cooldown failed", zap.Int64("reviewer_id", assignment.ReviewerID), zap.Error(err))
		}

		d.metrics.AssignmentsInactive.Inc()

		payload := chat.Payload{
			Title: "Review expired",
			Body:  "You accepted a report but did not vote within 5 minutes. 5 points and 10 XP were deducted and you are on a 1 hour cooldown.",
		}
		if _, err := d.sendDM(ctx, assignment.ReviewerID, payload); err != nil {
			d.logger.Warn("inactivity notice failed", zap.Int64("reviewer_id", assignment.ReviewerID), zap.Error(err))
		}
	}

	return nil
}
