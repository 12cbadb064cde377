package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
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

// Quota limits for open reports per guild.
const (
	pendingQuota           = 5
	pendingQuotaPremium    = 15
	inAnalysisQuota        = 5
	inAnalysisQuotaPremium = 10

	captureWindow = 24 * time.Hour
	captureLimit  = 100
)

// PipelineService accepts new reports, snapshots evidence and handles appeals.
type PipelineService struct {
	store   *repository.Store
	adapter chat.Adapter
	bus     *events.Bus
	cfg     config.EngineConfig
	chatCfg config.ChatConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPipelineService creates a new report pipeline
func NewPipelineService(store *repository.Store, adapter chat.Adapter, bus *events.Bus, cfg config.EngineConfig, chatCfg config.ChatConfig, logger *logging.Logger, m *metrics.Metrics) *PipelineService {
	return &PipelineService{
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

// Submit validates and persists a new report, then captures evidence in the
// background. The caller gets the accepted report immediately; the
// distributor holds back zero-evidence reports for the capture grace period.
func (s *PipelineService) Submit(ctx context.Context, reporterID, accusedID, guildID, channelID int64, reason string) (*models.Report, error) {
	if _, err := s.store.Reviewers.Get(ctx, reporterID); err != nil {
		return nil, err
	}
	if reporterID == accusedID {
		return nil, fmt.Errorf("%w: cannot report yourself", models.ErrNotAuthorized)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", models.ErrNotAuthorized)
	}

	now := s.now()

	premium, err := s.store.Premium.IsActive(ctx, guildID, now)
	if err != nil {
		return nil, fmt.Errorf("premium lookup: %w", err)
	}

	if err := s.checkQuota(ctx, guildID, models.ReportPending, premium, pendingQuota, pendingQuotaPremium); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, guildID, models.ReportInAnalysis, premium, inAnalysisQuota, inAnalysisQuotaPremium); err != nil {
		return nil, err
	}

	report := &models.Report{
		Hash:       reportHash(reporterID, accusedID, guildID, now),
		ReporterID: reporterID,
		AccusedID:  accusedID,
		GuildID:    guildID,
		ChannelID:  channelID,
		Reason:     reason,
		IsPremium:  premium,
		Status:     models.ReportPending,
		CreatedAt:  now,
	}

	if err := s.store.Reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	s.metrics.ReportsSubmitted.Inc()
	s.logger.Info("report submitted",
		zap.String("hash", report.Hash),
		zap.Int64("guild_id", guildID),
		zap.Bool("premium", premium),
	)

	// Evidence capture must not delay the submitter's receipt.
	go s.captureEvidence(report)

	s.bus.Publish(events.Event{Type: events.EventReportSubmitted, ReportID: report.ID})

	return report, nil
}

func (s *PipelineService) checkQuota(ctx context.Context, guildID int64, status models.ReportStatus, premium bool, limit, premiumLimit int) error {
	count, err := s.store.Reports.CountOpenByGuild(ctx, guildID, status)
	if err != nil {
		return fmt.Errorf("quota count: %w", err)
	}

	effective := limit
	if premium {
		effective = premiumLimit
	}
	if int(count) < effective {
		return nil
	}

	return &models.QuotaError{
		GuildID:           guildID,
		Status:            status,
		Count:             int(count),
		Limit:             effective,
		PremiumWouldAllow: !premium && int(count) < premiumLimit,
	}
}

// captureEvidence fetches and freezes the channel history snapshot. Failures
// are logged; the report stands regardless.
func (s *PipelineService) captureEvidence(report *models.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), s.chatCfg.CallTimeout)
	defer cancel()

	since := report.CreatedAt.Add(-captureWindow)
	history, err := s.adapter.FetchChannelHistory(ctx, report.ChannelID, since, captureLimit)
	if err != nil {
		s.logger.Error("evidence capture failed",
			zap.String("hash", report.Hash),
			zap.Error(err),
		)
		return
	}

	captured := make([]models.CapturedMessage, 0, len(history))
	for _, msg := range history {
		captured = append(captured, models.CapturedMessage{
			ReportID:       report.ID,
			AuthorID:       msg.AuthorID,
			Content:        msg.Content,
			AttachmentURLs: strings.Join(msg.AttachmentURLs, ","),
			SentAt:         msg.CreatedAt,
		})
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), s.chatCfg.CallTimeout)
	defer storeCancel()

	if err := s.store.Messages.BulkInsert(storeCtx, captured); err != nil {
		s.logger.Error("evidence persist failed",
			zap.String("hash", report.Hash),
			zap.Error(err),
		)
		return
	}

	s.logger.Debugf("captured %d messages for report %s", len(captured), report.Hash)
}

// Appeal reopens a finalized report at the accused's request, within 24
// hours of the verdict. Prior votes stay counted; the distributor collects
// additional reviewers for the second round.
func (s *PipelineService) Appeal(ctx context.Context, hash string, accusedID int64) (*models.Report, error) {
	report, err := s.store.Reports.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup report: %w", err)
	}
	if report.AccusedID != accusedID {
		return nil, fmt.Errorf("%w: only the accused may appeal", models.ErrNotAuthorized)
	}
	if !report.AppealWindowOpen(s.now()) {
		return nil, fmt.Errorf("%w: appeal window is closed", models.ErrReportClosed)
	}

	ok, err := s.store.Reports.UpdateStatusCAS(ctx, report.ID,
		[]models.ReportStatus{models.ReportFinalized}, models.ReportAppealed, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("appeal transition: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report is no longer appealable", models.ErrReportClosed)
	}

	report.Status = models.ReportAppealed
	s.logger.Info("report appealed", zap.String("hash", report.Hash))
	s.bus.Publish(events.Event{Type: events.EventReportAppealed, ReportID: report.ID})

	return report, nil
}

// reportHash derives the user-facing identifier: the first 16 hex chars of
// SHA-256 over reporter, accused, guild and the creation instant.
func reportHash(reporterID, accusedID, guildID int64, createdAt time.Time) string {
	payload := fmt.Sprintf("%d%d%d%s", reporterID, accusedID, guildID, createdAt.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}
