package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vigild/vigil/pkg/chat/chatmock"
	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/events"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/metrics"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// testEnv bundles the wiring every service test needs.
type testEnv struct {
	store   *repository.Store
	adapter *chatmock.Adapter
	bus     *events.Bus
	cfg     config.EngineConfig
	chatCfg config.ChatConfig
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Reviewer{},
		&models.Report{},
		&models.CapturedMessage{},
		&models.Vote{},
		&models.Assignment{},
		&models.PremiumServer{},
		&models.GuildConfig{},
		&models.Captcha{},
		&models.PunishmentLog{},
	))

	return &testEnv{
		store:   repository.NewStore(db),
		adapter: &chatmock.Adapter{},
		bus:     events.NewBus(logging.NewNop()),
		cfg: config.EngineConfig{
			RequiredWeight:       5,
			MaxOutstanding:       10,
			DeliveryTTL:          5 * time.Minute,
			VoteDeadline:         5 * time.Minute,
			DispenseCooldown:     10 * time.Minute,
			InactivityCooldown:   time.Hour,
			CaptureGrace:         10 * time.Second,
			DistributorInterval:  30 * time.Second,
			SweepInterval:        time.Minute,
			PointsPerHour:        1,
			CaptchaShiftAge:      3 * time.Hour,
			CaptchaTTL:           15 * time.Minute,
			CaptchaIssueInterval: 5 * time.Minute,
			CaptchaSweepInterval: time.Minute,
			AccrualInterval:      time.Hour,
			ShutdownGrace:        30 * time.Second,
		},
		chatCfg: config.ChatConfig{
			CallTimeout:    time.Second,
			ReadyTimeout:   time.Second,
			DisplayZoneOff: -3,
		},
		now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) pipeline(t *testing.T) *PipelineService {
	t.Helper()
	s := NewPipelineService(e.store, e.adapter, e.bus, e.cfg, e.chatCfg, logging.NewNop(), metrics.NewNop())
	s.now = func() time.Time { return e.now }
	return s
}

func (e *testEnv) distributor(t *testing.T) *Distributor {
	t.Helper()
	d := NewDistributor(e.store, e.adapter, e.bus, e.cfg, e.chatCfg, logging.NewNop(), metrics.NewNop())
	d.now = func() time.Time { return e.now }
	return d
}

func (e *testEnv) verdict(t *testing.T) *VerdictEngine {
	t.Helper()
	v := NewVerdictEngine(e.store, e.adapter, e.bus, e.cfg, e.chatCfg, logging.NewNop(), metrics.NewNop())
	v.now = func() time.Time { return e.now }
	return v
}

func (e *testEnv) duty(t *testing.T) *DutyService {
	t.Helper()
	d := NewDutyService(e.store, e.bus, e.cfg, logging.NewNop(), metrics.NewNop())
	d.now = func() time.Time { return e.now }
	return d
}

func (e *testEnv) captchas(t *testing.T) *CaptchaService {
	t.Helper()
	c := NewCaptchaService(e.store, e.adapter, e.bus, e.cfg, e.chatCfg, logging.NewNop(), metrics.NewNop())
	c.now = func() time.Time { return e.now }
	return c
}

func (e *testEnv) seedReviewer(t *testing.T, id int64, tier models.Tier, onDuty bool) *models.Reviewer {
	t.Helper()
	reviewer := &models.Reviewer{
		ID:               id,
		Username:         "reviewer",
		Tier:             tier,
		OnDuty:           onDuty,
		AccountCreatedAt: e.now.Add(-365 * 24 * time.Hour),
	}
	if onDuty {
		start := e.now.Add(-time.Hour)
		reviewer.ShiftStart = &start
	}
	require.NoError(t, e.store.Reviewers.Create(context.Background(), reviewer))
	return reviewer
}

func (e *testEnv) seedReport(t *testing.T, hash string, status models.ReportStatus, premium bool) *models.Report {
	t.Helper()
	report := &models.Report{
		Hash:       hash,
		ReporterID: 1000,
		AccusedID:  2000,
		GuildID:    1,
		ChannelID:  10,
		Reason:     "flood",
		IsPremium:  premium,
		Status:     status,
		CreatedAt:  e.now.Add(-time.Minute),
	}
	require.NoError(t, e.store.Reports.Create(context.Background(), report))
	return report
}

// seedAcceptedAssignment puts the reviewer in the voting position.
func (e *testEnv) seedAcceptedAssignment(t *testing.T, reportID, reviewerID int64) *models.Assignment {
	t.Helper()
	accepted := e.now.Add(-time.Minute)
	deadline := e.now.Add(4 * time.Minute)
	assignment := &models.Assignment{
		ReportID:     reportID,
		ReviewerID:   reviewerID,
		State:        models.AssignmentAccepted,
		DeliveredAt:  e.now.Add(-2 * time.Minute),
		ExpiresAt:    e.now.Add(3 * time.Minute),
		AcceptedAt:   &accepted,
		VoteDeadline: &deadline,
	}
	require.NoError(t, e.store.Assignments.Insert(context.Background(), assignment, e.cfg.MaxOutstanding))
	return assignment
}
