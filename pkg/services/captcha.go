package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
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

const (
	captchaCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	captchaCodeLength = 6

	// A fresh challenge is withheld while one was sent within the last hour
	// or answered within the last three.
	captchaRecentPending = time.Hour
	captchaRecentPass    = 3 * time.Hour
)

// trivia is the fixed question pool for the trivia challenge kind.
var trivia = []struct {
	question string
	answer   string
}{
	{"How many minutes does a reviewer have to vote after accepting a report?", "5"},
	{"How many points does one hour on duty earn?", "1"},
	{"What color marks the accused in the evidence view? (one word)", "red"},
	{"How many hours does an appeal window stay open?", "24"},
	{"What is the minimum weighted vote total for a verdict?", "5"},
}

// CaptchaService issues, scores and expires liveness challenges for
// long-shift reviewers.
type CaptchaService struct {
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
}

// NewCaptchaService creates a new captcha service
func NewCaptchaService(store *repository.Store, adapter chat.Adapter, bus *events.Bus, cfg config.EngineConfig, chatCfg config.ChatConfig, logger *logging.Logger, m *metrics.Metrics) *CaptchaService {
	return &CaptchaService{
		store:   store,
		adapter: adapter,
		bus:     bus,
		cfg:     cfg,
		chatCfg: chatCfg,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IssueTick sends a challenge to every reviewer on a long shift that has
// neither a recent pending challenge nor a recent pass.
func (s *CaptchaService) IssueTick(ctx context.Context) error {
	reviewers, err := s.store.Reviewers.ListOnDuty(ctx, models.ReviewerTiers)
	if err != nil {
		return fmt.Errorf("list on duty: %w", err)
	}

	now := s.now()
	for i := range reviewers {
		reviewer := &reviewers[i]
		if reviewer.ShiftStart == nil || now.Sub(*reviewer.ShiftStart) < s.cfg.CaptchaShiftAge {
			continue
		}

		pending, err := s.store.Captchas.HasPendingSince(ctx, reviewer.ID, now.Add(-captchaRecentPending))
		if err != nil {
			return fmt.Errorf("pending lookup: %w", err)
		}
		if pending {
			continue
		}

		passed, err := s.store.Captchas.HasPassSince(ctx, reviewer.ID, now.Add(-captchaRecentPass))
		if err != nil {
			return fmt.Errorf("pass lookup: %w", err)
		}
		if passed {
			continue
		}

		if err := s.issue(ctx, reviewer, now); err != nil {
			s.logger.Error("captcha issue failed", zap.Int64("reviewer_id", reviewer.ID), zap.Error(err))
		}
	}

	return nil
}

func (s *CaptchaService) issue(ctx context.Context, reviewer *models.Reviewer, now time.Time) error {
	kind, question, answer := s.generate()

	captcha := &models.Captcha{
		ReviewerID: reviewer.ID,
		Code:       s.code(),
		Kind:       kind,
		Question:   question,
		Answer:     answer,
		Status:     models.CaptchaPending,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.CaptchaTTL),
	}

	payload := chat.Payload{
		Title: "🔐 Activity check",
		Body: fmt.Sprintf("You have been on duty for a while. Answer within 15 minutes or you will be removed from duty and lose points.\n\n**%s**",
			question),
		Fields: []chat.Field{
			{Name: "Challenge", Value: captcha.Code},
		},
		Buttons: []chat.Button{
			{ID: fmt.Sprintf("captcha:%s", captcha.Code), Label: "Answer", Style: "primary"},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.chatCfg.CallTimeout)
	defer cancel()
	msgID, err := s.adapter.SendDM(callCtx, reviewer.ID, payload)
	if err != nil {
		return fmt.Errorf("captcha DM: %w", err)
	}
	captcha.DMMessageID = msgID

	if err := s.store.Captchas.Insert(ctx, captcha); err != nil {
		return fmt.Errorf("captcha persist: %w", err)
	}

	s.metrics.CaptchasIssued.Inc()
	s.logger.Info("captcha issued",
		zap.Int64("reviewer_id", reviewer.ID),
		zap.String("kind", string(kind)),
	)
	s.bus.Publish(events.Event{Type: events.EventCaptchaIssued, ReviewerID: reviewer.ID})
	return nil
}

// Answer scores the reviewer's reply against their open challenge.
// Comparison is case-insensitive and trimmed.
func (s *CaptchaService) Answer(ctx context.Context, reviewerID int64, answer string) error {
	captcha, err := s.store.Captchas.GetPendingByReviewer(ctx, reviewerID)
	if err != nil {
		return fmt.Errorf("captcha lookup: %w", err)
	}
	if captcha == nil {
		return fmt.Errorf("no pending activity check")
	}

	now := s.now()
	if now.After(captcha.ExpiresAt) {
		return fmt.Errorf("the activity check already expired")
	}

	got := strings.ToLower(strings.TrimSpace(answer))
	want := strings.ToLower(strings.TrimSpace(captcha.Answer))
	if got != want {
		return fmt.Errorf("wrong answer, try again")
	}

	ok, err := s.store.Captchas.MarkAnswered(ctx, captcha.ID, now)
	if err != nil {
		return fmt.Errorf("captcha answer persist: %w", err)
	}
	if !ok {
		return fmt.Errorf("the activity check already expired")
	}

	if captcha.DMMessageID != 0 {
		callCtx, cancel := context.WithTimeout(ctx, s.chatCfg.CallTimeout)
		defer cancel()
		done := chat.Payload{Title: "✅ Activity confirmed", Body: "Thanks, you remain on duty."}
		if err := s.adapter.EditDM(callCtx, reviewerID, captcha.DMMessageID, done); err != nil {
			s.logger.Warn("captcha DM edit failed", zap.Int64("reviewer_id", reviewerID), zap.Error(err))
		}
	}

	s.logger.Info("captcha answered", zap.Int64("reviewer_id", reviewerID))
	return nil
}

// ExpireTick forces unanswered challenges: the reviewer leaves duty and
// loses half the points the 3-hour window would have earned.
func (s *CaptchaService) ExpireTick(ctx context.Context) error {
	expired, err := s.store.Captchas.ListExpiredPending(ctx, s.now())
	if err != nil {
		return fmt.Errorf("list expired captchas: %w", err)
	}

	for i := range expired {
		captcha := &expired[i]
		penalty := s.cfg.PointsPerHour * int(s.cfg.CaptchaShiftAge/time.Hour) / 2

		ok, err := s.store.Captchas.MarkExpired(ctx, captcha.ID, penalty)
		if err != nil {
			s.logger.Error("captcha expiry persist failed", zap.Int64("captcha_id", captcha.ID), zap.Error(err))
			continue
		}
		if !ok {
			// Answered in the meantime.
			continue
		}

		if err := s.store.Reviewers.SetDuty(ctx, captcha.ReviewerID, false, nil); err != nil {
			s.logger.Error("forced off-duty failed", zap.Int64("reviewer_id", captcha.ReviewerID), zap.Error(err))
		}
		if penalty > 0 {
			if err := s.store.Reviewers.AdjustPointsXP(ctx, captcha.ReviewerID, -penalty, -penalty*2); err != nil {
				s.logger.Error("captcha penalty failed", zap.Int64("reviewer_id", captcha.ReviewerID), zap.Error(err))
			}
		}

		s.metrics.CaptchasExpired.Inc()
		s.metrics.ReviewersOnDuty.Dec()

		payload := chat.Payload{
			Title: "⏰ Activity check expired",
			Body:  fmt.Sprintf("You did not answer the activity check. You were removed from duty and lost %d points.", penalty),
		}
		callCtx, cancel := context.WithTimeout(ctx, s.chatCfg.CallTimeout)
		if _, err := s.adapter.SendDM(callCtx, captcha.ReviewerID, payload); err != nil {
			s.logger.Warn("captcha expiry notice failed", zap.Int64("reviewer_id", captcha.ReviewerID), zap.Error(err))
		}
		cancel()

		s.bus.Publish(events.Event{Type: events.EventShiftStopped, ReviewerID: captcha.ReviewerID})
		s.logger.Info("captcha expired",
			zap.Int64("reviewer_id", captcha.ReviewerID),
			zap.Int("points_lost", penalty),
		)
	}

	return nil
}

// generate produces one challenge of a random kind.
func (s *CaptchaService) generate() (models.CaptchaKind, string, string) {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	switch s.rand.Intn(3) {
	case 0:
		a, b := s.rand.Intn(50)+1, s.rand.Intn(50)+1
		if s.rand.Intn(2) == 0 {
			return models.CaptchaArithmetic, fmt.Sprintf("What is %d + %d?", a, b), fmt.Sprintf("%d", a+b)
		}
		if a < b {
			a, b = b, a
		}
		return models.CaptchaArithmetic, fmt.Sprintf("What is %d - %d?", a, b), fmt.Sprintf("%d", a-b)
	case 1:
		q := trivia[s.rand.Intn(len(trivia))]
		return models.CaptchaTrivia, q.question, q.answer
	default:
		start, step := s.rand.Intn(20)+1, s.rand.Intn(9)+2
		seq := []int{start, start + step, start + 2*step, start + 3*step}
		return models.CaptchaSequence,
			fmt.Sprintf("What comes next: %d, %d, %d, %d, ...?", seq[0], seq[1], seq[2], seq[3]),
			fmt.Sprintf("%d", start+4*step)
	}
}

func (s *CaptchaService) code() string {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	b := make([]byte, captchaCodeLength)
	for i := range b {
		b[i] = captchaCodeChars[s.rand.Intn(len(captchaCodeChars))]
	}
	return string(b)
}
