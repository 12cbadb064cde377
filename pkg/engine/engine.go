package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/events"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/services"
)

// Engine owns the long-lived loops: distribution, sweeps, verdict
// reconciliation, duty accrual and the captcha cycle. Every loop reacts to
// bus events and also wakes on a minimum poll interval as a liveness net.
type Engine struct {
	distributor *services.Distributor
	verdict     *services.VerdictEngine
	duty        *services.DutyService
	captcha     *services.CaptchaService
	bus         *events.Bus
	cfg         config.EngineConfig
	logger      *logging.Logger
}

// New creates a new engine
func New(distributor *services.Distributor, verdict *services.VerdictEngine, duty *services.DutyService, captcha *services.CaptchaService, bus *events.Bus, cfg config.EngineConfig, logger *logging.Logger) *Engine {
	return &Engine{
		distributor: distributor,
		verdict:     verdict,
		duty:        duty,
		captcha:     captcha,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run starts every loop and blocks until ctx is cancelled, then drains them
// in order: distributor first, verdict engine, duty loops, and the bus last.
// Each stage gets a bounded share of the shutdown grace.
func (e *Engine) Run(ctx context.Context) error {
	distCtx, distCancel := context.WithCancel(context.Background())
	verdictCtx, verdictCancel := context.WithCancel(context.Background())
	dutyCtx, dutyCancel := context.WithCancel(context.Background())

	var distGroup, verdictGroup, dutyGroup errgroup.Group

	// Distributor: event-driven tick plus the 30 s poll, and both sweepers.
	distEvents := e.bus.Subscribe(64)
	distGroup.Go(func() error {
		e.loop(distCtx, e.cfg.DistributorInterval, distEvents, distributorWakeups, func(c context.Context) {
			if err := e.distributor.Tick(c); err != nil {
				e.logger.Error("distributor tick failed", zap.Error(err))
			}
		})
		return nil
	})
	distGroup.Go(func() error {
		e.loop(distCtx, e.cfg.SweepInterval, nil, nil, func(c context.Context) {
			if err := e.distributor.SweepExpired(c); err != nil {
				e.logger.Error("TTL sweep failed", zap.Error(err))
			}
		})
		return nil
	})
	distGroup.Go(func() error {
		e.loop(distCtx, e.cfg.SweepInterval, nil, nil, func(c context.Context) {
			if err := e.distributor.SweepOverdueVotes(c); err != nil {
				e.logger.Error("vote deadline sweep failed", zap.Error(err))
			}
		})
		return nil
	})

	// Verdict reconciliation: votes normally finalize inline; the listener
	// catches any report whose inline finalization was interrupted.
	verdictEvents := e.bus.Subscribe(64)
	verdictGroup.Go(func() error {
		for {
			select {
			case <-verdictCtx.Done():
				return nil
			case ev, ok := <-verdictEvents:
				if !ok {
					return nil
				}
				if ev.Type != events.EventVoteCast {
					continue
				}
				if err := e.verdict.MaybeFinalize(verdictCtx, ev.ReportID); err != nil {
					e.logger.Error("verdict reconciliation failed",
						zap.Int64("report_id", ev.ReportID),
						zap.Error(err),
					)
				}
			}
		}
	})

	// Duty economy and captcha cycle.
	dutyGroup.Go(func() error {
		e.loop(dutyCtx, e.cfg.AccrualInterval, nil, nil, func(c context.Context) {
			if err := e.duty.AccrueTick(c); err != nil {
				e.logger.Error("duty accrual failed", zap.Error(err))
			}
		})
		return nil
	})
	dutyGroup.Go(func() error {
		e.loop(dutyCtx, e.cfg.CaptchaIssueInterval, nil, nil, func(c context.Context) {
			if err := e.captcha.IssueTick(c); err != nil {
				e.logger.Error("captcha issue tick failed", zap.Error(err))
			}
		})
		return nil
	})
	dutyGroup.Go(func() error {
		e.loop(dutyCtx, e.cfg.CaptchaSweepInterval, nil, nil, func(c context.Context) {
			if err := e.captcha.ExpireTick(c); err != nil {
				e.logger.Error("captcha expiry tick failed", zap.Error(err))
			}
		})
		return nil
	})

	<-ctx.Done()
	e.logger.Info("engine draining")

	stage := e.cfg.ShutdownGrace / 3

	distCancel()
	waitBounded(&distGroup, stage, e.logger, "distributor")

	verdictCancel()
	waitBounded(&verdictGroup, stage, e.logger, "verdict engine")

	dutyCancel()
	waitBounded(&dutyGroup, stage, e.logger, "duty loops")

	e.bus.Close()
	e.logger.Info("engine stopped")
	return nil
}

// distributorWakeups are the event types that advance distribution work.
var distributorWakeups = map[string]bool{
	events.EventReportSubmitted:     true,
	events.EventReportAppealed:      true,
	events.EventAssignmentExpired:   true,
	events.EventAssignmentDispensed: true,
	events.EventVoteCast:            true,
	events.EventShiftStarted:        true,
	events.EventShiftStopped:        true,
}

// loop runs fn on every interval tick and on every matching event.
func (e *Engine) loop(ctx context.Context, interval time.Duration, wakeups <-chan events.Event, match map[string]bool, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		case ev, ok := <-wakeups:
			if !ok {
				wakeups = nil
				continue
			}
			if match != nil && !match[ev.Type] {
				continue
			}
			fn(ctx)
		}
	}
}

func waitBounded(g *errgroup.Group, timeout time.Duration, logger *logging.Logger, name string) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warnf("%s did not drain within %s, continuing shutdown", name, timeout)
	}
}
