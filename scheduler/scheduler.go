package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"propwise/config"
	"propwise/models"
	"propwise/services"
	"propwise/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

type AlertRunner interface {
	RunOnce(ctx context.Context) (*services.ScanResult, error)
}

// FeaturedRunner is the featured-expiry worker
type FeaturedRunner interface {
	Triggerable
	RunOnce(ctx context.Context, batchSize int) (int64, error)
}

type CommandStore interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
	GetLastRunTime(job string) (time.Time, error)
}

// Locker guards alert passes across processes. Optional.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

const alertLockName = "alert-scan"

type Scheduler struct {
	cfg    config.SchedulerConfig
	alerts AlertRunner
	store  CommandStore
	locker Locker
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	group  singleflight.Group
	paused atomic.Bool

	featuredWorker FeaturedRunner
}

func New(cfg config.SchedulerConfig, alerts AlertRunner, store CommandStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		alerts: alerts,
		store:  store,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetLocker enables the distributed lock around alert passes
func (s *Scheduler) SetLocker(l Locker) {
	s.locker = l
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(featured FeaturedRunner) {
	s.featuredWorker = featured
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.AlertCron != "" {
		log.Info().Str("cron", s.cfg.AlertCron).Msg("starting alert scheduler")
		_, err := s.cron.AddFunc(s.cfg.AlertCron, func() {
			s.scheduledRun(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.AlertInterval > 0 {
		log.Info().Dur("interval", s.cfg.AlertInterval).Msg("starting alert scheduler")
		s.ticker = time.NewTicker(s.cfg.AlertInterval)
		go func() {
			if s.overdue() {
				s.scheduledRun(ctx)
			}
			for {
				select {
				case <-s.ticker.C:
					s.scheduledRun(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Info().Msg("no alert schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// overdue reports whether the last alert pass is older than the interval,
// e.g. after the daemon was down.
func (s *Scheduler) overdue() bool {
	last, err := s.store.GetLastRunTime(models.JobAlerts)
	if err != nil {
		log.Warn().Err(err).Msg("could not read last alert run")
		return false
	}
	return last.IsZero() || time.Since(last) >= s.cfg.AlertInterval
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	if s.paused.Load() {
		log.Debug().Msg("alert scan skipped: paused")
		return
	}
	if _, err := s.TriggerNow(ctx); err != nil {
		log.Error().Err(err).Msg("scheduled alert scan failed")
	}
}

// TriggerNow runs an alert pass unless one is already in flight, in which
// case it waits for and shares that pass's result. A nil result with a nil
// error means another process holds the lock.
func (s *Scheduler) TriggerNow(ctx context.Context) (*services.ScanResult, error) {
	v, err, shared := s.group.Do(alertLockName, func() (interface{}, error) {
		return s.runLocked(ctx)
	})
	if shared {
		log.Debug().Msg("alert scan already running, joined it")
	}
	result, _ := v.(*services.ScanResult)
	return result, err
}

func (s *Scheduler) runLocked(ctx context.Context) (*services.ScanResult, error) {
	if s.locker == nil {
		return s.alerts.RunOnce(ctx)
	}

	ttl := s.cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	release, err := s.locker.AcquireLock(ctx, alertLockName, ttl)
	if errors.Is(err, storage.ErrLockHeld) {
		log.Info().Msg("alert scan skipped: another instance holds the lock")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("could not release alert lock")
		}
	}()

	return s.alerts.RunOnce(ctx)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Error().Err(err).Msg("error getting commands")
				continue
			}

			for _, cmd := range cmds {
				log.Info().Str("command", string(cmd.Command)).Msg("processing command")
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Error().Err(err).Str("command", string(cmd.Command)).Msg("command error")
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Error().Err(err).Msg("error marking command processed")
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunAlerts:
		go func() {
			if _, err := s.TriggerNow(ctx); err != nil {
				log.Error().Err(err).Msg("alert scan via command failed")
			}
		}()
		return nil
	case models.CmdRunFeaturedExpiry:
		if s.featuredWorker == nil {
			return nil
		}
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if params.Limit > 0 {
			go func() {
				if _, err := s.featuredWorker.RunOnce(ctx, params.Limit); err != nil {
					log.Error().Err(err).Msg("featured expiry via command failed")
				}
			}()
			log.Info().Int("batch", params.Limit).Msg("featured expiry started via command")
			return nil
		}
		s.featuredWorker.Trigger()
		log.Info().Msg("featured worker triggered via command")
		return nil
	case models.CmdPauseAlerts:
		s.paused.Store(true)
		log.Info().Msg("scheduled alert scans paused")
		return nil
	case models.CmdResumeAlerts:
		s.paused.Store(false)
		log.Info().Msg("scheduled alert scans resumed")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
