package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Maintenance is the periodic work the scheduler drives.
type Maintenance interface {
	PurgeExpiredStates(ctx context.Context) (int64, error)
	RefreshConnectedGauge(ctx context.Context) error
	MigrateLegacyTokens(ctx context.Context) (int, error)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	dbType string
	tasks  Maintenance
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new job scheduler
func NewScheduler(db *gorm.DB, dbType string, tasks Maintenance) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		db:     db,
		dbType: dbType,
		tasks:  tasks,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the jobs, runs the startup pass in the background and
// starts the scheduler.
func (s *Scheduler) Start() error {
	// Expired connect nonces every 10 minutes
	if _, err := s.cron.AddFunc("*/10 * * * *", s.purgeStates); err != nil {
		return err
	}

	// Connected integrations gauge every 5 minutes
	if _, err := s.cron.AddFunc("*/5 * * * *", s.refreshGauge); err != nil {
		return err
	}

	// Vacuum SQLite weekly at 2:30 AM on Sunday
	if s.dbType == "sqlite" {
		if _, err := s.cron.AddFunc("30 2 * * 0", s.vacuumDatabase); err != nil {
			return err
		}
	}

	go s.startup()

	s.cron.Start()
	log.Info("Job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Info("Job scheduler stopped")
}

func (s *Scheduler) startup() {
	if _, err := s.tasks.MigrateLegacyTokens(s.ctx); err != nil {
		log.WithError(err).Error("Failed to migrate legacy credential records")
	}
	s.purgeStates()
	s.refreshGauge()
}

func (s *Scheduler) purgeStates() {
	// Errors are logged by the task.
	s.tasks.PurgeExpiredStates(s.ctx)
}

func (s *Scheduler) refreshGauge() {
	if err := s.tasks.RefreshConnectedGauge(s.ctx); err != nil {
		log.WithError(err).Warn("Failed to refresh integrations gauge")
	}
}

// vacuumDatabase runs VACUUM on SQLite database
func (s *Scheduler) vacuumDatabase() {
	result := s.db.WithContext(s.ctx).Exec("VACUUM")
	if result.Error != nil {
		log.WithError(result.Error).Error("Failed to vacuum database")
		return
	}

	log.Info("Database vacuum completed")
}
