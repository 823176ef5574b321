package backup

import (
	"context"
	"github.com/roylee0704/gron"
	"sync"
	"threadmark/internal/backup/interfaces"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/structures"
	"threadmark/internal/tracker"
	"time"
)

const limiterCleanupInterval = 5 * time.Minute

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	service     services.ProgressServiceInterface
	registry    tracker.RegistryInterface
	fileManager *FileManager
	limiters    *providers.LimiterPool
	metrics     providers.MetricsProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		err := s.fileManager.SaveToFile(context.Background(), s.config.Persistence.FilePath)
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while writing backup: %s", err)
			return
		}
		s.logger.Infof(providers.TypeApp, "Backup written to %s", s.config.Persistence.FilePath)
	})

	s.cron.AddFunc(gron.Every(s.config.Tracker.SweepInterval), func() {
		s.registry.Sweep(context.Background())
		s.metrics.SetThreads(s.service.Count())
	})

	if s.limiters != nil {
		s.cron.AddFunc(gron.Every(limiterCleanupInterval), func() {
			s.cleanupLimiters()
		})
	}

	s.cron.Start()
}

func (s *Scheduler) cleanupLimiters() int {
	if s.limiters == nil {
		return 0
	}
	removed := s.limiters.Cleanup()
	if removed > 0 {
		s.logger.Debugf(providers.TypeApp, "Dropped %d idle rate limiters", removed)
	}
	return removed
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore loads the backup file, but only into an empty store.
func (s *Scheduler) Restore() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	ctx := context.Background()
	table, err := s.service.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(table) > 0 {
		s.metrics.SetThreads(len(table))
		s.logger.Infof(providers.TypeApp, "Store holds %d threads, backup restore skipped", len(table))
		return nil
	}
	_, err = s.fileManager.LoadFromFile(ctx, s.config.Persistence.FilePath)
	s.metrics.SetThreads(s.service.Count())
	return err
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Writing final backup...")
	err := s.fileManager.SaveToFile(context.Background(), s.config.Persistence.FilePath)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while writing backup: %s", err)
		return err
	}
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.ProgressServiceInterface, registry tracker.RegistryInterface, fileManager *FileManager, limiters *providers.LimiterPool, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		service:     service,
		registry:    registry,
		fileManager: fileManager,
		limiters:    limiters,
		metrics:     metrics,
	}
}
