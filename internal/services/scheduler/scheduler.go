// Package scheduler запускает периодические служебные задачи API.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
)

// Job задача, повторяемая с интервалом Interval. Первый запуск сразу после старта.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// SchedulerService выполняет задачи до отмены контекста.
type SchedulerService struct {
	jobs []Job
	log  *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
// Задачи с неположительным интервалом отключены.
func NewSchedulerService(log *slog.Logger, jobs ...Job) *SchedulerService {
	enabled := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			log.Info("scheduled job disabled", slog.String("job", j.Name))
			continue
		}
		enabled = append(enabled, j)
	}
	return &SchedulerService{jobs: enabled, log: log}
}

// Start блокируется, пока не отменён ctx и не завершились все задачи.
func (s *SchedulerService) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *SchedulerService) loop(ctx context.Context, j Job) {
	s.runOnce(ctx, j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *SchedulerService) runOnce(ctx context.Context, j Job) {
	log := s.log.With(slog.String("job", j.Name))
	started := time.Now()
	if err := j.Run(ctx); err != nil {
		log.Error("scheduled job failed", sl.Err(err))
		return
	}
	log.Info("scheduled job finished", slog.Duration("took", time.Since(started)))
}
