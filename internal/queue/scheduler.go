package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// promoteTimeout bounds one promotion run
const promoteTimeout = 10 * time.Second

// Scheduler periodically moves due retries back to the pending list
type Scheduler struct {
	cron   *cron.Cron
	queue  *Queue
	spec   string
	logger logrus.FieldLogger
}

// NewScheduler runs promotion on the cron spec (e.g. "@every 1s")
func NewScheduler(q *Queue, spec string, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		queue:  q,
		spec:   spec,
		logger: logger.WithField("queue", q.name),
	}
}

// Start registers the promotion job and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.promote); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.spec).Info("Retry scheduler started")
	return nil
}

// Stop stops the runner and waits for a running promotion to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Retry scheduler stopped")
}

func (s *Scheduler) promote() {
	ctx, cancel := context.WithTimeout(context.Background(), promoteTimeout)
	defer cancel()

	n, err := s.queue.PromoteDue(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.logger.Errorf("Retry promotion timed out after %v", promoteTimeout)
		} else {
			s.logger.WithError(err).Error("Failed to promote retries")
		}
		return
	}
	if n > 0 {
		s.logger.WithField("count", n).Debug("Promoted retries")
	}
}
