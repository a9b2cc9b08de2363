package job

import (
	"context"
	"time"

	"github.com/robfig/cron"

	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/service"
)

const DraftSweepSchedule = "@every 00h10m00s"

type DraftSweepJob struct {
	s       service.SessionService
	maxIdle time.Duration
	metrics metrics.Recorder
}

func NewDraftSweepJob(s service.SessionService, maxIdle time.Duration, m metrics.Recorder) *DraftSweepJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &DraftSweepJob{
		s:       s,
		maxIdle: maxIdle,
		metrics: m,
	}
}

// SweepDrafts discards drafts idle for longer than maxIdle.
func (j *DraftSweepJob) SweepDrafts() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if n := j.s.SweepIdleDrafts(ctx, j.maxIdle); n > 0 {
		j.metrics.RecordDraftsSwept(n)
	}
}

// Schedule registers the sweep on c.
func (j *DraftSweepJob) Schedule(c *cron.Cron) error {
	return c.AddFunc(DraftSweepSchedule, j.SweepDrafts)
}
