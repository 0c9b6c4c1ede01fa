package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSyncInterval = time.Minute
	maxBackoff          = 30 * time.Minute
	dependentParallel   = 4
)

// SyncStatus is a snapshot of the scheduler's state.
type SyncStatus struct {
	LastRun     time.Time
	LastSuccess time.Time
	LastErr     error
	Failures    int
	Running     bool
	Reports     []*SyncReport
}

// Scheduler runs full sync passes periodically and on demand.
// Concurrent SyncNow calls share one pass.
type Scheduler struct {
	syncer   *Syncer
	guard    *HomeGuard
	log      logging.Logger
	interval time.Duration
	now      func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	online func() bool
	status SyncStatus
}

func NewScheduler(syncer *Syncer, guard *HomeGuard, interval time.Duration, log logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Scheduler{
		syncer:   syncer,
		guard:    guard,
		log:      log,
		interval: interval,
		online:   func() bool { return true },
		now:      time.Now,
	}
}

// SetOnlineCheck makes periodic passes wait until fn reports true. It may be
// called while Run is active.
func (s *Scheduler) SetOnlineCheck(fn func() bool) {
	s.mu.Lock()
	s.online = fn
	s.mu.Unlock()
}

func (s *Scheduler) isOnline() bool {
	s.mu.Lock()
	fn := s.online
	s.mu.Unlock()
	return fn()
}

func (s *Scheduler) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Reports = append([]*SyncReport(nil), s.status.Reports...)
	return st
}

// SyncNow runs a full pass, or waits for the one already running.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	_, err, _ := s.group.Do("all", func() (any, error) {
		return nil, s.SyncAll(ctx)
	})
	return err
}

// SyncAll syncs the home list first, then every dependent kind of every
// usable home. Dependent kinds are independent and run concurrently.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	s.begin()

	var reports []*SyncReport
	var rmu sync.Mutex
	collect := func(r *SyncReport) {
		if r == nil {
			return
		}
		rmu.Lock()
		reports = append(reports, r)
		rmu.Unlock()
	}

	r, homeErr := s.syncer.Sync(ctx, models.KindHome, models.AccountScope)
	collect(r)

	homes, err := s.guard.usableHomes(ctx)
	if err != nil {
		s.finish(reports, errors.Join(homeErr, err))
		return errors.Join(homeErr, err)
	}

	var g errgroup.Group
	g.SetLimit(dependentParallel)
	var emu sync.Mutex
	var errs []error
	for _, home := range homes {
		for _, desc := range models.DependentKinds() {
			homeID, kind := home.ID, desc.Kind
			g.Go(func() error {
				r, err := s.syncer.Sync(ctx, kind, homeID)
				collect(r)
				if err != nil {
					emu.Lock()
					errs = append(errs, err)
					emu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	err = errors.Join(append([]error{homeErr}, errs...)...)
	s.finish(reports, err)
	return err
}

func (s *Scheduler) begin() {
	s.mu.Lock()
	s.status.Running = true
	s.status.LastRun = s.now()
	s.mu.Unlock()
}

func (s *Scheduler) finish(reports []*SyncReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.Reports = reports
	s.status.LastErr = err
	if err != nil {
		s.status.Failures++
		return
	}
	s.status.Failures = 0
	s.status.LastSuccess = s.now()
}

// nextDelay doubles the interval for every consecutive failed pass.
func (s *Scheduler) nextDelay() time.Duration {
	s.mu.Lock()
	failures := s.status.Failures
	s.mu.Unlock()

	d := s.interval
	for i := 0; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	return max(min(d, maxBackoff), s.interval)
}

// Run syncs every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.isOnline() {
				if err := s.SyncNow(ctx); err != nil && ctx.Err() == nil {
					s.log.Warn(ctx, "background sync failed", "error", err)
				}
			}
			timer.Reset(s.nextDelay())
		}
	}
}
