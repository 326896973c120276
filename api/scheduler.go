/*
scheduler.go - Background deficit report refresher

PURPOSE:
  Deficit reports are snapshots: they go stale whenever a policy or a
  student's log changes, and nothing auto-invalidates them. This scheduler
  periodically re-runs Refresh for every active school so stored reports
  stay close to live state even when no client triggers a refresh.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Skips inactive schools
  - Each school refreshes independently; one failure does not stop the rest

USAGE:
  scheduler := NewRefreshScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshSchoolReport (manual refresh)
  - uniform/report.go: Reporter.Refresh
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kitroom/uniform-engine/uniform"
)

// RefreshScheduler periodically regenerates deficit report snapshots.
type RefreshScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler with a 1 hour interval.
func NewRefreshScheduler(handler *Handler) *RefreshScheduler {
	return &RefreshScheduler{
		Handler:  handler,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with refresh interval: %v", rs.Interval)
}

// Stop stops the scheduler.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.refreshAll()

	for {
		select {
		case <-rs.ticker.C:
			rs.refreshAll()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RefreshScheduler) refreshAll() {
	ctx := context.Background()

	schools, err := rs.Handler.Store.Schools(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to list schools: %v", err)
		return
	}

	for _, school := range schools {
		if school.Status != uniform.SchoolActive {
			continue
		}
		students, err := rs.Handler.Roster.Students(ctx, school.ID)
		if err != nil {
			log.Printf("[Scheduler] Failed to load roster for %s: %v", school.ID, err)
			continue
		}
		if _, err := rs.Handler.Reporter.Refresh(ctx, school.ID, school.Name, school.UniformPolicy, students); err != nil {
			log.Printf("[Scheduler] Failed to refresh reports for %s: %v", school.ID, err)
			continue
		}
	}
}
