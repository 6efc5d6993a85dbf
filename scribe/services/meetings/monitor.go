package meetings

import (
	"context"
	"sync"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stopper is the part of Lifecycle the background loops drive.
type Stopper interface {
	Stop(ctx context.Context, meetingID uuid.UUID, forced bool) (bool, error)
}

// InactivityMonitor force-stops active meetings that went silent.
type InactivityMonitor struct {
	meetings *dao.MeetingDAO
	stopper  Stopper
	policy   config.Policy
	metrics  *metrics.Metrics
	now      func() time.Time

	inflight sync.WaitGroup
}

func NewInactivityMonitor(meetings *dao.MeetingDAO, stopper Stopper, policy config.Policy, m *metrics.Metrics) *InactivityMonitor {
	return &InactivityMonitor{meetings: meetings, stopper: stopper, policy: policy, metrics: m, now: time.Now}
}

// Run sweeps every InactivityScanInterval until ctx is done.
func (im *InactivityMonitor) Run(ctx context.Context) error {
	logging.AppLogger.Info("Inactivity monitor started",
		zap.Duration("interval", im.policy.InactivityScanInterval),
		zap.Duration("grace_period", im.policy.GracePeriod))

	ticker := time.NewTicker(im.policy.InactivityScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			im.inflight.Wait()
			return nil
		case <-ticker.C:
			im.Sweep(ctx)
		}
	}
}

// Sweep stops, without waiting for them, every active meeting whose last
// activity is older than the grace period. It returns how many it picked up.
func (im *InactivityMonitor) Sweep(ctx context.Context) int {
	return im.sweep(ctx, im.policy.GracePeriod)
}

func (im *InactivityMonitor) sweep(ctx context.Context, grace time.Duration) int {
	cutoff := im.now().UTC().Add(-grace)
	stale, err := im.meetings.ListInactive(ctx, cutoff)
	if err != nil {
		logging.ErrorLogger.Error("Inactivity scan failed", zap.Error(err))
		return 0
	}
	for _, m := range stale {
		im.inflight.Add(1)
		go im.stop(m)
	}
	return len(stale)
}

func (im *InactivityMonitor) stop(m models.Meeting) {
	defer im.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("Auto-stop panicked",
				zap.String("meeting_id", m.ID.String()), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	won, err := im.stopper.Stop(ctx, m.ID, true)
	if err != nil {
		logging.ErrorLogger.Error("Auto-stop failed",
			zap.String("meeting_id", m.ID.String()), zap.Error(err))
		return
	}
	if won {
		im.metrics.SessionsAutoStopped.Inc()
		logging.AppLogger.Info("Auto-stopped inactive meeting",
			zap.String("meeting_id", m.ID.String()),
			zap.Time("last_activity", m.LastActivity))
	}
}

// Recover is the one-shot variant used by the admin CLI after a crash: it
// stops meetings silent for longer than grace and waits for the stops.
func (im *InactivityMonitor) Recover(ctx context.Context, grace time.Duration) int {
	n := im.sweep(ctx, grace)
	im.inflight.Wait()
	return n
}

// Wait blocks until the stops started by previous sweeps returned.
func (im *InactivityMonitor) Wait() {
	im.inflight.Wait()
}
