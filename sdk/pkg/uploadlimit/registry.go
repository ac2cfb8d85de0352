package uploadlimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/DiDuV5/cosv5-core/sdk/pkg/logger"
)

const (
	defaultIdleTimeout         = 30 * time.Minute
	defaultReaperInterval      = time.Minute
	defaultHousekeeperInterval = time.Second
)

// SessionRegistry owns all mutable admission-control state: the active
// session map, per-user usage counters and the priority-ordered session
// queue. All mutation is linearized under one RWMutex; read accessors take
// the read lock and return copies, so callers never observe a half-updated
// session.
//
// Two background tasks run for the registry's lifetime: an idle-session
// reaper and a queue housekeeper. Both are started by the constructor and
// stopped by Close.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*UploadSession
	usage    map[string]*UserUsage
	queue    sessionQueue
	closed   bool

	crontab *cron.Cron
	metrics MetricsCollector
	now     func() time.Time

	idleTimeout         time.Duration
	reaperInterval      time.Duration
	housekeeperInterval time.Duration
}

// RegistryOption configures a SessionRegistry.
type RegistryOption func(*SessionRegistry)

// WithIdleTimeout sets how long a session may stay inactive before the
// reaper force-removes it.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) { r.idleTimeout = d }
}

// WithReaperInterval sets the idle-reaper tick.
func WithReaperInterval(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) { r.reaperInterval = d }
}

// WithHousekeeperInterval sets the queue-housekeeper tick.
func WithHousekeeperInterval(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) { r.housekeeperInterval = d }
}

// WithRegistryMetrics injects a metrics collector.
func WithRegistryMetrics(mc MetricsCollector) RegistryOption {
	return func(r *SessionRegistry) { r.metrics = mc }
}

// WithRegistryClock overrides the registry's time source, for tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) { r.now = now }
}

// NewSessionRegistry creates a registry and starts its background tasks.
// Callers own the lifecycle and must call Close.
func NewSessionRegistry(opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		sessions:            make(map[string]*UploadSession),
		usage:               make(map[string]*UserUsage),
		metrics:             NoOpMetricsCollector{},
		now:                 time.Now,
		idleTimeout:         defaultIdleTimeout,
		reaperInterval:      defaultReaperInterval,
		housekeeperInterval: defaultHousekeeperInterval,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.crontab = cron.New(cron.WithSeconds())
	// AddFunc only fails on an unparsable spec; both specs are derived from
	// durations and cannot fail, but log anyway rather than drop the task.
	if _, err := r.crontab.AddFunc(everySpec(r.reaperInterval), r.reapIdleSessions); err != nil {
		logger.Errorf("uploadlimit: failed to schedule idle reaper: %v", err)
	}
	if _, err := r.crontab.AddFunc(everySpec(r.housekeeperInterval), r.housekeep); err != nil {
		logger.Errorf("uploadlimit: failed to schedule queue housekeeper: %v", err)
	}
	r.crontab.Start()

	return r
}

func everySpec(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// Close stops the background tasks and marks the registry closed. Safe to
// call more than once.
func (r *SessionRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	// Stop returns a context that is done once in-flight jobs finish.
	<-r.crontab.Stop().Done()
	logger.Info("uploadlimit: session registry closed")
	return nil
}

// CreateSession registers a new Active session and inserts it into the
// priority queue. The effective quota and VIP flag are resolved by the
// caller (see Manager.CreateSession); admission checks are not repeated
// here.
func (r *SessionRegistry) CreateSession(userID string, tier Tier, fileCount int, totalBytes int64, quota TierQuota, isVIP bool) string {
	now := r.now()
	plan := computeBatchPlan(fileCount, totalBytes, quota)

	s := &UploadSession{
		SessionID:     uuid.NewString(),
		UserID:        userID,
		Tier:          tier,
		StartTime:     now,
		LastActivity:  now,
		FileCount:     fileCount,
		TotalBytes:    totalBytes,
		CurrentBatch:  1,
		TotalBatches:  plan.TotalBatches,
		BatchSize:     plan.RecommendedBatchSize,
		PriorityLevel: quota.PriorityLevel,
		IsVIP:         isVIP,
		Status:        StatusActive,
	}

	r.mu.Lock()
	r.sessions[s.SessionID] = s
	r.queue.insert(s)
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.RecordSessionStarted(tier)
	r.metrics.RecordActiveSessions(active)
	logger.Infof("uploadlimit: session %s created for user %s (tier=%s files=%d bytes=%d priority=%d)",
		s.SessionID, userID, tier, fileCount, totalBytes, s.PriorityLevel)
	return s.SessionID
}

// UpdateProgress records upload progress and refreshes the session's
// activity timestamp. Unknown session IDs are ignored.
func (r *SessionRegistry) UpdateProgress(sessionID string, uploadedFiles int, uploadedBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		logger.Debugf("uploadlimit: progress update for unknown session %s ignored", sessionID)
		return
	}

	s.UploadedFiles = uploadedFiles
	s.UploadedBytes = uploadedBytes
	if s.FileCount > 0 {
		s.Percent = uploadedFiles * 100 / s.FileCount
	}
	if s.BatchSize > 0 {
		s.CurrentBatch = (uploadedFiles + s.BatchSize - 1) / s.BatchSize
	}
	s.LastActivity = r.now()
}

// UpdateStatus transitions the session. A terminal status drops the queue
// entry but keeps the session in the active map until EndSession, so the
// caller can still read final progress. Unknown session IDs are ignored.
func (r *SessionRegistry) UpdateStatus(sessionID string, status SessionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		logger.Debugf("uploadlimit: status update for unknown session %s ignored", sessionID)
		return
	}

	// Terminal states are final; a completed or failed session cannot be
	// re-activated.
	if s.Status.Terminal() {
		logger.Debugf("uploadlimit: session %s is already %s, ignoring transition to %s",
			sessionID, s.Status, status)
		return
	}

	s.Status = status
	s.LastActivity = r.now()

	if status.Terminal() {
		r.queue.remove(sessionID)
	}
}

// EndSession folds the session's totals into the user's minute and hour
// usage windows (rotating expired windows first), removes it from the
// active map and the queue, and logs duration and throughput. Unknown
// session IDs are ignored, which makes caller cleanup retries idempotent.
func (r *SessionRegistry) EndSession(sessionID string) {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		logger.Debugf("uploadlimit: end of unknown session %s ignored", sessionID)
		return
	}

	u, ok := r.usage[s.UserID]
	if !ok {
		u = &UserUsage{}
		r.usage[s.UserID] = u
	}
	u.Minute.rotateIfExpired(now, minuteWindow)
	u.Hour.rotateIfExpired(now, hourWindow)
	u.Minute.add(s.FileCount, s.TotalBytes)
	u.Hour.add(s.FileCount, s.TotalBytes)

	delete(r.sessions, sessionID)
	r.queue.remove(sessionID)
	active := len(r.sessions)
	r.mu.Unlock()

	duration := now.Sub(s.StartTime)
	var throughput int64
	if secs := int64(duration / time.Second); secs > 0 {
		throughput = s.UploadedBytes / secs
	}
	logger.Infof("uploadlimit: session %s ended (user=%s status=%s duration=%s uploaded=%d/%d files throughput=%dB/s)",
		sessionID, s.UserID, s.Status, duration, s.UploadedFiles, s.FileCount, throughput)

	r.metrics.RecordSessionEnded(s.Tier, s.Status, duration)
	r.metrics.RecordActiveSessions(active)
}

// GetUserActiveSessions returns copies of the user's sessions still in the
// active map.
func (r *SessionRegistry) GetUserActiveSessions(userID string) []UploadSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []UploadSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

// GetSession returns a copy of a single session.
func (r *SessionRegistry) GetSession(sessionID string) (UploadSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return UploadSession{}, false
	}
	return *s, true
}

// GetUserUsage returns the user's usage counters with expired windows
// already rotated, so callers always see current-window values. The second
// return is false when the user has no recorded usage at all.
func (r *SessionRegistry) GetUserUsage(userID string) (UserUsage, bool) {
	r.mu.RLock()
	u, ok := r.usage[userID]
	var snapshot UserUsage
	if ok {
		snapshot = *u
	}
	r.mu.RUnlock()

	if !ok {
		return UserUsage{}, false
	}
	return snapshot.rotated(r.now()), true
}

// ActiveSessionCount counts the user's sessions currently in Active status.
func (r *SessionRegistry) ActiveSessionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == StatusActive {
			n++
		}
	}
	return n
}

// QueueDepth returns the number of queued sessions.
func (r *SessionRegistry) QueueDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queue.depth()
}

// reapIdleSessions force-removes sessions whose last activity is older than
// the idle timeout. Abandoned sessions are NOT folded into usage counters:
// a client that crashed mid-upload should not keep paying for files that
// never finished. Errors on one entry must not abort the sweep.
func (r *SessionRegistry) reapIdleSessions() {
	now := r.now()

	r.mu.Lock()
	var reaped []*UploadSession
	for id, s := range r.sessions {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("uploadlimit: reaper failed on session %s: %v", id, rec)
				}
			}()
			if now.Sub(s.LastActivity) > r.idleTimeout {
				delete(r.sessions, id)
				r.queue.remove(id)
				reaped = append(reaped, s)
			}
		}()
	}
	active := len(r.sessions)
	r.mu.Unlock()

	for _, s := range reaped {
		logger.Warnf("uploadlimit: reaped abandoned session %s (user=%s idle=%s)",
			s.SessionID, s.UserID, now.Sub(s.LastActivity))
	}
	if len(reaped) > 0 {
		r.metrics.RecordReapedSessions(len(reaped))
		r.metrics.RecordActiveSessions(active)
	}
}

// housekeep is the 1s queue tick. It is observational: it publishes queue
// depth for operators. Queue position does not gate admission; sessions are
// admitted immediately once the quota checks pass.
func (r *SessionRegistry) housekeep() {
	r.mu.RLock()
	depth := r.queue.depth()
	active := len(r.sessions)
	r.mu.RUnlock()

	r.metrics.RecordQueueDepth(depth)
	r.metrics.RecordActiveSessions(active)
	if depth > 0 {
		logger.Debugf("uploadlimit: queue depth=%d active=%d", depth, active)
	}
}
