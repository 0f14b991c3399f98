package drive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"backend-steersafe/internal/logger"
	"backend-steersafe/internal/shared/geo"
)

const (
	PickupThreshold = 0.1
	PickupCooldown  = 5 * time.Second
	WarningDuration = 5 * time.Second

	DefaultTickInterval   = time.Second
	DefaultLookupTimeout  = 3 * time.Second
	DefaultPersistTimeout = 5 * time.Second

	secondsPerToken = 120
	mpsToKmh        = 3.6
)

// TokensEarned awards one token per full two minutes driven.
func TokensEarned(elapsedSec float64) int {
	if elapsedSec <= 0 {
		return 0
	}
	return int(elapsedSec) / secondsPerToken
}

type Deps struct {
	SpeedLimits SpeedLimitProvider
	Recorder    Recorder
	Notifier    Notifier
	Logger      *slog.Logger
}

type Options struct {
	// TickInterval drives the elapsed-time clock. Zero means the default,
	// a negative value disables the internal ticker.
	TickInterval   time.Duration
	LookupTimeout  time.Duration
	PersistTimeout time.Duration
}

type stopper interface {
	Stop() bool
}

type Tracker struct {
	mu sync.Mutex

	userID string
	deps   Deps
	log    *slog.Logger

	tickInterval   time.Duration
	lookupTimeout  time.Duration
	persistTimeout time.Duration

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	active          bool
	startedAt       time.Time
	elapsedSec      float64
	distanceKm      float64
	pickups         int
	lifetimePickups int
	lastPickupAt    time.Time
	exceeds         int

	hasPosition bool
	position    Position
	hasSpeed    bool
	speedKmh    float64
	hasLimit    bool
	limitKmh    float64

	warningVisible bool
	warningTimer   stopper
	warningSeq     uint64

	stopTick chan struct{}
	inflight sync.WaitGroup
}

func NewTracker(userID string, deps Deps, opts Options) *Tracker {
	t := &Tracker{
		userID:         userID,
		deps:           deps,
		log:            deps.Logger,
		tickInterval:   opts.TickInterval,
		lookupTimeout:  opts.LookupTimeout,
		persistTimeout: opts.PersistTimeout,
		now:            time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	if t.log == nil {
		t.log = logger.Discard()
	}
	if t.tickInterval == 0 {
		t.tickInterval = DefaultTickInterval
	}
	if t.lookupTimeout <= 0 {
		t.lookupTimeout = DefaultLookupTimeout
	}
	if t.persistTimeout <= 0 {
		t.persistTimeout = DefaultPersistTimeout
	}
	return t
}

// Start begins a drive. Calling it while a drive is active changes nothing.
func (t *Tracker) Start() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return t.snapshotLocked()
	}

	t.active = true
	t.startedAt = t.now()
	t.elapsedSec = 0
	t.distanceKm = 0
	t.pickups = 0
	t.exceeds = 0
	t.lastPickupAt = time.Time{}
	t.hasPosition = false
	t.hasSpeed = false
	t.cancelWarningLocked()

	if t.tickInterval > 0 {
		t.stopTick = make(chan struct{})
		go t.runTicker(t.stopTick)
	}

	t.log.Info("drive started", "user_id", t.userID)
	t.emitLocked(EventStarted, nil)
	return t.snapshotLocked()
}

// Stop ends the active drive and returns its summary. The second return
// value is false when no drive was active.
func (t *Tracker) Stop() (SessionSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return SessionSummary{}, false
	}

	t.active = false
	if t.stopTick != nil {
		close(t.stopTick)
		t.stopTick = nil
	}
	t.cancelWarningLocked()

	summary := SessionSummary{
		UserID:            t.userID,
		StartedAt:         t.startedAt,
		EndedAt:           t.now(),
		DurationSec:       t.elapsedSec,
		DistanceKm:        t.distanceKm,
		TokensEarned:      TokensEarned(t.elapsedSec),
		Pickups:           t.pickups,
		SpeedLimitExceeds: t.exceeds,
	}

	t.log.Info("drive stopped",
		"user_id", t.userID,
		"duration_sec", summary.DurationSec,
		"tokens", summary.TokensEarned,
		"pickups", summary.Pickups,
		"speed_limit_exceeds", summary.SpeedLimitExceeds,
	)
	t.emitLocked(EventStopped, &summary)
	t.persistAsync(summary)
	return summary, true
}

// Tick advances the elapsed-time clock of the active drive.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	if elapsed := now.Sub(t.startedAt).Seconds(); elapsed > t.elapsedSec {
		t.elapsedSec = elapsed
	}
	t.emitLocked(EventTick, nil)
}

func (t *Tracker) runTicker(stop <-chan struct{}) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Tick(t.now())
		}
	}
}

// OnAcceleration registers a phone pickup when the vertical reading crosses
// PickupThreshold and no pickup was registered in the last PickupCooldown,
// measured on the tracker's clock.
func (t *Tracker) OnAcceleration(sample AccelSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || sample.Z <= PickupThreshold {
		return
	}
	// client timestamps are not trusted for the cooldown
	now := t.now()
	if !t.lastPickupAt.IsZero() && now.Sub(t.lastPickupAt) <= PickupCooldown {
		return
	}

	t.pickups++
	t.lifetimePickups++
	t.lastPickupAt = now
	t.log.Info("phone pickup",
		"user_id", t.userID,
		"pickups", t.pickups,
		"lifetime_pickups", t.lifetimePickups,
		"sample_at", sample.At,
	)
	t.showWarningLocked()
}

func (t *Tracker) showWarningLocked() {
	if t.warningTimer != nil {
		t.warningTimer.Stop()
	}
	t.warningSeq++
	seq := t.warningSeq
	t.warningVisible = true
	t.warningTimer = t.afterFunc(WarningDuration, func() { t.clearWarning(seq) })
	t.emitLocked(EventPickupWarning, nil)
}

// cancelWarningLocked hides the warning and invalidates any pending clear.
func (t *Tracker) cancelWarningLocked() {
	if t.warningTimer != nil {
		t.warningTimer.Stop()
		t.warningTimer = nil
	}
	t.warningSeq++
	t.warningVisible = false
}

func (t *Tracker) clearWarning(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// a newer pickup owns the warning now
	if seq != t.warningSeq || !t.warningVisible {
		return
	}
	t.warningVisible = false
	t.warningTimer = nil
	t.emitLocked(EventWarningCleared, nil)
}

// OnLocation records a position fix, counts it against the last known speed
// limit and dispatches a lookup for the limit at the new position.
func (t *Tracker) OnLocation(sample LocationSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}

	next := Position{Lat: sample.Lat, Lng: sample.Lng}
	if t.hasPosition {
		t.distanceKm += geo.HaversineKm(t.position.Lat, t.position.Lng, next.Lat, next.Lng)
	}
	t.position = next
	t.hasPosition = true
	t.speedKmh = sample.SpeedMps * mpsToKmh
	t.hasSpeed = true

	if t.hasLimit && t.speedKmh > t.limitKmh {
		t.exceeds++
		t.log.Debug("speed limit exceeded", "user_id", t.userID, "speed_kmh", t.speedKmh, "limit_kmh", t.limitKmh)
		t.emitLocked(EventSpeeding, nil)
	}

	t.lookupAsync(next)
}

func (t *Tracker) lookupAsync(pos Position) {
	if t.deps.SpeedLimits == nil {
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.lookupTimeout)
		defer cancel()

		limit, err := t.deps.SpeedLimits.SpeedLimit(ctx, pos.Lat, pos.Lng)
		if err != nil {
			t.log.Debug("speed limit unavailable", "user_id", t.userID, "lat", pos.Lat, "lng", pos.Lng, "error", err)
			return
		}
		t.applySpeedLimit(limit)
	}()
}

func (t *Tracker) applySpeedLimit(limitKmh float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.limitKmh = limitKmh
	t.hasLimit = true
	t.emitLocked(EventSpeedLimit, nil)
}

func (t *Tracker) persistAsync(summary SessionSummary) {
	if t.deps.Recorder == nil {
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.persistTimeout)
		defer cancel()

		if err := t.deps.Recorder.ApplySession(ctx, summary.UserID, summary); err != nil {
			t.log.Error("record drive failed", "user_id", summary.UserID, "error", err)
			return
		}
		t.log.Info("drive recorded", "user_id", summary.UserID, "tokens", summary.TokensEarned)
	}()
}

// Wait blocks until in-flight speed-limit lookups and drive records finish.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() State {
	s := State{
		UserID:            t.userID,
		Active:            t.active,
		ElapsedSec:        t.elapsedSec,
		DistanceKm:        t.distanceKm,
		Pickups:           t.pickups,
		LifetimePickups:   t.lifetimePickups,
		SpeedLimitExceeds: t.exceeds,
		WarningVisible:    t.warningVisible,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		s.StartedAt = &started
	}
	if !t.lastPickupAt.IsZero() {
		last := t.lastPickupAt
		s.LastPickupAt = &last
	}
	if t.hasPosition {
		pos := t.position
		s.Position = &pos
	}
	if t.hasSpeed {
		speed := t.speedKmh
		s.SpeedKmh = &speed
	}
	if t.hasLimit {
		limit := t.limitKmh
		s.SpeedLimitKmh = &limit
	}
	return s
}

func (t *Tracker) emitLocked(typ EventType, summary *SessionSummary) {
	if t.deps.Notifier == nil {
		return
	}
	t.deps.Notifier.Notify(Event{
		Type:    typ,
		UserID:  t.userID,
		At:      t.now(),
		State:   t.snapshotLocked(),
		Summary: summary,
	})
}
