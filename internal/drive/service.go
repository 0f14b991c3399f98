package drive

import (
	"sync"
)

// Service keeps one tracker per user for the lifetime of the process.
type Service struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewService(deps Deps, opts Options) *Service {
	return &Service{
		deps:     deps,
		opts:     opts,
		trackers: map[string]*Tracker{},
	}
}

func (s *Service) tracker(userID string) *Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trackers[userID]
	if !ok {
		t = NewTracker(userID, s.deps, s.opts)
		s.trackers[userID] = t
	}
	return t
}

func (s *Service) Start(userID string) State {
	return s.tracker(userID).Start()
}

func (s *Service) Stop(userID string) (SessionSummary, bool) {
	return s.tracker(userID).Stop()
}

func (s *Service) Accelerations(userID string, samples []AccelSample) State {
	t := s.tracker(userID)
	for _, sample := range samples {
		t.OnAcceleration(sample)
	}
	return t.State()
}

func (s *Service) Locations(userID string, samples []LocationSample) State {
	t := s.tracker(userID)
	for _, sample := range samples {
		t.OnLocation(sample)
	}
	return t.State()
}

func (s *Service) State(userID string) State {
	return s.tracker(userID).State()
}

// Close stops every active drive and waits for pending lookups and stats
// writes, so summaries reach the store before shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	trackers := make([]*Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		trackers = append(trackers, t)
	}
	s.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
	for _, t := range trackers {
		t.Wait()
	}
}
