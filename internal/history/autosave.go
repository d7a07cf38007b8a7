package history

import (
	"context"
	"time"

	"ChatSync/internal/cache"
)

// DefaultAutoSaveInterval is the auto-save period
const DefaultAutoSaveInterval = 30 * time.Second

// StartAutoSave runs the save loop until ctx ends or StopAutoSave is called.
// A loop that is already running is stopped first, so at most one runs.
func (s *Sync) StartAutoSave(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	s.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stopLoop, s.loopDone = cancel, done
	s.loops.Add(1)

	go s.autoSaveLoop(loopCtx, done)
	s.logger.Info("auto-save started", "interval", s.interval.String())
}

// StopAutoSave stops the save loop. Safe to call when none is running.
func (s *Sync) StopAutoSave() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.stopLocked() {
		s.logger.Info("auto-save stopped")
	}
}

// AutoSaveRunning reports whether a save loop is active
func (s *Sync) AutoSaveRunning() bool {
	return s.loops.Load() > 0
}

func (s *Sync) stopLocked() bool {
	if s.stopLoop == nil {
		return false
	}
	s.stopLoop()
	<-s.loopDone
	s.stopLoop, s.loopDone = nil, nil
	return true
}

func (s *Sync) autoSaveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.loops.Add(-1)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autoSaveTick(ctx)
		}
	}
}

// autoSaveTick saves unless there is no session, another save is still
// running, or the batch is unchanged since the last successful save.
func (s *Sync) autoSaveTick(ctx context.Context) {
	id := s.SessionID()
	if id == "" {
		return
	}

	if s.inFlight.Load() > 0 {
		s.logger.Debug("auto-save skipped: save in flight", "session_id", id)
		s.countSave(ctx, "skipped")
		return
	}

	src := s.messageSource()
	if s.lastSaved.Matches(cache.Fingerprint(id, src.ActiveModel(), src.Messages())) {
		s.countSave(ctx, "skipped")
		return
	}

	if err := s.save(ctx); err != nil && IsBenign(err) {
		s.countSave(ctx, "skipped")
	}
}
