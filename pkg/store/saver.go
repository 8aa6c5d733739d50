package store

import "time"

// EnqueueSave schedules a snapshot of the store to cachePath after a short
// debounce window. Calls made while a save is pending coalesce into it; calls
// made while a save is running schedule exactly one follow-up save.
func (s *Store) EnqueueSave(cachePath string) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.savePath = cachePath
	if s.savePending {
		return
	}
	if s.saveRunning {
		s.saveRerun = true
		return
	}
	s.savePending = true
	s.saveTimer = time.AfterFunc(s.saveDelay, s.fireSave)
}

// fireSave runs on the timer goroutine; at most one save runs at a time.
func (s *Store) fireSave() {
	s.saveMu.Lock()
	if !s.savePending {
		s.saveMu.Unlock()
		return
	}
	s.savePending = false
	s.saveRunning = true
	path := s.savePath
	s.saveMu.Unlock()

	s.runSaves(path)
}

// runSaves performs the save plus any follow-up that was requested while it
// was in flight. Save errors are logged by Save; in-memory state stays
// authoritative.
func (s *Store) runSaves(path string) {
	for {
		_ = s.Save(path)

		s.saveMu.Lock()
		if s.saveRerun {
			s.saveRerun = false
			path = s.savePath
			s.saveMu.Unlock()
			continue
		}
		s.saveRunning = false
		s.saveMu.Unlock()
		return
	}
}

// FlushSaves forces any pending save to run now and waits for in-flight saves
// to finish. It reports whether the store went idle within timeout.
func (s *Store) FlushSaves(timeout time.Duration) bool {
	s.saveMu.Lock()
	if s.savePending && s.saveTimer != nil && s.saveTimer.Stop() {
		s.savePending = false
		s.saveRunning = true
		path := s.savePath
		s.saveMu.Unlock()
		s.runSaves(path)
	} else {
		s.saveMu.Unlock()
	}

	deadline := time.Now().Add(timeout)
	for {
		s.saveMu.Lock()
		idle := !s.savePending && !s.saveRunning
		s.saveMu.Unlock()
		if idle {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
