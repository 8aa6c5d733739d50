package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/log"
)

// StoreError represents IO or deserialization failures of the cache file.
type StoreError struct {
	Operation string
	Path      string
	Cause     error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s failed for %s: %v", e.Operation, e.Path, e.Cause)
}

func (e StoreError) Unwrap() error {
	return e.Cause
}

// Store is the authoritative in-memory state: player records, the append-only
// event list and whitelist applications, with a file-backed snapshot.
//
// The players map supports concurrent get/upsert; writes are always
// full-record replacements. Events and applications preserve append order.
// Saves serialize a copy and never hold the state lock across file IO.
type Store struct {
	mu           sync.RWMutex
	players      map[uuid.UUID]PlayerRecord
	events       []EventEntry
	applications []WhitelistApplication

	saveMu      sync.Mutex
	savePending bool
	saveRunning bool
	saveRerun   bool
	saveTimer   *time.Timer
	saveDelay   time.Duration
	savePath    string
}

// saveDebounce is the coalescing window for EnqueueSave.
const saveDebounce = 200 * time.Millisecond

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		players:   make(map[uuid.UUID]PlayerRecord),
		saveDelay: saveDebounce,
	}
}

// Get returns the record for id.
func (s *Store) Get(id uuid.UUID) (PlayerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.players[id]
	return rec, ok
}

// Upsert replaces the record for id atomically. If rec carries a Discord id
// that another record already holds, that record's Discord id is cleared
// first; a Discord user links to at most one game account.
func (s *Store) Upsert(id uuid.UUID, rec PlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.DiscordID != nil {
		for other, existing := range s.players {
			if other == id || existing.DiscordID == nil {
				continue
			}
			if *existing.DiscordID == *rec.DiscordID {
				existing.DiscordID = nil
				s.players[other] = existing
			}
		}
	}
	s.players[id] = rec
}

// FindByDiscordID returns the first record linked to discordID.
func (s *Store) FindByDiscordID(discordID uint64) (uuid.UUID, PlayerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rec := range s.players {
		if rec.DiscordID != nil && *rec.DiscordID == discordID {
			return id, rec, true
		}
	}
	return uuid.Nil, PlayerRecord{}, false
}

// FindByName returns the first record whose MC name matches, case-insensitive.
// Collisions are not defined; any matching record may be returned.
func (s *Store) FindByName(name string) (uuid.UUID, PlayerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rec := range s.players {
		if rec.MCName != nil && strings.EqualFold(*rec.MCName, name) {
			return id, rec, true
		}
	}
	return uuid.Nil, PlayerRecord{}, false
}

// Players returns a copy of the players map.
func (s *Store) Players() map[uuid.UUID]PlayerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]PlayerRecord, len(s.players))
	for id, rec := range s.players {
		out[id] = rec
	}
	return out
}

// AppendEvent appends an audit event, preserving insertion order.
func (s *Store) AppendEvent(e EventEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the event list.
func (s *Store) Events() []EventEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EventEntry, len(s.events))
	copy(out, s.events)
	return out
}

// EventsFor returns up to limit most recent events targeting id, oldest first.
func (s *Store) EventsFor(id uuid.UUID, limit int) []EventEntry {
	target := id.String()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []EventEntry
	for _, e := range s.events {
		if e.TargetUUID != nil && *e.TargetUUID == target {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// HasEvent reports whether an event of type t targeting id exists.
func (s *Store) HasEvent(t EventType, id uuid.UUID) bool {
	target := id.String()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.Type == t && e.TargetUUID != nil && *e.TargetUUID == target {
			return true
		}
	}
	return false
}

// AddApplication appends a new application.
func (s *Store) AddApplication(app WhitelistApplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications = append(s.applications, app)
}

// GetApplication returns the application with the given id.
func (s *Store) GetApplication(id string) (WhitelistApplication, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.applications {
		if app.ID == id {
			return app, true
		}
	}
	return WhitelistApplication{}, false
}

// UpdateApplication applies mutate to the application with the given id and
// stores the result. It returns nil when the id is unknown or mutate returned
// nil (rejected transition).
func (s *Store) UpdateApplication(id string, mutate func(WhitelistApplication) *WhitelistApplication) *WhitelistApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, app := range s.applications {
		if app.ID != id {
			continue
		}
		next := mutate(app)
		if next == nil {
			return nil
		}
		s.applications[i] = *next
		out := *next
		return &out
	}
	return nil
}

// Applications returns a copy of the application list.
func (s *Store) Applications() []WhitelistApplication {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WhitelistApplication, len(s.applications))
	copy(out, s.applications)
	return out
}

// Load reads the snapshot at cachePath, falling back to cachePath+".bak" and
// finally to empty state. In-memory state is replaced atomically.
func (s *Store) Load(cachePath string) {
	snap, err := readSnapshot(cachePath)
	if err != nil {
		log.Errorf("%v", StoreError{Operation: "load", Path: cachePath, Cause: err})
		snap, err = readSnapshot(cachePath + ".bak")
		if err != nil {
			log.Errorf("%v", StoreError{Operation: "load", Path: cachePath + ".bak", Cause: err})
			snap = snapshotFile{}
		} else {
			log.Infof(log.Store, "Loaded cache from backup %s.bak", cachePath)
		}
	}

	players := make(map[uuid.UUID]PlayerRecord, len(snap.Players))
	for key, rec := range snap.Players {
		id, perr := uuid.Parse(key)
		if perr != nil {
			log.Errorf("skipping cache entry with invalid uuid %q: %v", key, perr)
			continue
		}
		players[id] = rec
	}

	s.mu.Lock()
	s.players = players
	s.events = snap.Events
	s.applications = snap.Applications
	s.mu.Unlock()

	log.Infof(log.Store, "Cache loaded: %d players, %d events, %d applications",
		len(players), len(snap.Events), len(snap.Applications))
}

func readSnapshot(path string) (snapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshotFile{}, err
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshotFile{}, err
	}
	return snap, nil
}

// Save writes a snapshot to cachePath, rotating any existing primary file to
// cachePath+".bak" first. The state is copied under the lock and serialized
// outside it.
func (s *Store) Save(cachePath string) error {
	s.mu.RLock()
	snap := snapshotFile{
		Players:      make(map[string]PlayerRecord, len(s.players)),
		Events:       make([]EventEntry, len(s.events)),
		Applications: make([]WhitelistApplication, len(s.applications)),
	}
	for id, rec := range s.players {
		snap.Players[id.String()] = rec
	}
	copy(snap.Events, s.events)
	copy(snap.Applications, s.applications)
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		serr := StoreError{Operation: "marshal", Path: cachePath, Cause: err}
		log.Errorf("%v", serr)
		return serr
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		serr := StoreError{Operation: "mkdir", Path: cachePath, Cause: err}
		log.Errorf("%v", serr)
		return serr
	}

	if _, err := os.Stat(cachePath); err == nil {
		if err := os.Rename(cachePath, cachePath+".bak"); err != nil {
			serr := StoreError{Operation: "rotate", Path: cachePath, Cause: err}
			log.Errorf("%v", serr)
			return serr
		}
	}

	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		serr := StoreError{Operation: "write", Path: cachePath, Cause: err}
		log.Errorf("%v", serr)
		return serr
	}

	log.Infof(log.Store, "Cache saved: %d players, %d events, %d applications",
		len(snap.Players), len(snap.Events), len(snap.Applications))
	return nil
}
