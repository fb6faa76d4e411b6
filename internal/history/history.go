// Package history keeps a bounded log of answered location queries and
// received chat messages, persisted as one JSON blob the host application
// reads and clears.
package history

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonikorin/tracker-agent/internal/constants"
	"github.com/tonikorin/tracker-agent/pkg/file"
)

// UpdateStatus records the most recent locate query.
type UpdateStatus struct {
	Member string `json:"member"`
	Team   string `json:"team"`
	Date   string `json:"date"`
	Target string `json:"target"`
}

// Snapshot is the persisted history shape.
type Snapshot struct {
	UpdateStatus UpdateStatus `json:"updateStatus"`
	Lines        []string     `json:"lines"`
	ChatMessages []string     `json:"chatMessages"`
}

// Store is the append-only history log. Every update is one critical
// section: append, trim to cap, persist. Concurrent queries therefore never
// lose each other's entries.
type Store struct {
	path    string
	fileOps file.FileOperations
	logger  zerolog.Logger

	mu      sync.Mutex
	current Snapshot
}

// NewStore creates a history store persisted at path.
func NewStore(path string, fileOps file.FileOperations, logger zerolog.Logger) *Store {
	return &Store{
		path:    path,
		fileOps: fileOps,
		logger:  logger,
	}
}

// Load reads the persisted history. A missing file yields an empty history.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if err := s.fileOps.ReadJsonFile(s.path, &snap); err != nil {
		if os.IsNotExist(err) {
			s.current = Snapshot{}
			return nil
		}
		return err
	}
	s.current = snap
	return nil
}

// RecordLocate appends one locate line and refreshes the update status. The
// oldest line is evicted once the cap is exceeded.
func (s *Store) RecordLocate(member, team, target string, blocked bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := now.Format(constants.TimestampLayout)
	s.current.UpdateStatus = UpdateStatus{
		Member: member,
		Team:   team,
		Date:   date,
		Target: target,
	}

	shown := target
	if shown == "" {
		shown = team
	}
	line := fmt.Sprintf("%s (%s) %s", member, shown, date)
	if blocked {
		line += " [blocked]"
	}
	s.current.Lines = append(s.current.Lines, line+"\n")
	if n := len(s.current.Lines); n > constants.MaxHistoryLines {
		s.current.Lines = s.current.Lines[n-constants.MaxHistoryLines:]
	}

	s.persistLocked()
}

// RecordChat appends the raw chat payload with a receipt timestamp.
func (s *Store) RecordChat(raw []byte, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := fmt.Sprintf(`{"received":"%s","message":%s}`, now.Format(constants.TimestampLayout), raw)
	s.current.ChatMessages = append(s.current.ChatMessages, entry)
	if n := len(s.current.ChatMessages); n > constants.MaxChatMessages {
		s.current.ChatMessages = s.current.ChatMessages[n-constants.MaxChatMessages:]
	}

	s.persistLocked()
}

// ReadAndClear hands the accumulated history to the host application and
// resets the store.
func (s *Store) ReadAndClear() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current
	s.current = Snapshot{}
	s.persistLocked()
	return snap
}

func (s *Store) persistLocked() {
	if err := s.fileOps.WriteJsonFile(s.path, s.current); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist history")
	}
}
