package utils

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tonikorin/tracker-agent/internal/models"
	"github.com/tonikorin/tracker-agent/pkg/file"
)

// TeamConfigStore holds the host-app supplied team configuration. Queries
// read an immutable snapshot; reconfiguration replaces the snapshot
// wholesale and persists it, never mutating a snapshot a running query may
// hold.
type TeamConfigStore struct {
	path    string
	fileOps file.FileOperations
	logger  zerolog.Logger

	mu      sync.RWMutex
	current *models.TeamConfig
}

// NewTeamConfigStore creates a store persisted at path.
func NewTeamConfigStore(path string, fileOps file.FileOperations, logger zerolog.Logger) *TeamConfigStore {
	return &TeamConfigStore{
		path:    path,
		fileOps: fileOps,
		logger:  logger,
		current: &models.TeamConfig{},
	}
}

// Load reads the persisted configuration. A missing file leaves the store
// with an empty configuration, under which every query drops as unknown.
func (s *TeamConfigStore) Load() error {
	var cfg models.TeamConfig
	if err := s.fileOps.ReadJsonFile(s.path, &cfg); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn().Str("path", s.path).Msg("No team configuration found, starting empty")
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.current = &cfg
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current configuration. Callers must treat it as
// read-only for the lifetime of their query.
func (s *TeamConfigStore) Snapshot() *models.TeamConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a new configuration and persists it.
func (s *TeamConfigStore) Replace(cfg *models.TeamConfig) error {
	if err := s.fileOps.WriteJsonFile(s.path, cfg); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	s.logger.Info().Int("teams", len(cfg.Teams)).Msg("Team configuration replaced")
	return nil
}
