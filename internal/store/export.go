package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rotctrack/internal/models"
)

// ExportVersion is the format version written into export files.
const ExportVersion = "1.0"

// ErrInvalidImport is returned when an import file lacks data.groups.
var ErrInvalidImport = errors.New("invalid import file: missing data.groups")

// ExportFile is the on-disk exchange format for attendance data.
type ExportFile struct {
	Version    string     `json:"version"`
	ExportDate time.Time  `json:"exportDate"`
	Data       ExportData `json:"data"`
}

// ExportData wraps the groups collection inside an export file.
type ExportData struct {
	Groups models.GroupsData `json:"groups"`
}

// Export serializes the whole groups collection into the exchange format.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := ExportFile{
		Version:    ExportVersion,
		ExportDate: time.Now().UTC(),
		Data:       ExportData{Groups: s.groups.Clone()},
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// Import replaces the groups collection wholesale with the contents of an
// exported file. The file must carry data.groups; member and attendance
// shapes inside it are accepted as-is. An active group that no longer
// exists afterwards is cleared.
func (s *Store) Import(data []byte) error {
	var in struct {
		Data *struct {
			Groups models.GroupsData `json:"groups"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}
	if in.Data == nil || in.Data.Groups == nil {
		return ErrInvalidImport
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = in.Data.Groups
	if _, ok := s.groups[s.activeID]; !ok && s.activeID != "" {
		s.activeID = ""
		if err := s.flushActive(); err != nil {
			return err
		}
	}
	if err := s.flushGroups(); err != nil {
		return err
	}
	s.log.Info("attendance data imported", zap.Int("groups", len(s.groups)))
	return nil
}
