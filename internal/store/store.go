package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rotctrack/internal/files"
	"rotctrack/internal/models"
)

var (
	// ErrEmptyName is returned when a group or member name is blank.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrGroupNotFound is returned when a group id is unknown.
	ErrGroupNotFound = errors.New("group not found")
	// ErrMemberNotFound is returned when a member id is unknown in its group.
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidDate is returned when a date is not a YYYY-MM-DD string.
	ErrInvalidDate = errors.New("invalid date, want YYYY-MM-DD")
	// ErrInvalidStatus is returned for an unknown attendance status.
	ErrInvalidStatus = errors.New("invalid attendance status")
)

// Store is the single source of truth for groups, members and attendance.
// All mutation goes through it and every mutating call rewrites the whole
// groups blob to persistent storage before returning.
type Store struct {
	mu       sync.RWMutex
	groups   models.GroupsData
	activeID string
	user     *models.User

	blobs *files.BlobStore
	log   *zap.Logger
}

// New loads persisted state from blobs and returns a ready store. A corrupt
// or missing groups blob is treated as an empty data set, never as a fatal
// error.
func New(blobs *files.BlobStore, log *zap.Logger) *Store {
	s := &Store{
		groups: models.GroupsData{},
		blobs:  blobs,
		log:    log,
	}
	s.load()
	return s
}

func (s *Store) load() {
	if data, err := s.blobs.Get(files.GroupsKey); err == nil {
		var groups models.GroupsData
		if jsonErr := json.Unmarshal(data, &groups); jsonErr != nil {
			s.log.Warn("discarding corrupt groups blob", zap.Error(jsonErr))
		} else if groups != nil {
			s.groups = groups
		}
	} else if !errors.Is(err, files.ErrNotFound) {
		s.log.Warn("could not read groups blob", zap.Error(err))
	}

	if data, err := s.blobs.Get(files.ActiveGroupKey); err == nil {
		id := strings.TrimSpace(string(data))
		if _, ok := s.groups[id]; ok {
			s.activeID = id
		}
	}

	if data, err := s.blobs.Get(files.UserKey); err == nil {
		var user models.User
		if jsonErr := json.Unmarshal(data, &user); jsonErr != nil {
			s.log.Warn("discarding corrupt user blob", zap.Error(jsonErr))
		} else {
			s.user = &user
		}
	}
}

// flushGroups rewrites the entire groups collection. Callers must hold the
// write lock.
func (s *Store) flushGroups() error {
	data, err := json.MarshalIndent(s.groups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal groups: %w", err)
	}
	return s.blobs.Put(files.GroupsKey, data)
}

// flushActive persists the active-group pointer under its own key. Callers
// must hold the write lock.
func (s *Store) flushActive() error {
	if s.activeID == "" {
		return s.blobs.Delete(files.ActiveGroupKey)
	}
	return s.blobs.Put(files.ActiveGroupKey, []byte(s.activeID))
}

// AddGroup creates a group with a fresh id and an empty members map. If no
// group is active yet, the new group becomes active.
func (s *Store) AddGroup(name, description string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group := models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Members:     map[string]models.Member{},
	}
	s.groups[group.ID] = group
	if s.activeID == "" {
		s.activeID = group.ID
		if err := s.flushActive(); err != nil {
			s.log.Warn("could not persist active group", zap.Error(err))
		}
	}
	if err := s.flushGroups(); err != nil {
		return models.Group{}, err
	}
	s.log.Info("group added", zap.String("group_id", group.ID), zap.String("name", name))
	return group.Clone(), nil
}

// UpdateGroup shallow-merges patch onto the group. The members map is never
// touched through a patch.
func (s *Store) UpdateGroup(id string, patch models.GroupPatch) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[id]
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Group{}, ErrEmptyName
		}
		group.Name = name
	}
	if patch.Description != nil {
		group.Description = *patch.Description
	}
	s.groups[id] = group
	if err := s.flushGroups(); err != nil {
		return models.Group{}, err
	}
	return group.Clone(), nil
}

// DeleteGroup removes the group and, explicitly, every member and
// attendance record it contains. If the deleted group was active the
// pointer is cleared; reselection is the caller's concern.
func (s *Store) DeleteGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	for memberID, member := range group.Members {
		for date := range member.Attendance {
			delete(member.Attendance, date)
		}
		delete(group.Members, memberID)
	}
	delete(s.groups, id)

	if s.activeID == id {
		s.activeID = ""
		if err := s.flushActive(); err != nil {
			s.log.Warn("could not persist active group", zap.Error(err))
		}
	}
	if err := s.flushGroups(); err != nil {
		return err
	}
	s.log.Info("group deleted", zap.String("group_id", id))
	return nil
}

// AddMember creates a member in the group with a fresh id and an empty
// attendance map.
func (s *Store) AddMember(groupID, name, email string) (models.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Member{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return models.Member{}, ErrGroupNotFound
	}
	member := models.Member{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Attendance: map[string]models.AttendanceRecord{},
	}
	group.Members[member.ID] = member
	s.groups[groupID] = group
	if err := s.flushGroups(); err != nil {
		return models.Member{}, err
	}
	s.log.Info("member added",
		zap.String("group_id", groupID),
		zap.String("member_id", member.ID))
	return member.Clone(), nil
}

// UpdateMember shallow-merges patch onto the member.
func (s *Store) UpdateMember(groupID, memberID string, patch models.MemberPatch) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return models.Member{}, ErrGroupNotFound
	}
	member, ok := group.Members[memberID]
	if !ok {
		return models.Member{}, ErrMemberNotFound
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Member{}, ErrEmptyName
		}
		member.Name = name
	}
	if patch.Email != nil {
		member.Email = *patch.Email
	}
	group.Members[memberID] = member
	if err := s.flushGroups(); err != nil {
		return models.Member{}, err
	}
	return member.Clone(), nil
}

// DeleteMember removes the member and its attendance records.
func (s *Store) DeleteMember(groupID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	member, ok := group.Members[memberID]
	if !ok {
		return ErrMemberNotFound
	}
	for date := range member.Attendance {
		delete(member.Attendance, date)
	}
	delete(group.Members, memberID)
	return s.flushGroups()
}

// MarkAttendance writes the attendance record for (member, date),
// overwriting any existing record for that date. The timestamp is the time
// of the write, not the class date. An empty method defaults to manual.
func (s *Store) MarkAttendance(groupID, memberID, date string, status models.AttendanceStatus, notes, excuse string, method models.CaptureMethod) (models.AttendanceRecord, error) {
	if !models.ValidDate(date) {
		return models.AttendanceRecord{}, ErrInvalidDate
	}
	if !status.Valid() {
		return models.AttendanceRecord{}, ErrInvalidStatus
	}
	if method == "" {
		method = models.MethodManual
	}
	if !method.Valid() {
		return models.AttendanceRecord{}, fmt.Errorf("invalid capture method %q", method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return models.AttendanceRecord{}, ErrGroupNotFound
	}
	member, ok := group.Members[memberID]
	if !ok {
		return models.AttendanceRecord{}, ErrMemberNotFound
	}

	record := models.AttendanceRecord{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Notes:     notes,
		Excuse:    excuse,
		Method:    method,
	}
	member.Attendance[date] = record
	group.Members[memberID] = member
	if err := s.flushGroups(); err != nil {
		return models.AttendanceRecord{}, err
	}
	s.log.Info("attendance marked",
		zap.String("group_id", groupID),
		zap.String("member_id", memberID),
		zap.String("date", date),
		zap.String("status", string(status)),
		zap.String("method", string(method)))
	return record, nil
}

// SetActiveGroup points the active-group selection at an existing group.
// It is a pointer update only; no group data changes.
func (s *Store) SetActiveGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return ErrGroupNotFound
	}
	s.activeID = id
	return s.flushActive()
}

// ClearActiveGroup drops the active-group selection.
func (s *Store) ClearActiveGroup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = ""
	return s.flushActive()
}

// ActiveGroup returns the id of the selected group, or "" if none.
func (s *Store) ActiveGroup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Groups returns a deep-copied snapshot of the whole collection.
func (s *Store) Groups() models.GroupsData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups.Clone()
}

// Group returns a deep copy of one group.
func (s *Store) Group(id string) (models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	return group.Clone(), nil
}

// Member returns a deep copy of one member.
func (s *Store) Member(groupID, memberID string) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[groupID]
	if !ok {
		return models.Member{}, ErrGroupNotFound
	}
	member, ok := group.Members[memberID]
	if !ok {
		return models.Member{}, ErrMemberNotFound
	}
	return member.Clone(), nil
}

// ClearAll empties the groups collection, drops the active pointer and
// removes the persisted blobs. The logged-in user is untouched.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = models.GroupsData{}
	s.activeID = ""
	if err := s.blobs.Delete(files.GroupsKey); err != nil {
		return err
	}
	if err := s.blobs.Delete(files.ActiveGroupKey); err != nil {
		return err
	}
	s.log.Info("all attendance data cleared")
	return nil
}

// SetUser persists the logged-in user.
func (s *Store) SetUser(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.blobs.Put(files.UserKey, data); err != nil {
		return err
	}
	s.user = &user
	return nil
}

// User returns the logged-in user, or false if nobody is logged in.
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// ClearUser logs the user out and removes the persisted user blob.
func (s *Store) ClearUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	return s.blobs.Delete(files.UserKey)
}
