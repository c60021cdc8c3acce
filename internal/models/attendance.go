package models

import (
	"fmt"
	"time"
)

// AttendanceStatus is the recorded state of a member for one date.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Valid reports whether s is one of the four known statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// CaptureMethod tags how an attendance record was acquired.
type CaptureMethod string

const (
	MethodManual CaptureMethod = "manual"
	MethodQR     CaptureMethod = "qr"
	MethodFace   CaptureMethod = "face"
)

// Valid reports whether m is a known capture method.
func (m CaptureMethod) Valid() bool {
	switch m {
	case MethodManual, MethodQR, MethodFace:
		return true
	}
	return false
}

// AttendanceRecord is the status plus metadata for one member on one date.
// At most one record exists per (member, date); a later write replaces it.
type AttendanceRecord struct {
	Status    AttendanceStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Notes     string           `json:"notes,omitempty"`
	Excuse    string           `json:"excuse,omitempty"`
	Method    CaptureMethod    `json:"method,omitempty"`
}

// Member is an individual tracked for attendance within a group.
type Member struct {
	ID         string                      `json:"id"`
	Name       string                      `json:"name"`
	Email      string                      `json:"email,omitempty"`
	Attendance map[string]AttendanceRecord `json:"attendance"`
}

// Group is a named collection of members sharing one attendance timeline.
type Group struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Members     map[string]Member `json:"members"`
}

// GroupsData is the whole persisted collection, keyed by group id.
type GroupsData map[string]Group

// DateLayout is the calendar-date key format for attendance maps.
const DateLayout = "2006-01-02"

// ValidDate reports whether date is a well-formed YYYY-MM-DD string.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// Today returns the current date formatted as an attendance map key.
func Today() string {
	return time.Now().Format(DateLayout)
}

// GroupPatch carries optional field updates for a group. Nil fields are
// left untouched; the members map is never replaced through a patch.
type GroupPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MemberPatch carries optional field updates for a member.
type MemberPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Clone returns a deep copy of the groups collection so callers can hand
// out snapshots without exposing internal maps.
func (g GroupsData) Clone() GroupsData {
	out := make(GroupsData, len(g))
	for id, grp := range g {
		out[id] = grp.Clone()
	}
	return out
}

// Clone returns a deep copy of the group and its members.
func (g Group) Clone() Group {
	cp := g
	cp.Members = make(map[string]Member, len(g.Members))
	for id, m := range g.Members {
		cp.Members[id] = m.Clone()
	}
	return cp
}

// Clone returns a deep copy of the member and its attendance map.
func (m Member) Clone() Member {
	cp := m
	cp.Attendance = make(map[string]AttendanceRecord, len(m.Attendance))
	for date, rec := range m.Attendance {
		cp.Attendance[date] = rec
	}
	return cp
}

func (g Group) String() string {
	return fmt.Sprintf("group %s (%s, %d members)", g.ID, g.Name, len(g.Members))
}
