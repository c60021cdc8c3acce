package api

import (
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rotctrack/internal/auth"
	"rotctrack/internal/capture"
	"rotctrack/internal/models"
	"rotctrack/internal/qr"
	"rotctrack/internal/store"
)

// maxImportSize bounds uploaded import files.
const maxImportSize = 16 << 20

// Handler carries the dependencies the HTTP surface needs. Camera and
// Detector are optional; without them the face endpoint reports the camera
// as unavailable.
type Handler struct {
	Store       *store.Store
	Auth        *auth.Authenticator
	QRScanner   *capture.QRScanner
	FaceScanner *capture.FaceScanner
	Camera      capture.Camera
	Detector    capture.Detector
	QRImageSize int
	Log         *zap.Logger
}

// LoginRequest is the login payload. Role defaults to cadet.
type LoginRequest struct {
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	Password string      `json:"password"`
}

// LoginResponse carries the session token and the logged-in user.
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login verifies the access password and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleCadet
	}
	user, token, err := h.Auth.Login(req.Name, req.Role, req.Password)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	if err := h.Store.SetUser(user); err != nil {
		h.Log.Warn("could not persist user", zap.Error(err))
	}
	JSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout clears the persisted user. Issued tokens simply age out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ClearUser(); err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the claims of the calling session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		ErrorResponse(w, auth.ErrInvalidToken)
		return
	}
	JSONResponse(w, http.StatusOK, models.User{ID: claims.UserID, Name: claims.Name, Role: claims.Role})
}

// ListGroups returns a snapshot of every group, sorted by name for stable
// output.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.Store.Groups()
	list := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	JSONResponse(w, http.StatusOK, list)
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup adds a group.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := h.Store.AddGroup(req.Name, req.Description)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, group)
}

// GetGroup returns one group.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.Store.Group(mux.Vars(r)["id"])
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, group)
}

// UpdateGroup patches a group's name or description.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var patch models.GroupPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	group, err := h.Store.UpdateGroup(mux.Vars(r)["id"], patch)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, group)
}

// DeleteGroup removes a group and everything it contains.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteGroup(mux.Vars(r)["id"]); err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateMember adds a member to a group.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	member, err := h.Store.AddMember(mux.Vars(r)["id"], req.Name, req.Email)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusCreated, member)
}

// UpdateMember patches a member's name or email.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var patch models.MemberPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	vars := mux.Vars(r)
	member, err := h.Store.UpdateMember(vars["id"], vars["mid"], patch)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, member)
}

// DeleteMember removes a member and its attendance records.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.Store.DeleteMember(vars["id"], vars["mid"]); err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markAttendanceRequest struct {
	Date   string                  `json:"date"`
	Status models.AttendanceStatus `json:"status"`
	Notes  string                  `json:"notes"`
	Excuse string                  `json:"excuse"`
	Method models.CaptureMethod    `json:"method"`
}

// MarkAttendance writes a record for one member and date. An omitted date
// means today; an omitted method means manual.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.Today()
	}
	vars := mux.Vars(r)
	record, err := h.Store.MarkAttendance(vars["id"], vars["mid"], req.Date, req.Status, req.Notes, req.Excuse, req.Method)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, record)
}

// memberAttendance is one row of the per-date attendance view.
type memberAttendance struct {
	MemberID string                   `json:"memberId"`
	Name     string                   `json:"name"`
	Record   *models.AttendanceRecord `json:"record,omitempty"`
}

// GroupAttendance lists every member of a group with their record for one
// date; members without a record for that date appear with a null record.
func (h *Handler) GroupAttendance(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = models.Today()
	}
	if !models.ValidDate(date) {
		ErrorResponse(w, store.ErrInvalidDate)
		return
	}
	group, err := h.Store.Group(mux.Vars(r)["id"])
	if err != nil {
		ErrorResponse(w, err)
		return
	}

	rows := make([]memberAttendance, 0, len(group.Members))
	for _, m := range group.Members {
		row := memberAttendance{MemberID: m.ID, Name: m.Name}
		if rec, ok := m.Attendance[date]; ok {
			row.Record = &rec
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	JSONResponse(w, http.StatusOK, map[string]interface{}{"date": date, "members": rows})
}

type activeGroupRequest struct {
	GroupID string `json:"groupId"`
}

// SetActiveGroup points the active selection at a group, or clears it when
// groupId is empty.
func (h *Handler) SetActiveGroup(w http.ResponseWriter, r *http.Request) {
	var req activeGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	if req.GroupID == "" {
		err = h.Store.ClearActiveGroup()
	} else {
		err = h.Store.SetActiveGroup(req.GroupID)
	}
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetActiveGroup returns the current active-group id, "" when none.
func (h *Handler) GetActiveGroup(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, activeGroupRequest{GroupID: h.Store.ActiveGroup()})
}

// Export streams the whole data set as a downloadable JSON file.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.Store.Export()
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	filename := "attendance-data-" + time.Now().Format(models.DateLayout) + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)
}

// Import replaces the data set with an uploaded export file.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	if err := h.Store.Import(data); err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearData wipes every group, member and attendance record.
func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ClearAll(); err != nil {
		ErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memberQRResponse carries a member's marker payload and its render URL.
type memberQRResponse struct {
	MemberID string `json:"memberId"`
	Payload  string `json:"payload"`
	ImageURL string `json:"imageUrl"`
}

// MemberQR returns the attendance-marker payload and QR image URL for a
// member.
func (h *Handler) MemberQR(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	member, err := h.Store.Member(vars["id"], vars["mid"])
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	payload, err := qr.EncodeMarker(member.ID)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, memberQRResponse{
		MemberID: member.ID,
		Payload:  payload,
		ImageURL: qr.ImageURL(payload, h.QRImageSize),
	})
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
