package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"rotctrack/internal/auth"
	"rotctrack/internal/models"
)

// NewRouter wires every route. Everything except login and the health
// probe sits behind the bearer-token middleware; clearing all data is
// admin-only.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")

	s := r.NewRoute().Subrouter()
	s.Use(h.Auth.Middleware)

	s.HandleFunc("/logout", h.Logout).Methods("POST")
	s.HandleFunc("/me", h.Me).Methods("GET")

	s.HandleFunc("/groups", h.ListGroups).Methods("GET")
	s.HandleFunc("/groups", h.CreateGroup).Methods("POST")
	s.HandleFunc("/groups/{id}", h.GetGroup).Methods("GET")
	s.HandleFunc("/groups/{id}", h.UpdateGroup).Methods("PATCH")
	s.HandleFunc("/groups/{id}", h.DeleteGroup).Methods("DELETE")

	s.HandleFunc("/groups/{id}/members", h.CreateMember).Methods("POST")
	s.HandleFunc("/groups/{id}/members/{mid}", h.UpdateMember).Methods("PATCH")
	s.HandleFunc("/groups/{id}/members/{mid}", h.DeleteMember).Methods("DELETE")
	s.HandleFunc("/groups/{id}/members/{mid}/attendance", h.MarkAttendance).Methods("POST")
	s.HandleFunc("/groups/{id}/members/{mid}/qr", h.MemberQR).Methods("GET")
	s.HandleFunc("/groups/{id}/attendance", h.GroupAttendance).Methods("GET")

	s.HandleFunc("/active-group", h.GetActiveGroup).Methods("GET")
	s.HandleFunc("/active-group", h.SetActiveGroup).Methods("PUT")

	s.HandleFunc("/capture/qr/start", h.StartQRScan).Methods("POST")
	s.HandleFunc("/capture/qr/frame", h.QRScanFrame).Methods("POST")
	s.HandleFunc("/capture/qr/stop", h.StopQRScan).Methods("POST")
	s.HandleFunc("/capture/face", h.FaceScan).Methods("POST")

	s.HandleFunc("/export", h.Export).Methods("GET")
	s.HandleFunc("/import", h.Import).Methods("POST")
	s.Handle("/data", auth.RequireRole(http.HandlerFunc(h.ClearData), models.RoleAdmin)).Methods("DELETE")

	return r
}
