package api

import (
	"net/http"

	"rotctrack/internal/capture"
)

// StartQRScan opens a fresh QR capture session. Starting while one is open
// implicitly resets it; the camera is exclusive, so there is never more
// than one live session.
func (h *Handler) StartQRScan(w http.ResponseWriter, r *http.Request) {
	if h.Store.ActiveGroup() == "" {
		ErrorResponse(w, capture.ErrNoActiveGroup)
		return
	}
	h.QRScanner.Reset()
	JSONResponse(w, http.StatusOK, map[string]string{"state": capture.StateStreaming.String()})
}

type qrFrameRequest struct {
	Text string `json:"text"`
}

// QRScanFrame feeds one decoded QR payload into the open session. Payloads
// that are not attendance markers produce an unmatched result; a marker
// for an unknown member returns 404 and the session stays open.
func (h *Handler) QRScanFrame(w http.ResponseWriter, r *http.Request) {
	var req qrFrameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.QRScanner.HandleText(req.Text)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, result)
}

// StopQRScan closes the session and clears its deduplication set.
func (h *Handler) StopQRScan(w http.ResponseWriter, r *http.Request) {
	h.QRScanner.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type faceScanRequest struct {
	MemberID string `json:"memberId"`
}

// FaceScan runs one face-presence check for the pre-selected member using
// the server's camera. Without a configured camera and detector the
// endpoint reports the camera as unavailable.
func (h *Handler) FaceScan(w http.ResponseWriter, r *http.Request) {
	var req faceScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if h.Camera == nil || h.Detector == nil {
		ErrorResponse(w, capture.ErrCameraUnavailable)
		return
	}
	result, err := h.FaceScanner.Scan(r.Context(), h.Camera, h.Detector, req.MemberID)
	if err != nil {
		ErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, result)
}
