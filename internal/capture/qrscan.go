package capture

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"rotctrack/internal/models"
	"rotctrack/internal/qr"
	"rotctrack/internal/store"
)

// qrScanNote is written into records produced by the QR flow.
const qrScanNote = "Marked via QR code"

// QRScanner marks members present as their attendance markers are scanned.
// Each member is written at most once per scanner session; Reset starts a
// fresh session.
type QRScanner struct {
	store *store.Store
	log   *zap.Logger

	mu      sync.Mutex
	scanned map[string]struct{}
	state   State
}

// NewQRScanner returns a scanner with an empty session.
func NewQRScanner(st *store.Store, log *zap.Logger) *QRScanner {
	return &QRScanner{
		store:   st,
		log:     log,
		scanned: map[string]struct{}{},
	}
}

// Reset clears the already-scanned set. Call it when the scan dialog is
// reopened so the next session can mark the same members again.
func (s *QRScanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanned = map[string]struct{}{}
	s.state = StateIdle
}

// State reports where the scanner currently is in the capture lifecycle.
func (s *QRScanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *QRScanner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// HandleText processes one decoded QR payload. Payloads that are not
// attendance markers are discarded without error, matching the per-frame
// behavior of a continuous scan. A marker for a member outside the active
// group returns ErrUnknownMember; the caller keeps scanning. A member
// already scanned this session yields no additional write.
func (s *QRScanner) HandleText(text string) (Result, error) {
	groupID := s.store.ActiveGroup()
	if groupID == "" {
		return Result{}, ErrNoActiveGroup
	}

	memberID, err := qr.ParseMarker(text)
	if err != nil {
		return Result{}, nil
	}

	if _, err := s.store.Member(groupID, memberID); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) || errors.Is(err, store.ErrGroupNotFound) {
			return Result{}, ErrUnknownMember
		}
		return Result{}, err
	}

	s.mu.Lock()
	if _, dup := s.scanned[memberID]; dup {
		s.mu.Unlock()
		return Result{MemberID: memberID}, nil
	}
	s.mu.Unlock()

	s.setState(StateCommitting)
	defer s.setState(StateStreaming)
	if _, err := s.store.MarkAttendance(groupID, memberID, models.Today(), models.StatusPresent, qrScanNote, "", models.MethodQR); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	s.scanned[memberID] = struct{}{}
	s.mu.Unlock()

	s.log.Info("qr scan marked attendance",
		zap.String("group_id", groupID),
		zap.String("member_id", memberID))
	return Result{Matched: true, MemberID: memberID}, nil
}

// Run streams frames from the camera until one marker write succeeds or
// ctx is cancelled. Unknown-member markers are logged and scanning
// continues; the camera is released on every exit path.
func (s *QRScanner) Run(ctx context.Context, cam Camera, dec Decoder) (Result, error) {
	if s.store.ActiveGroup() == "" {
		return Result{}, ErrNoActiveGroup
	}

	s.setState(StateRequestingCamera)
	defer s.setState(StateIdle)

	return withStream(ctx, cam, func(stream Stream) (Result, error) {
		s.setState(StateStreaming)
		for {
			frame, err := stream.ReadFrame(ctx)
			if err != nil {
				return Result{}, err
			}
			text, ok := dec.Decode(frame)
			if !ok {
				continue
			}
			res, err := s.HandleText(text)
			switch {
			case errors.Is(err, ErrUnknownMember):
				s.log.Warn("scanned marker for unknown member")
				continue
			case err != nil:
				return Result{}, err
			case res.Matched:
				return res, nil
			}
		}
	})
}
