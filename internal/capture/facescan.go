package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rotctrack/internal/models"
	"rotctrack/internal/store"
)

// faceScanNote is written into records produced by the face flow.
const faceScanNote = "Marked via face scan"

// DefaultWarmup is how long the camera streams before the presence check
// runs, giving the device time to expose and focus.
const DefaultWarmup = 500 * time.Millisecond

// FaceScanner marks a pre-selected member present when a face is detected
// in frame. This is a binary presence check, not identity verification.
type FaceScanner struct {
	store  *store.Store
	log    *zap.Logger
	warmup time.Duration

	mu    sync.Mutex
	state State
}

// NewFaceScanner returns a scanner using the given warm-up delay; zero or
// negative means DefaultWarmup.
func NewFaceScanner(st *store.Store, log *zap.Logger, warmup time.Duration) *FaceScanner {
	if warmup <= 0 {
		warmup = DefaultWarmup
	}
	return &FaceScanner{store: st, log: log, warmup: warmup}
}

// State reports where the scanner currently is in the capture lifecycle.
func (s *FaceScanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *FaceScanner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Scan runs one presence check for the pre-selected member of the active
// group. A positive detection writes a present/face record for today; a
// negative one writes nothing and the operator may retry. The camera is
// released on every exit path.
func (s *FaceScanner) Scan(ctx context.Context, cam Camera, det Detector, memberID string) (Result, error) {
	groupID := s.store.ActiveGroup()
	if groupID == "" {
		return Result{}, ErrNoActiveGroup
	}
	// Validate the target before touching the camera; a stale selection
	// should fail fast.
	if _, err := s.store.Member(groupID, memberID); err != nil {
		return Result{}, err
	}

	s.setState(StateRequestingCamera)
	defer s.setState(StateIdle)

	return withStream(ctx, cam, func(stream Stream) (Result, error) {
		s.setState(StateStreaming)

		select {
		case <-time.After(s.warmup):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}

		frame, err := stream.ReadFrame(ctx)
		if err != nil {
			return Result{}, err
		}
		present, err := det.FacePresent(ctx, frame)
		if err != nil {
			return Result{}, err
		}
		if !present {
			s.log.Info("no face detected", zap.String("member_id", memberID))
			return Result{MemberID: memberID}, nil
		}

		s.setState(StateCommitting)
		if _, err := s.store.MarkAttendance(groupID, memberID, models.Today(), models.StatusPresent, faceScanNote, "", models.MethodFace); err != nil {
			return Result{}, err
		}
		s.log.Info("face scan marked attendance",
			zap.String("group_id", groupID),
			zap.String("member_id", memberID))
		return Result{Matched: true, MemberID: memberID}, nil
	})
}
