// Package capture drives the camera-based attendance flows. A capture run
// acquires a camera stream, applies exactly one detection strategy (QR
// decode or face presence) and, on success, writes a single attendance
// record through the store.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// Frame is one captured camera frame. Its encoding is an agreement between
// the Camera and the Decoder/Detector injected alongside it.
type Frame []byte

// Stream is an open camera feed. Close must stop the underlying device.
type Stream interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// Camera acquires a live stream. Open failures distinguish a denied
// permission from an unavailable device via ErrCameraDenied and
// ErrCameraUnavailable.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Decoder extracts QR payload text from a frame. ok is false when the
// frame holds no decodable code.
type Decoder interface {
	Decode(frame Frame) (text string, ok bool)
}

// Detector reports whether a face is present in a frame. This is presence
// detection only; it never establishes whose face it is.
type Detector interface {
	FacePresent(ctx context.Context, frame Frame) (bool, error)
}

var (
	// ErrCameraDenied means the user refused camera access.
	ErrCameraDenied = errors.New("camera access denied")
	// ErrCameraUnavailable means no usable camera device was found.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoActiveGroup means a capture flow started without a selected group.
	ErrNoActiveGroup = errors.New("no active group selected")
	// ErrUnknownMember means a decoded marker names a member that is not in
	// the active group. Scanning continues after this error.
	ErrUnknownMember = errors.New("member not in active group")
)

// State is the position of a capture flow in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequestingCamera
	StateStreaming
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingCamera:
		return "requesting-camera"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is the single resolution of a capture run.
type Result struct {
	Matched  bool   `json:"matched"`
	MemberID string `json:"memberId,omitempty"`
}

// withStream opens the camera and runs fn against the stream. The stream is
// closed on every exit path, including a panic inside fn, so a failed
// detection can never leak an open camera handle.
func withStream(ctx context.Context, cam Camera, fn func(Stream) (Result, error)) (res Result, err error) {
	stream, err := cam.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrCameraDenied) || errors.Is(err, ErrCameraUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close camera stream: %w", closeErr)
		}
	}()
	return fn(stream)
}
