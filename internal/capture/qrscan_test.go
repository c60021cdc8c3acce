package capture_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap"

	"rotctrack/internal/capture"
	"rotctrack/internal/files"
	"rotctrack/internal/models"
	"rotctrack/internal/qr"
	"rotctrack/internal/store"
)

// fakeStream serves a fixed list of frames, then reports end of stream. It
// records whether it was closed so tests can assert camera release.
type fakeStream struct {
	mu     sync.Mutex
	frames []capture.Frame
	closed bool
}

func (s *fakeStream) ReadFrame(ctx context.Context) (capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCamera struct {
	stream *fakeStream
	err    error
	opened bool
}

func (c *fakeCamera) Open(ctx context.Context) (capture.Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.opened = true
	return c.stream, nil
}

// textDecoder treats each frame's bytes as already-decoded QR text; empty
// frames decode to nothing.
type textDecoder struct{}

func (textDecoder) Decode(frame capture.Frame) (string, bool) {
	if len(frame) == 0 {
		return "", false
	}
	return string(frame), true
}

func newScanFixture(t *testing.T) (*store.Store, models.Group, models.Member) {
	t.Helper()
	blobs, err := files.NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore failed: %v", err)
	}
	s := store.New(blobs, zap.NewNop())
	g, err := s.AddGroup("Alpha", "")
	if err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	m, err := s.AddMember(g.ID, "Cadet One", "")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	return s, g, m
}

func TestQRScanMarksOnceAndDeduplicates(t *testing.T) {
	s, g, m := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	payload, err := qr.EncodeMarker(m.ID)
	if err != nil {
		t.Fatalf("EncodeMarker failed: %v", err)
	}

	res, err := scanner.HandleText(payload)
	if err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	if !res.Matched || res.MemberID != m.ID {
		t.Fatalf("result = %+v, want matched %s", res, m.ID)
	}

	member, err := s.Member(g.ID, m.ID)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	rec, ok := member.Attendance[models.Today()]
	if !ok {
		t.Fatal("no record written for today")
	}
	if rec.Status != models.StatusPresent {
		t.Errorf("status = %q, want present", rec.Status)
	}
	if rec.Method != models.MethodQR {
		t.Errorf("method = %q, want qr", rec.Method)
	}
	firstWrite := rec.Timestamp

	// Same marker again in the same session: no additional write.
	res, err = scanner.HandleText(payload)
	if err != nil {
		t.Fatalf("second HandleText failed: %v", err)
	}
	if res.Matched {
		t.Error("duplicate scan reported as a fresh match")
	}
	member, _ = s.Member(g.ID, m.ID)
	if got := member.Attendance[models.Today()].Timestamp; !got.Equal(firstWrite) {
		t.Error("duplicate scan rewrote the record")
	}

	// After Reset the session is fresh and the member can be marked again.
	scanner.Reset()
	res, err = scanner.HandleText(payload)
	if err != nil {
		t.Fatalf("HandleText after Reset failed: %v", err)
	}
	if !res.Matched {
		t.Error("scan after Reset did not mark")
	}
}

func TestQRScanDiscardsMalformedPayloads(t *testing.T) {
	s, g, m := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	for _, text := range []string{
		"not json",
		`{"type":"concert-ticket","memberId":"` + m.ID + `"}`,
		`{"type":"rotc-attendance"}`,
		"",
	} {
		res, err := scanner.HandleText(text)
		if err != nil {
			t.Errorf("HandleText(%q) surfaced error %v, want silent discard", text, err)
		}
		if res.Matched {
			t.Errorf("HandleText(%q) matched", text)
		}
	}

	member, _ := s.Member(g.ID, m.ID)
	if len(member.Attendance) != 0 {
		t.Error("malformed payloads produced attendance records")
	}
}

func TestQRScanUnknownMember(t *testing.T) {
	s, _, _ := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	payload, _ := qr.EncodeMarker("ghost")
	if _, err := scanner.HandleText(payload); !errors.Is(err, capture.ErrUnknownMember) {
		t.Errorf("HandleText returned %v, want ErrUnknownMember", err)
	}
}

func TestQRScanNoActiveGroup(t *testing.T) {
	s, g, m := newScanFixture(t)
	if err := s.ClearActiveGroup(); err != nil {
		t.Fatalf("ClearActiveGroup failed: %v", err)
	}
	scanner := capture.NewQRScanner(s, zap.NewNop())

	payload, _ := qr.EncodeMarker(m.ID)
	if _, err := scanner.HandleText(payload); !errors.Is(err, capture.ErrNoActiveGroup) {
		t.Errorf("HandleText returned %v, want ErrNoActiveGroup", err)
	}
	member, _ := s.Member(g.ID, m.ID)
	if len(member.Attendance) != 0 {
		t.Error("scan without active group wrote a record")
	}
}

func TestQRScanRunStreamsUntilMatch(t *testing.T) {
	s, _, m := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	payload, _ := qr.EncodeMarker(m.ID)
	// An undecodable frame, then a decodable non-marker, then the marker.
	stream := &fakeStream{frames: []capture.Frame{
		nil,
		capture.Frame("random sticker"),
		capture.Frame(payload),
	}}

	res, err := scanner.Run(context.Background(), &fakeCamera{stream: stream}, textDecoder{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Matched || res.MemberID != m.ID {
		t.Errorf("result = %+v, want match for %s", res, m.ID)
	}
	if !stream.wasClosed() {
		t.Error("camera stream not released after a successful run")
	}
	if got := scanner.State(); got != capture.StateIdle {
		t.Errorf("state = %v after run, want idle", got)
	}
}

func TestQRScanRunReleasesCameraOnError(t *testing.T) {
	s, _, _ := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	// Stream runs dry without ever producing a marker: ReadFrame errors.
	stream := &fakeStream{}
	_, err := scanner.Run(context.Background(), &fakeCamera{stream: stream}, textDecoder{})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v, want the stream error", err)
	}
	if !stream.wasClosed() {
		t.Error("camera stream not released on the error path")
	}
}

func TestQRScanRunCameraDenied(t *testing.T) {
	s, _, _ := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	_, err := scanner.Run(context.Background(), &fakeCamera{err: capture.ErrCameraDenied}, textDecoder{})
	if !errors.Is(err, capture.ErrCameraDenied) {
		t.Errorf("Run returned %v, want ErrCameraDenied", err)
	}
}

func TestQRScanRunCancellation(t *testing.T) {
	s, _, _ := newScanFixture(t)
	scanner := capture.NewQRScanner(s, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := &fakeStream{frames: []capture.Frame{nil, nil, nil}}
	_, err := scanner.Run(ctx, &fakeCamera{stream: stream}, textDecoder{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if !stream.wasClosed() {
		t.Error("camera stream not released on cancellation")
	}
}
