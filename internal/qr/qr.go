// Package qr encodes and decodes the attendance-marker payload carried in
// member QR codes, and builds render URLs for the third-party QR image
// endpoint.
package qr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MarkerType is the type tag every valid attendance marker carries.
const MarkerType = "rotc-attendance"

// renderEndpoint draws a QR image for arbitrary data passed as a query
// parameter.
const renderEndpoint = "https://api.qrserver.com/v1/create-qr-code/"

// DefaultImageSize is the rendered image edge length in pixels.
const DefaultImageSize = 200

var (
	// ErrNotMarker is returned when a scanned payload is not an
	// attendance marker (wrong type tag, missing member id, or not JSON).
	ErrNotMarker = errors.New("not an attendance marker")
)

// Marker is the JSON payload encoded into a member's QR code.
type Marker struct {
	Type      string    `json:"type"`
	MemberID  string    `json:"memberId"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeMarker returns the QR payload string for a member.
func EncodeMarker(memberID string) (string, error) {
	if memberID == "" {
		return "", errors.New("member id must not be empty")
	}
	data, err := json.Marshal(Marker{
		Type:      MarkerType,
		MemberID:  memberID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal marker: %w", err)
	}
	return string(data), nil
}

// ParseMarker extracts the member id from a scanned payload. Anything that
// is not a well-formed marker yields ErrNotMarker; scanners discard those
// per frame without surfacing them.
func ParseMarker(text string) (string, error) {
	var m Marker
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return "", ErrNotMarker
	}
	if m.Type != MarkerType || m.MemberID == "" {
		return "", ErrNotMarker
	}
	return m.MemberID, nil
}

// ImageURL builds the render-endpoint URL for a payload. size is the image
// edge in pixels; zero means DefaultImageSize.
func ImageURL(data string, size int) string {
	if size <= 0 {
		size = DefaultImageSize
	}
	q := url.Values{}
	q.Set("size", fmt.Sprintf("%dx%d", size, size))
	q.Set("data", data)
	return renderEndpoint + "?" + q.Encode()
}

// FetchImage downloads the rendered QR image for a payload.
func FetchImage(ctx context.Context, client *http.Client, data string, size int) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ImageURL(data, size), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch qr image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
