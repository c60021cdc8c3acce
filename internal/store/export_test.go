package store_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"rotctrack/internal/files"
	"rotctrack/internal/models"
	"rotctrack/internal/store"
)

func TestExportImportRoundTrip(t *testing.T) {
	src, _ := newTestStore(t)
	g, _ := src.AddGroup("Alpha", "first platoon")
	m1, _ := src.AddMember(g.ID, "Cadet One", "one@example.com")
	m2, _ := src.AddMember(g.ID, "Cadet Two", "")
	src.MarkAttendance(g.ID, m1.ID, "2026-08-28", models.StatusPresent, "", "", models.MethodQR)
	src.MarkAttendance(g.ID, m2.ID, "2026-08-28", models.StatusExcused, "", "medical", "")
	src.AddGroup("Bravo", "")

	data, err := src.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var file store.ExportFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if file.Version != store.ExportVersion {
		t.Errorf("version = %q, want %q", file.Version, store.ExportVersion)
	}
	if file.ExportDate.IsZero() {
		t.Error("exportDate not set")
	}

	dst, _ := newTestStore(t)
	if err := dst.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !reflect.DeepEqual(src.Groups(), dst.Groups()) {
		t.Error("imported groups differ from exported groups")
	}
}

func TestImportReplacesWholesale(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddGroup("Doomed", "will be replaced")

	other, _ := newTestStore(t)
	keep, _ := other.AddGroup("Kept", "")
	data, err := other.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if err := s.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("got %d groups after import, want 1", len(groups))
	}
	if _, ok := groups[keep.ID]; !ok {
		t.Error("imported group missing")
	}
	// The active pointer referenced a replaced group and must be cleared.
	if s.ActiveGroup() != "" {
		t.Errorf("active group = %q after import removed it, want empty", s.ActiveGroup())
	}
}

func TestImportRejectsMissingGroups(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddGroup("Survivor", "")

	cases := []struct {
		name string
		data string
	}{
		{"no data key", `{"version":"1.0"}`},
		{"data without groups", `{"version":"1.0","data":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Import([]byte(tc.data)); !errors.Is(err, store.ErrInvalidImport) {
				t.Errorf("Import returned %v, want ErrInvalidImport", err)
			}
		})
	}
	if len(s.Groups()) != 1 {
		t.Error("rejected import still modified the data set")
	}

	if err := s.Import([]byte("not json at all")); err == nil {
		t.Error("Import accepted a non-JSON file")
	}
}

func TestImportPersists(t *testing.T) {
	blobs, err := files.NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore failed: %v", err)
	}
	s := store.New(blobs, zap.NewNop())

	other, _ := newTestStore(t)
	g, _ := other.AddGroup("Imported", "")
	data, _ := other.Export()

	if err := s.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	reloaded := store.New(blobs, zap.NewNop())
	if _, err := reloaded.Group(g.ID); err != nil {
		t.Errorf("imported group not persisted: %v", err)
	}
}
