package logstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pynezz/heimdall/internal/engine"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestImportAndList(t *testing.T) {
	store := testStore(t)
	src := writeSource(t, "trail.json", `{"Records": []}`)

	info, err := store.Import(src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if info.Filename != "trail.json" || info.SizeBytes == 0 {
		t.Errorf("Import info = %+v", info)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "trail.json" {
		t.Fatalf("List = %+v, want trail.json", files)
	}
	// The original stays in place; the store holds a copy.
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source file should remain after import: %v", err)
	}
}

func TestImportRejections(t *testing.T) {
	store := testStore(t)

	if _, err := store.Import(writeSource(t, "notes.txt", "hi")); err == nil {
		t.Error("Import should reject non-.json files")
	}
	if _, err := store.Import(filepath.Join(t.TempDir(), "gone.json")); err == nil {
		t.Error("Import should reject missing files")
	}
	if _, err := store.Import(writeSource(t, "metadata.json", "{}")); err == nil {
		t.Error("Import should reject the reserved metadata name")
	}

	src := writeSource(t, "dup.json", "{}")
	if _, err := store.Import(src); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := store.Import(src); err == nil {
		t.Error("Import should reject an already registered name")
	}
}

func TestImportMany(t *testing.T) {
	store := testStore(t)

	paths := []string{
		writeSource(t, "a.json", "{}"),
		writeSource(t, "b.json", "{}"),
		filepath.Join(t.TempDir(), "missing.json"),
	}

	summary := store.ImportMany(paths)
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 of 3", summary)
	}
	if len(summary.Imported) != 2 || len(summary.Errors) != 1 {
		t.Errorf("summary lists = %+v", summary)
	}
}

func TestListSortedAndExcludesMetadata(t *testing.T) {
	store := testStore(t)

	for _, name := range []string{"zeta.json", "alpha.json"} {
		if _, err := store.Import(writeSource(t, name, "{}")); err != nil {
			t.Fatalf("Import(%s): %v", name, err)
		}
	}
	if err := store.SetFormat("alpha.json", engine.FormatCloudTrail); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("List = %+v, want 2 entries with metadata.json hidden", files)
	}
	if files[0].Filename != "alpha.json" || files[1].Filename != "zeta.json" {
		t.Errorf("List order = %q, %q", files[0].Filename, files[1].Filename)
	}
	if files[0].Format != engine.FormatCloudTrail {
		t.Errorf("alpha.json format = %q, want cloudtrail", files[0].Format)
	}
	if files[1].Format != engine.FormatUnknown {
		t.Errorf("zeta.json format = %q, want unset", files[1].Format)
	}
}

func TestSetFormat(t *testing.T) {
	store := testStore(t)
	if _, err := store.Import(writeSource(t, "log.json", "{}")); err != nil {
		t.Fatalf("Import: %v", err)
	}

	if err := store.SetFormat("log.json", engine.FormatFlatJSON); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}
	if err := store.SetFormat("absent.json", engine.FormatFlatJSON); err == nil {
		t.Error("SetFormat on an unregistered file should fail")
	}

	// Clearing back to auto-detect.
	if err := store.SetFormat("log.json", engine.FormatUnknown); err != nil {
		t.Fatalf("SetFormat clear: %v", err)
	}
	files, _ := store.List()
	if files[0].Format != engine.FormatUnknown {
		t.Errorf("format after clear = %q, want unset", files[0].Format)
	}
}

func TestDelete(t *testing.T) {
	store := testStore(t)
	if _, err := store.Import(writeSource(t, "log.json", "{}")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := store.SetFormat("log.json", engine.FormatFlatJSON); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}

	if err := store.Delete("log.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	files, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("List after delete = %+v, want empty", files)
	}

	if err := store.Delete("log.json"); err == nil {
		t.Error("Delete of a missing file should fail")
	}
	if err := store.Delete("../escape.json"); err == nil {
		t.Error("Delete must reject paths outside the store")
	}
}

func TestSources(t *testing.T) {
	store := testStore(t)
	if _, err := store.Import(writeSource(t, "a.json", "{}")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := store.SetFormat("a.json", engine.FormatCloudTrail); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}

	sources, err := store.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("Sources = %+v, want 1", sources)
	}
	if sources[0].Name != "a.json" || sources[0].Format != engine.FormatCloudTrail {
		t.Errorf("Sources[0] = %+v", sources[0])
	}
	if sources[0].Path == "" {
		t.Error("source path is empty")
	}
}
