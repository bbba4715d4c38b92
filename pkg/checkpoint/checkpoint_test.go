package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointManager(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tempDir)

	group := "friends"

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(group, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(group)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.Group != group {
			t.Errorf("Expected group %s, got %s", group, cp.Group)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Group != group {
			t.Errorf("Expected loaded group %s, got %s", group, loaded.Group)
		}
		if loaded.Completed == nil || loaded.Failed == nil {
			t.Error("Expected maps to be initialised")
		}
	})

	t.Run("RecordProgress", func(t *testing.T) {
		mgr, err := NewManager(group, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create(group)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.RecordFailure(cp, "2", errors.New("max retries reached")); err != nil {
			t.Fatalf("Failed to record failure: %v", err)
		}
		if err := mgr.RecordDone(cp, "1", "success"); err != nil {
			t.Fatalf("Failed to record done: %v", err)
		}

		loaded, err := mgr.LoadOrCreate(group)
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.IsDone("1") {
			t.Error("Expected 1 to be done")
		}
		if loaded.IsDone("2") {
			t.Error("Expected failed account to be retried")
		}
		if loaded.Failed["2"] != "max retries reached" {
			t.Errorf("Unexpected failure record %q", loaded.Failed["2"])
		}

		// A later success clears the failure.
		if err := mgr.RecordDone(loaded, "2", "success"); err != nil {
			t.Fatal(err)
		}
		if _, ok := loaded.Failed["2"]; ok {
			t.Error("Expected failure to be cleared")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(group, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create(group); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}

		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Errorf("Expected no checkpoint, got %v, %v", cp, err)
		}
	})

	t.Run("BackupCheckpoint", func(t *testing.T) {
		mgr, err := NewManager(group, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create(group); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if err := mgr.BackupCheckpoint(); err != nil {
			t.Fatalf("Failed to backup checkpoint: %v", err)
		}
		if _, err := os.Stat(mgr.Path() + ".backup"); os.IsNotExist(err) {
			t.Error("Backup file not created")
		}
	})
}

func TestNewManagerInDirSanitisesGroup(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManagerInDir(dir, "close friends/2024", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "close_friends_2024.checkpoint.json")
	if mgr.Path() != want {
		t.Errorf("Expected %s, got %s", want, mgr.Path())
	}
}

func TestGetDataDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir, err := getDataDirectory()
	if err != nil {
		t.Fatalf("Failed to get data directory: %v", err)
	}
	if dir == "" {
		t.Error("Data directory is empty")
	}
}
