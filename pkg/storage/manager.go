package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"instaprofiler/pkg/models"
)

const archiveExt = ".json"

// ArchivedSnapshot is the on-disk form of one account's snapshot.
type ArchivedSnapshot struct {
	ScrapeID string                      `json:"scrape_id"`
	ScrapeTS time.Time                   `json:"scrape_ts"`
	Snapshot *models.FollowGraphSnapshot `json:"snapshot"`
}

// Manager archives follow-graph snapshots as JSON files, one directory per
// account.
type Manager struct {
	outputDir string
	mu        sync.Mutex
}

// NewManager creates a snapshot archive rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path returns where a snapshot of username taken at ts is stored.
func (m *Manager) Path(username, scrapeID string, ts time.Time) string {
	name := fmt.Sprintf("%s_%s%s", ts.UTC().Format("20060102T150405Z"), scrapeID, archiveExt)
	return filepath.Join(m.outputDir, username, name)
}

// Save writes snap atomically and returns its path.
func (m *Manager) Save(snap *models.FollowGraphSnapshot, scrapeID string, ts time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filename := m.Path(snap.User.Username, scrapeID, ts)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("failed to create account directory: %w", err)
	}

	// Create temporary file first
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	err = enc.Encode(ArchivedSnapshot{ScrapeID: scrapeID, ScrapeTS: ts.UTC(), Snapshot: snap})
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return filename, nil
}

// Load reads one archived snapshot.
func Load(path string) (*ArchivedSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var a ArchivedSnapshot
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if a.Snapshot == nil {
		return nil, fmt.Errorf("snapshot %s: missing snapshot body", path)
	}
	return &a, nil
}

// List returns archived snapshot paths of username, oldest first.
func (m *Manager) List(username string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.outputDir, username))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), archiveExt) {
			paths = append(paths, filepath.Join(m.outputDir, username, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Latest loads the newest snapshot of every archived account.
func (m *Manager) Latest() ([]*ArchivedSnapshot, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var out []*ArchivedSnapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		paths, err := m.List(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			continue
		}
		a, err := Load(paths[len(paths)-1])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetOutputDir returns the archive root
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
