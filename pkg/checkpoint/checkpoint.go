package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shopexport/pkg/logger"
)

// Stage identifies which pipeline phase owns a checkpoint
type Stage string

const (
	StageDownload Stage = "download"
	StageProcess  Stage = "process"
)

// ErrorEntry is one non-fatal error recorded during a run
type ErrorEntry struct {
	Key       string    `json:"key"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint represents the persisted progress of one pipeline stage.
// Counts accumulate across resumed runs; the cursor (LastPage for the
// download stage, LastUnit for the process stage) is what resumption
// actually trusts, since counts can undercount after a mid-page crash.
type Checkpoint struct {
	Stage          Stage        `json:"stage"`
	TotalExpected  int          `json:"total_expected"`
	ProcessedCount int          `json:"processed_count"`
	TotalLines     int          `json:"total_lines,omitempty"`
	LastPage       int          `json:"last_page,omitempty"`
	LastUnit       string       `json:"last_unit,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	Completed      bool         `json:"completed"`
	Errors         []ErrorEntry `json:"errors"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Version        int          `json:"version"`
}

// RecordError appends a non-fatal error to the checkpoint's error list
func (cp *Checkpoint) RecordError(key, message string) {
	cp.Errors = append(cp.Errors, ErrorEntry{
		Key:       key,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// MarkCompleted sets the completion flag exactly once
func (cp *Checkpoint) MarkCompleted() {
	if cp.Completed {
		return
	}
	now := time.Now()
	cp.Completed = true
	cp.CompletedAt = &now
}

// Manager handles checkpoint persistence for one stage
type Manager struct {
	checkpointPath string
	stage          Stage
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the given stage, storing the
// checkpoint file next to the units in the cache directory.
func NewManager(cacheDir string, stage Stage) (*Manager, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(cacheDir, fmt.Sprintf("%s.checkpoint.json", stage)),
		stage:          stage,
		logger:         logger.GetLogger(),
	}, nil
}

// Create creates and persists a fresh checkpoint
func (m *Manager) Create() (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		Stage:     m.stage,
		StartedAt: time.Now(),
		Errors:    []ErrorEntry{},
		Version:   1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint created", map[string]interface{}{
		"stage": string(m.stage),
		"path":  m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint, returning nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"stage":           string(checkpoint.Stage),
		"processed_count": checkpoint.ProcessedCount,
		"completed":       checkpoint.Completed,
		"updated_at":      checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	// Atomically replace the old checkpoint file
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"stage":           string(checkpoint.Stage),
		"processed_count": checkpoint.ProcessedCount,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint deleted", map[string]interface{}{
		"stage": string(m.stage),
	})
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string {
	return m.checkpointPath
}
