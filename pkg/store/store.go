package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shopexport/pkg/commerce"
	errs "shopexport/pkg/errors"
)

const (
	unitPrefix = "order-"
	unitExt    = ".json"
)

// Unit is the persisted, self-contained form of one downloaded order: the
// order document plus the sub-resources fetched separately, so the process
// stage never needs the network.
type Unit struct {
	EntityID     int64                  `json:"entity_id"`
	IncrementID  string                 `json:"increment_id"`
	DownloadedAt time.Time              `json:"downloaded_at"`
	Order        *commerce.Order        `json:"order"`
	Transactions []commerce.Transaction `json:"transactions,omitempty"`
	Shipments    []commerce.Shipment    `json:"shipments,omitempty"`
}

// Store persists one file per downloaded order under a cache directory.
// File names are a pure function of the entity id, so writes are
// idempotent and enumeration order is stable.
type Store struct {
	dir string
}

// New creates a unit store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Open returns a store over an existing cache directory; it fails when the
// directory is missing, which the process stage treats as fatal.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindStoreIO, "cache directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("failed to stat cache directory: %w", err)
	}
	if !info.IsDir() {
		return nil, errs.Newf(errs.KindStoreIO, "%s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the unit file name for an entity id.
func FileName(entityID int64) string {
	return fmt.Sprintf("%s%d%s", unitPrefix, entityID, unitExt)
}

// IsUnitFile reports whether name follows the unit naming scheme.
func IsUnitFile(name string) bool {
	return strings.HasPrefix(name, unitPrefix) && strings.HasSuffix(name, unitExt)
}

// Exists checks whether a unit for the entity id is already persisted.
func (s *Store) Exists(entityID int64) bool {
	_, err := os.Stat(filepath.Join(s.dir, FileName(entityID)))
	return err == nil
}

// Put persists a unit atomically: the document is written to a temporary
// file and renamed into place, so a crash never leaves a half-written unit
// visible to Exists or List.
func (s *Store) Put(unit *Unit) error {
	filename := filepath.Join(s.dir, FileName(unit.EntityID))
	tempFile := filename + ".tmp"

	file, err := os.Create(tempFile)
	if err != nil {
		return errs.Newf(errs.KindStoreIO, "failed to create temporary unit file: %v", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(unit); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errs.Newf(errs.KindStoreIO, "failed to encode unit: %v", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errs.Newf(errs.KindStoreIO, "failed to sync unit file: %v", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return errs.Newf(errs.KindStoreIO, "failed to close unit file: %v", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return errs.Newf(errs.KindStoreIO, "failed to rename unit file: %v", err)
	}

	return nil
}

// Get loads a unit by file name. A missing file returns a not-found error;
// an undecodable file returns a data-shape error. Both are reported by the
// caller, not fatal.
func (s *Store) Get(name string) (*Unit, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "unit %s not found", name)
		}
		return nil, errs.Newf(errs.KindStoreIO, "failed to read unit %s: %v", name, err)
	}

	var unit Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		return nil, errs.Newf(errs.KindDataShape, "unit %s is not valid JSON: %v", name, err)
	}
	if unit.Order == nil {
		return nil, errs.Newf(errs.KindDataShape, "unit %s has no order document", name)
	}

	return &unit, nil
}

// List returns the unit file names sorted lexicographically. The sort
// order is the single source of truth for process-stage resumption, so it
// must be deterministic for a given set of contents.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Newf(errs.KindStoreIO, "failed to read cache directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsUnitFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// Count returns the number of persisted units.
func (s *Store) Count() (int, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Delete removes a consumed unit by file name. Failure is reported so the
// caller can log a warning; the unit stays behind for a later cleanup pass.
func (s *Store) Delete(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return errs.Newf(errs.KindStoreIO, "failed to delete unit %s: %v", name, err)
	}
	return nil
}
