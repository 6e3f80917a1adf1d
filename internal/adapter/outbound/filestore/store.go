// Package filestore persists the session slots as a JSON document on disk.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// document is the on-disk layout. Keys match the slot names.
type document struct {
	Credential string          `json:"authToken,omitempty"`
	Principal  json.RawMessage `json:"adminUser,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SlotStore implements session.SlotStore on a single JSON file.
// Writes are atomic (write-tmp-then-rename) and serialized with a mutex
// in-process and an advisory lock on path+".lock" across processes.
type SlotStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a SlotStore for the given file path. The parent directory is
// created with 0700 permissions if missing.
func New(path string, logger *slog.Logger) (*SlotStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &SlotStore{path: path, logger: logger}, nil
}

// Load reads the session file under a shared lock. A missing file yields
// empty slots.
// Warns if the existing file has permissions more open than 0600.
func (s *SlotStore) Load(ctx context.Context) (session.Slots, error) {
	unlock, err := s.lock(false)
	if err != nil {
		return session.Slots{}, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return session.Slots{}, nil
		}
		return session.Slots{}, fmt.Errorf("read session file: %w", err)
	}

	// Skip on Windows where Unix file permission bits are not supported.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("session file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return session.Slots{}, fmt.Errorf("parse session file: %w", err)
	}
	return session.Slots{Credential: doc.Credential, Principal: doc.Principal}, nil
}

// Save writes both slots in one atomic file replacement.
func (s *SlotStore) Save(ctx context.Context, slots session.Slots) error {
	if !slots.Complete() {
		return session.ErrIncompleteSlots
	}
	if !json.Valid(slots.Principal) {
		return fmt.Errorf("principal is not valid JSON")
	}
	return s.write(&document{
		Credential: slots.Credential,
		Principal:  slots.Principal,
		UpdatedAt:  time.Now().UTC(),
	})
}

// Clear removes the session file. A missing file is not an error.
func (s *SlotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	s.logger.Debug("session file removed", "path", s.path)
	return nil
}

// Path returns the configured file path.
func (s *SlotStore) Path() string {
	return s.path
}

// write serializes doc and replaces the file:
//  1. Acquire in-process mutex
//  2. Acquire the exclusive lock on path+".lock"
//  3. Write to path+".tmp" with 0600 permissions, fsync
//  4. Rename path+".tmp" -> path
func (s *SlotStore) write(doc *document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on session file", "error", err)
	}
	s.logger.Debug("session file saved", "path", s.path)
	return nil
}

// lock takes the cross-process lock on path+".lock", shared or exclusive,
// and returns its release function.
func (s *SlotStore) lock(exclusive bool) (func(), error) {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockSlotFile(lockFile, exclusive); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	return func() {
		_ = unlockSlotFile(lockFile)
		_ = lockFile.Close()
	}, nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *SlotStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to session file: %w", err)
	}
	return nil
}

// Compile-time interface verification.
var _ session.SlotStore = (*SlotStore)(nil)
