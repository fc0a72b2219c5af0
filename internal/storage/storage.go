// Package storage persists run metadata as one JSON file per run. Only
// metadata is written: the conversation itself belongs to the caller and
// never lands on disk here.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrStorageWrite      = errors.New("failed to write run")
	ErrInvalidRunID      = errors.New("invalid run id")
	ErrRunFileTooLarge   = errors.New("run file too large")
	ErrSymlinkNotAllowed = errors.New("symlinks not allowed for run files")
)

const maxRunFileSize = 10 * 1024 * 1024 // 10MB

type Storage interface {
	Save(snap domain.RunSnapshot) error
	Load(id string) (domain.RunSnapshot, error)
	Delete(id string) error
	List() ([]domain.RunSnapshot, error)
}

type runData struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	Prompt     string    `json:"prompt"`
	WorkingDir string    `json:"working_dir,omitempty"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
}

type JSONFileStorage struct {
	baseDir string
	mu      sync.RWMutex
}

var runIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateRunID(id string) error {
	if !runIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %s", ErrInvalidRunID, id)
	}
	return nil
}

func NewJSONFileStorage(baseDir string) (*JSONFileStorage, error) {
	runsDir := filepath.Join(baseDir, "runs")
	if err := os.MkdirAll(runsDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	// Tighten permissions if the directory already existed.
	info, err := os.Stat(runsDir)
	if err == nil {
		if info.Mode().Perm()&0o077 != 0 {
			_ = os.Chmod(runsDir, 0o700)
		}
	}

	return &JSONFileStorage{baseDir: baseDir}, nil
}

func (s *JSONFileStorage) runPath(id string) string {
	return filepath.Join(s.baseDir, "runs", id+".json")
}

func (s *JSONFileStorage) Save(snap domain.RunSnapshot) error {
	if err := validateRunID(snap.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jsonData, err := json.MarshalIndent(snapshotToData(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	runsDir := filepath.Join(s.baseDir, "runs")
	f, err := os.CreateTemp(runsDir, snap.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	tmpName := f.Name()
	_ = os.Chmod(tmpName, 0o600)

	defer func() {
		if f != nil {
			f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := f.Write(jsonData); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Close(); err != nil {
		f = nil
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	f = nil

	if err := os.Rename(tmpName, s.runPath(snap.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	// Sync the directory so the rename survives a crash.
	df, err := os.Open(runsDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	return nil
}

func (s *JSONFileStorage) Load(id string) (domain.RunSnapshot, error) {
	if err := validateRunID(id); err != nil {
		return domain.RunSnapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadUnlocked(id)
}

func (s *JSONFileStorage) Delete(id string) error {
	if err := validateRunID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrRunNotFound
		}
		return fmt.Errorf("failed to delete run file: %w", err)
	}

	return nil
}

// ListError aggregates per-file failures from List. The successfully
// loaded runs are still returned alongside it.
type ListError struct {
	Errors []error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("failed to load %d runs", len(e.Errors))
}

func (s *JSONFileStorage) List() ([]domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runsDir := filepath.Join(s.baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.RunSnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	runs := make([]domain.RunSnapshot, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-5]
		if err := validateRunID(id); err != nil {
			continue
		}

		snap, err := s.loadUnlocked(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %s: %w", id, err))
			continue
		}
		runs = append(runs, snap)
	}

	if len(errs) > 0 {
		return runs, &ListError{Errors: errs}
	}

	return runs, nil
}

func (s *JSONFileStorage) loadUnlocked(id string) (domain.RunSnapshot, error) {
	filePath := s.runPath(id)

	info, err := os.Lstat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.RunSnapshot{}, ErrRunNotFound
		}
		return domain.RunSnapshot{}, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s", ErrSymlinkNotAllowed, id)
	}

	if info.Size() > maxRunFileSize {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s (%d bytes)", ErrRunFileTooLarge, id, info.Size())
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return domain.RunSnapshot{}, err
	}

	var rd runData
	if err := json.Unmarshal(data, &rd); err != nil {
		return domain.RunSnapshot{}, err
	}

	return dataToSnapshot(&rd)
}

func snapshotToData(snap domain.RunSnapshot) *runData {
	return &runData{
		ID:         snap.ID,
		Provider:   snap.Provider,
		Model:      snap.Model,
		Prompt:     snap.Prompt,
		WorkingDir: snap.WorkingDir,
		State:      snap.State.String(),
		CreatedAt:  snap.CreatedAt,
		UpdatedAt:  snap.UpdatedAt,
		Result:     snap.Result,
		Error:      snap.Error,
		ErrorKind:  string(snap.ErrorKind),
	}
}

func dataToSnapshot(data *runData) (domain.RunSnapshot, error) {
	state, err := domain.ParseRunState(data.State)
	if err != nil {
		return domain.RunSnapshot{}, err
	}

	return domain.RunSnapshot{
		ID:         data.ID,
		Provider:   data.Provider,
		Model:      data.Model,
		Prompt:     data.Prompt,
		WorkingDir: data.WorkingDir,
		State:      state,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
		Result:     data.Result,
		Error:      data.Error,
		ErrorKind:  domain.ErrorKind(data.ErrorKind),
	}, nil
}
