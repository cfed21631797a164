package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/hpcode/version"
	"gopkg.in/yaml.v3"
)

// Store keeps one YAML file per session under a base directory (default
// ~/.hpcode/sessions/<jobid>.yml). Writes are atomic (temp file + rename) so
// a concurrent lister never sees a torn record.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir, creating the directory if
// needed. An empty baseDir selects the default under the home directory.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".hpcode", "sessions")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.baseDir }

func (s *Store) path(jobID string) string {
	return filepath.Join(s.baseDir, jobID+".yml")
}

// Write records a session atomically, keyed by job ID.
func (s *Store) Write(jobID string, rec Record) error {
	data, err := yaml.Marshal(map[string]Record{jobID: rec})
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	f, err := os.CreateTemp(s.baseDir, ".session_*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	tmp := f.Name()

	header := fmt.Sprintf("# hpcode v%s\n", version.Version)
	if _, err := f.WriteString(header); err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write session record: %w", err)
	}

	if err := os.Rename(tmp, s.path(jobID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit session record: %w", err)
	}
	return nil
}

// Load reads one session record. Missing records return ok=false: a job may
// be running before its address was ever captured.
func (s *Store) Load(jobID string) (Record, bool, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read session record: %w", err)
	}

	var m map[string]Record
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Record{}, false, fmt.Errorf("parse session record %s: %w", jobID, err)
	}
	rec, ok := m[jobID]
	return rec, ok, nil
}

// JobIDs returns the job IDs with stored records.
func (s *Store) JobIDs() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list session store: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yml"))
	}
	return ids, nil
}

// Remove deletes a session record. Removing an absent record is not an error.
func (s *Store) Remove(jobID string) error {
	if err := os.Remove(s.path(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session record: %w", err)
	}
	return nil
}
