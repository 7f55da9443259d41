// Package session persists the per-project generation state: the most
// recent image, the chosen output directory, and an append-only history.
// The file lives in the working directory, so each project keeps its own
// session, and deleting the file resets everything.
//
// There is no locking. The tool assumes one interactive invocation per
// directory at a time; concurrent writers can lose updates.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const FileName = ".imagegen-session.json"

type GenerationRecord struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output"`
	Timestamp string `json:"timestamp"`
}

type Session struct {
	CurrentImage string             `json:"current_image"`
	OutputDir    string             `json:"output_dir"`
	History      []GenerationRecord `json:"history"`
}

func NewSession() *Session {
	return &Session{History: []GenerationRecord{}}
}

// Record points the session at a freshly saved image and appends the
// matching history entry. History is append-only; earlier records are
// never touched.
func (s *Session) Record(rec GenerationRecord) {
	s.CurrentImage = rec.Output
	s.History = append(s.History, rec)
}

// Last returns the most recent generation record.
func (s *Session) Last() (GenerationRecord, bool) {
	if len(s.History) == 0 {
		return GenerationRecord{}, false
	}
	return s.History[len(s.History)-1], true
}

type Store struct {
	path string
}

func NewStore() (*Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return NewStoreWithDir(cwd), nil
}

func NewStoreWithDir(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the session file, returning a fresh empty session when no
// file exists yet.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSession(), nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	sess := NewSession()
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if sess.History == nil {
		sess.History = []GenerationRecord{}
	}
	return sess, nil
}

// Save replaces the whole document. Pretty-printed so the file stays
// inspectable by hand.
func (s *Store) Save(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the session file. Removing an already-absent file is
// not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
