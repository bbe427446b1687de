// Package history persists one JSON record per ask or sql run.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

var (
	ErrNotFound  = errors.New("history record not found")
	ErrAmbiguous = errors.New("history id prefix matches more than one record")
)

const recordExt = ".json"

// Record is a single pipeline run.
type Record struct {
	ID        string          `json:"id"`
	Command   string          `json:"command"`
	Question  string          `json:"question,omitempty"`
	SQL       string          `json:"sql"`
	Driver    string          `json:"driver"`
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Tone      string          `json:"tone,omitempty"`
	Columns   []string        `json:"columns,omitempty"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated,omitempty"`
	Analysis  json.RawMessage `json:"analysis,omitempty"`
	Narrative string          `json:"narrative,omitempty"`
	Chart     string          `json:"chart,omitempty"`
	ChartPath string          `json:"chart_path,omitempty"`
	Usage     ai.Usage        `json:"usage"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SetAnalysis stores the analyzer output as raw JSON so records round-trip
// without decoding the ordered value-count maps.
func (r *Record) SetAnalysis(a *analysis.Analysis) error {
	if a == nil {
		r.Analysis = nil
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	r.Analysis = b
	return nil
}

// Store keeps records as <dir>/<id>.json.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

// Save assigns an ID and timestamp when missing and writes the record atomically.
func (s *Store) Save(r *Record) error {
	if r == nil {
		return errors.New("nil history record")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid record id %q: %w", r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(s.path(r.ID), data)
}

func (s *Store) path(id string) string { return filepath.Join(s.dir, id+recordExt) }

// Get loads a record by full ID or unique prefix.
func (s *Store) Get(id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if r, err := s.load(s.path(id)); err == nil {
		return r, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	var match []string
	for _, cand := range ids {
		if strings.HasPrefix(cand, id) {
			match = append(match, cand)
		}
	}
	switch len(match) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	case 1:
		return s.load(s.path(match[0]))
	}
	return nil, fmt.Errorf("%w: %q", ErrAmbiguous, id)
}

// List returns all records, newest first. Unreadable files are skipped.
func (s *Store) List() ([]*Record, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.load(s.path(id))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a record by full ID or unique prefix and returns its full ID.
func (s *Store) Delete(id string) (string, error) {
	r, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if err := os.Remove(s.path(r.ID)); err != nil {
		return "", fmt.Errorf("remove record: %w", err)
	}
	return r.ID, nil
}

func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	return ids, nil
}

func (s *Store) load(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}
