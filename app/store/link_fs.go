package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	log "github.com/go-pkgz/lgr"
)

// LinkFS keeps each short link as links/<code>.json. Saves go through
// rename-from-temp plus a per-code lock; a concurrent resolver may lose a
// click increment (last writer wins) but never reads a torn document.
type LinkFS struct {
	root string
	lock *keyedLock
}

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// NewLinkFS makes a link engine rooted at dir, creating it if needed.
func NewLinkFS(dir string) (*LinkFS, error) {
	root := filepath.Join(dir, "links")
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("make links dir %s: %w", root, err)
	}
	log.Printf("[INFO] link store at %s", root)
	return &LinkFS{root: root, lock: newKeyedLock()}, nil
}

// Exists reports if a code is already taken. Expired records freed by lazy
// deletion make their code available again.
func (s *LinkFS) Exists(code string) bool {
	_, err := os.Stat(s.path(code))
	return err == nil
}

// Save persists a link record.
func (s *LinkFS) Save(link *Link) error {
	if !codeRe.MatchString(link.Code) {
		return ErrSaveRejected
	}
	s.lock.lock(link.Code)
	defer s.lock.unlock(link.Code)

	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal link %s: %w", link.Code, err)
	}
	if err := writeAtomic(s.path(link.Code), data); err != nil {
		log.Printf("[ERROR] failed to save link %s: %v", link.Code, err)
		return ErrSaveRejected
	}
	return nil
}

// Load reads a link record by code.
func (s *LinkFS) Load(code string) (*Link, error) {
	if !codeRe.MatchString(code) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(code)) //nolint:gosec // code is validated alphanumeric
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read link %s: %w", code, err)
	}
	link := &Link{}
	if err := json.Unmarshal(data, link); err != nil {
		return nil, fmt.Errorf("parse link %s: %w", code, err)
	}
	return link, nil
}

// Remove deletes a link record, ErrNotFound if it doesn't exist.
func (s *LinkFS) Remove(code string) error {
	if !codeRe.MatchString(code) {
		return ErrNotFound
	}
	if err := os.Remove(s.path(code)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove link %s: %w", code, err)
	}
	return nil
}

// List returns all link records sorted by creation time descending.
func (s *LinkFS) List() ([]*Link, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read links dir: %w", err)
	}
	result := make([]*Link, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		link, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			log.Printf("[WARN] skip unreadable link %s: %v", e.Name(), err)
			continue
		}
		result = append(result, link)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created > result[j].Created })
	return result, nil
}

func (s *LinkFS) path(code string) string {
	return filepath.Join(s.root, code+".json")
}
