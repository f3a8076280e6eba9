package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/go-pkgz/lgr"
)

const metaFile = "metadata.json"

// ShareFS keeps each share as shares/<id>/ with uploaded files under their
// sanitized names plus a metadata.json document. The metadata document is
// written last, via rename-from-temp; its presence implies all files are
// complete, which is the invariant readers rely on.
type ShareFS struct {
	root string
	lock *keyedLock
}

// NewShareFS makes a share engine rooted at dir, creating it if needed.
func NewShareFS(dir string) (*ShareFS, error) {
	root := filepath.Join(dir, "shares")
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("make shares dir %s: %w", root, err)
	}
	log.Printf("[INFO] share store at %s", root)
	return &ShareFS{root: root, lock: newKeyedLock()}, nil
}

// validShareID accepts generated hex tokens only, nothing that could leave
// the shares root once joined into a path.
func validShareID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\.")
}

// Exists reports if a share directory for the id is already taken.
// Used as the probe for unique id generation.
func (s *ShareFS) Exists(id string) bool {
	if !validShareID(id) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.root, id))
	return err == nil
}

// Create makes the backing directory for a new share.
func (s *ShareFS) Create(id string) error {
	if !validShareID(id) {
		return ErrSaveRejected
	}
	if err := os.Mkdir(filepath.Join(s.root, id), 0o700); err != nil {
		log.Printf("[ERROR] failed to create share dir %s: %v", id, err)
		return ErrSaveRejected
	}
	return nil
}

// PutFile writes one uploaded file into the share's directory under a bare,
// sanitized name. Returns the number of bytes written.
func (s *ShareFS) PutFile(id, name string, r io.Reader) (int64, error) {
	if !validShareID(id) {
		return 0, ErrNotFound
	}
	name, err := SanitizeName(name)
	if err != nil {
		return 0, err
	}
	dst := filepath.Join(s.root, id, name)
	fh, err := os.Create(dst) //nolint:gosec // name is sanitized to a bare file name
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(fh, r)
	if err != nil {
		_ = fh.Close()
		_ = os.Remove(dst) // don't leave the partial file behind
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}

// SaveMeta persists the share's metadata document. Must be called after all
// files are written; uses rename-from-temp so readers never see a torn document.
func (s *ShareFS) SaveMeta(share *Share) error {
	s.lock.lock(share.ID)
	defer s.lock.unlock(share.ID)

	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", share.ID, err)
	}
	if err := writeAtomic(filepath.Join(s.root, share.ID, metaFile), data); err != nil {
		log.Printf("[ERROR] failed to save metadata for %s: %v", share.ID, err)
		return ErrSaveRejected
	}
	return nil
}

// LoadMeta reads a share's metadata. A directory without metadata is treated
// as not found, same as a missing directory.
func (s *ShareFS) LoadMeta(id string) (*Share, error) {
	if !validShareID(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, id, metaFile)) //nolint:gosec // id is a generated hex token
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata for %s: %w", id, err)
	}
	share := &Share{}
	if err := json.Unmarshal(data, share); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", id, err)
	}
	return share, nil
}

// FilePath returns the on-disk location of a named file inside a share.
func (s *ShareFS) FilePath(id, name string) (string, error) {
	if !validShareID(id) {
		return "", ErrNotFound
	}
	name, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, id, name)
	if _, err := os.Stat(p); err != nil {
		return "", ErrNotFound
	}
	return p, nil
}

// Remove deletes the share directory tree. Missing directory is not an error,
// the operation is idempotent.
func (s *ShareFS) Remove(id string) error {
	if !validShareID(id) {
		return ErrNotFound
	}
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("remove share %s: %w", id, err)
	}
	return nil
}

// List returns metadata for all shares that have a metadata document,
// sorted by creation time descending. Directories without metadata are
// skipped (abandoned partial creations, reclaimed elsewhere).
func (s *ShareFS) List() ([]*Share, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read shares dir: %w", err)
	}
	result := make([]*Share, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		share, err := s.LoadMeta(e.Name())
		if err != nil {
			continue
		}
		result = append(result, share)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created > result[j].Created })
	return result, nil
}

// SanitizeName reduces a client-declared file name to a bare name. Names with
// path separators, traversal sequences or control characters are rejected.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || len(name) > 255 {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, "/\\\x00\n\r") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if strings.EqualFold(name, metaFile) { // would collide with the metadata document
		return "", fmt.Errorf("reserved file name %q", name)
	}
	return name, nil
}
