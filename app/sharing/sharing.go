// Package sharing implements share creation, gated access and lazy expiry on
// top of an injected storage engine. Passwords are never stored, only their
// bcrypt hashes; an optional temporary access key bypasses the password gate.
package sharing

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharebin/sharebin/app/store"
	"github.com/sharebin/sharebin/app/token"
)

// Errors
var (
	ErrNotFound     = errors.New("share not found")
	ErrExpired      = errors.New("share expired")
	ErrAccessDenied = errors.New("access denied")
	ErrNoFiles      = errors.New("no files provided")
	ErrBadFileName  = errors.New("invalid file name")
	ErrInternal     = errors.New("internal error")
)

// IDLength is the length of generated share ids, hex characters.
const IDLength = 10

// Engine defines the storage port for shares.
type Engine interface {
	Exists(id string) bool
	Create(id string) error
	PutFile(id, name string, r io.Reader) (int64, error)
	SaveMeta(share *store.Share) error
	LoadMeta(id string) (*store.Share, error)
	FilePath(id, name string) (string, error)
	Remove(id string) error
	List() ([]*store.Share, error)
}

// Shares creates, resolves and deletes share records.
type Shares struct {
	engine Engine
	now    func() time.Time
}

// FileUpload is one incoming file for share creation.
type FileUpload struct {
	Name string
	Type string
	Size int64
	Data io.Reader
}

// CreateRequest contains data for share creation.
type CreateRequest struct {
	Files      []FileUpload
	ExpireDays int // negative means never
	Password   string
}

// New makes a Shares service with the engine.
func New(engine Engine, options ...Option) *Shares {
	res := &Shares{engine: engine, now: time.Now}
	for _, opt := range options {
		opt(res)
	}
	return res
}

// Option functions optional parameters for Shares
type Option func(s *Shares)

// Clock sets the time source, used in tests.
func Clock(now func() time.Time) Option {
	return func(s *Shares) { s.now = now }
}

// Create makes a new share from the request. Files are written first, the
// metadata document last; on any failure the whole directory is rolled back
// so no orphaned partial share is ever visible.
func (s *Shares) Create(ctx context.Context, req CreateRequest) (*store.Share, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	id := token.Generate(s.engine.Exists, IDLength)
	if err := s.engine.Create(id); err != nil {
		return nil, fmt.Errorf("create share %s: %w", id, err)
	}

	share := &store.Share{
		ID:      id,
		Created: s.now().Unix(),
		Expires: store.ExpiryFromSelector(req.ExpireDays, s.now()),
	}

	for _, f := range req.Files {
		if ctx.Err() != nil {
			s.rollback(id)
			return nil, ctx.Err()
		}
		name, err := store.SanitizeName(f.Name)
		if err != nil {
			s.rollback(id)
			return nil, ErrBadFileName
		}
		size, err := s.engine.PutFile(id, name, f.Data)
		if err != nil {
			log.Printf("[ERROR] failed to store file %q in share %s: %v", name, id, err)
			s.rollback(id)
			return nil, fmt.Errorf("store file %q: %w", name, err)
		}
		share.Files = append(share.Files, store.FileEntry{
			Name: name, Type: f.Type, Size: size, Path: id + "/" + name})
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[ERROR] can't hash share password: %v", err)
			s.rollback(id)
			return nil, ErrInternal
		}
		share.PasswordHash = string(hash)
	}

	if err := s.engine.SaveMeta(share); err != nil {
		s.rollback(id)
		return nil, fmt.Errorf("save share %s: %w", id, err)
	}

	log.Printf("[INFO] created share %s, %d file(s), expires %s", id, len(share.Files), expString(share.Expires))
	return share, nil
}

// Resolve loads a share and enforces expiry and the access gate. An expired
// share is deleted on first access and reported expired; later accesses see
// not found. Access is granted by a matching access key, by the share being
// open, or by a verifying password, in that order.
func (s *Shares) Resolve(_ context.Context, id, password, accessKey string) (*store.Share, error) {
	share, err := s.engine.LoadMeta(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load share %s: %w", id, err)
	}

	if share.Expired(s.now()) {
		log.Printf("[INFO] share %s expired at %s, removing", id, expString(share.Expires))
		if err := s.engine.Remove(id); err != nil {
			log.Printf("[WARN] failed to remove expired share %s: %v", id, err)
		}
		return nil, ErrExpired
	}

	if accessKey != "" && share.TempAccessKey != "" &&
		subtle.ConstantTimeCompare([]byte(accessKey), []byte(share.TempAccessKey)) == 1 {
		return share, nil
	}
	if !share.Protected() {
		return share, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(share.PasswordHash), []byte(password)) != nil {
		return nil, ErrAccessDenied
	}
	return share, nil
}

// FilePath resolves the on-disk path of a file inside a share, applying the
// same gate as Resolve.
func (s *Shares) FilePath(ctx context.Context, id, name, password, accessKey string) (string, *store.FileEntry, error) {
	share, err := s.Resolve(ctx, id, password, accessKey)
	if err != nil {
		return "", nil, err
	}
	for i := range share.Files {
		if share.Files[i].Name == name {
			path, err := s.engine.FilePath(id, name)
			if err != nil {
				return "", nil, ErrNotFound
			}
			return path, &share.Files[i], nil
		}
	}
	return "", nil, ErrNotFound
}

// Delete removes a share by owner action. Missing share is not an error.
func (s *Shares) Delete(_ context.Context, id string) error {
	if err := s.engine.Remove(id); err != nil {
		return fmt.Errorf("delete share %s: %w", id, err)
	}
	log.Printf("[INFO] deleted share %s", id)
	return nil
}

// List enumerates all shares, lazily expiring any found past expiry during
// the scan. The result is sorted by creation time descending.
func (s *Shares) List(_ context.Context) ([]*store.Share, error) {
	shares, err := s.engine.List()
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	result := shares[:0]
	for _, share := range shares {
		if share.Expired(s.now()) {
			log.Printf("[INFO] share %s expired at %s, removing", share.ID, expString(share.Expires))
			if err := s.engine.Remove(share.ID); err != nil {
				log.Printf("[WARN] failed to remove expired share %s: %v", share.ID, err)
			}
			continue
		}
		result = append(result, share)
	}
	return result, nil
}

// SetAccessKey mints a temporary access key for a share and persists it.
// The key grants access without the password until the share is deleted.
func (s *Shares) SetAccessKey(ctx context.Context, id string) (string, error) {
	share, err := s.engine.LoadMeta(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load share %s: %w", id, err)
	}
	if share.Expired(s.now()) {
		return "", ErrExpired
	}
	share.TempAccessKey = token.AccessKey()
	if err := s.engine.SaveMeta(share); err != nil {
		return "", fmt.Errorf("save share %s: %w", id, err)
	}
	return share.TempAccessKey, nil
}

func (s *Shares) rollback(id string) {
	if err := s.engine.Remove(id); err != nil {
		log.Printf("[WARN] failed to roll back share %s: %v", id, err)
	}
}

func expString(exp int64) string {
	if exp == store.NeverExpires {
		return "never"
	}
	return time.Unix(exp, 0).UTC().Format(time.RFC3339)
}
