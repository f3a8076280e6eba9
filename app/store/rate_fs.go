package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
)

// RateFS keeps one flat file of login attempt timestamps per client IP,
// ratelimit/rate_<sha256(ip)>.txt, comma-separated unix seconds. The IP is
// hashed for filename safety, the raw address never hits the disk.
type RateFS struct {
	root string
	lock *keyedLock
}

// NewRateFS makes a rate-record engine rooted at dir, creating it if needed.
func NewRateFS(dir string) (*RateFS, error) {
	root := filepath.Join(dir, "ratelimit")
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("make ratelimit dir %s: %w", root, err)
	}
	return &RateFS{root: root, lock: newKeyedLock()}, nil
}

// Load returns the recorded attempt timestamps for an IP, empty if none.
func (s *RateFS) Load(ip string) ([]int64, error) {
	data, err := os.ReadFile(s.path(ip))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rate record: %w", err)
	}
	var result []int64
	for _, f := range strings.Split(strings.TrimSpace(string(data)), ",") {
		ts, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			continue // damaged field, drop it
		}
		result = append(result, ts)
	}
	return result, nil
}

// Save persists the attempt list for an IP. An empty list removes the record.
func (s *RateFS) Save(ip string, stamps []int64) error {
	key := hashIP(ip)
	s.lock.lock(key)
	defer s.lock.unlock(key)

	if len(stamps) == 0 {
		if err := os.Remove(s.path(ip)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove rate record: %w", err)
		}
		return nil
	}
	fields := make([]string, len(stamps))
	for i, ts := range stamps {
		fields[i] = strconv.FormatInt(ts, 10)
	}
	if err := writeAtomic(s.path(ip), []byte(strings.Join(fields, ","))); err != nil {
		return fmt.Errorf("save rate record: %w", err)
	}
	return nil
}

// Sweep removes all rate records whose last modification is older than ttl,
// regardless of content. Bounds the growth of per-IP files without a scheduler.
func (s *RateFS) Sweep(ttl time.Duration, now time.Time) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		log.Printf("[WARN] rate sweep failed to read %s: %v", s.root, err)
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "rate_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > ttl {
			if err := os.Remove(filepath.Join(s.root, e.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Printf("[DEBUG] rate sweep removed %d stale records", removed)
	}
}

func (s *RateFS) path(ip string) string {
	return filepath.Join(s.root, "rate_"+hashIP(ip)+".txt")
}

func hashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])
}
