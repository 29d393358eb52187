// Package repository provides persistence backends for the secret store:
// a locked JSON file on the local disk and a PostgreSQL database.
package repository

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/totpkeeper/internal/models"
	"github.com/gofrs/flock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// DefaultLockTimeout bounds the wait for another process to release the store.
	DefaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
)

// fileEnvelope is the on-disk document. Version stays in clear text so a
// writer can compare it without the sealing key.
type fileEnvelope struct {
	Version int64                 `json:"version"`
	Secrets []models.SecretRecord `json:"secrets,omitempty"`
	Sealed  string                `json:"sealed,omitempty"`
}

// FileRepository stores records in a JSON file guarded by an advisory lock.
type FileRepository struct {
	path        string
	lock        *flock.Flock
	aead        cipher.AEAD
	log         *zap.Logger
	lockTimeout time.Duration
	// version is the document version seen by the last Load or Save.
	version int64
}

// FileOption configures a FileRepository.
type FileOption func(*FileRepository)

// WithAEAD seals the records with aead.
func WithAEAD(aead cipher.AEAD) FileOption {
	return func(r *FileRepository) { r.aead = aead }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) FileOption {
	return func(r *FileRepository) { r.log = log }
}

// WithLockTimeout sets how long OpenFile waits for the lock.
func WithLockTimeout(d time.Duration) FileOption {
	return func(r *FileRepository) { r.lockTimeout = d }
}

// OpenFile locks the store at path for exclusive use. The caller must Close
// the repository to release the lock.
func OpenFile(ctx context.Context, path string, opts ...FileOption) (*FileRepository, error) {
	r := &FileRepository{
		path:        path,
		log:         zap.NewNop(),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	r.lock = flock.New(path + ".lock")
	locked, err := r.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	r.logger().Debug("store locked", zap.String("path", path))
	return r, nil
}

// acquire takes the lock, retrying until the lock timeout. A zero timeout
// makes a single attempt.
func (r *FileRepository) acquire(ctx context.Context) (bool, error) {
	if r.lockTimeout <= 0 {
		return r.lock.TryLock()
	}
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	locked, err := r.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return false, err
	}
	return locked, nil
}

// Close releases the store lock.
func (r *FileRepository) Close() error {
	if r.lock == nil {
		return nil
	}
	err := r.lock.Unlock()
	r.logger().Debug("store unlocked", zap.String("path", r.path), zap.Error(err))
	return err
}

func (r *FileRepository) logger() *zap.Logger {
	if r.log == nil {
		return zap.NewNop()
	}
	return r.log
}

// Path returns the location of the store file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads every record. A missing file is an empty store.
func (r *FileRepository) Load(_ context.Context) (map[string]models.SecretRecord, error) {
	env, err := r.read()
	if err != nil {
		return nil, err
	}

	secrets := env.Secrets
	if env.Sealed != "" {
		if r.aead == nil {
			return nil, fmt.Errorf("%w: a key file is required", ErrSealed)
		}
		plain, err := unseal(r.aead, env.Sealed)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(plain, &secrets); err != nil {
			return nil, fmt.Errorf("%w: sealed records: %v", ErrCorrupt, err)
		}
	}

	records := make(map[string]models.SecretRecord, len(secrets))
	for _, rec := range secrets {
		if rec.Identity == "" {
			return nil, fmt.Errorf("%w: record %q has no identity", ErrCorrupt, rec.ID)
		}
		if _, dup := records[rec.Identity]; dup {
			return nil, fmt.Errorf("%w: duplicate identity %q", ErrCorrupt, rec.Identity)
		}
		records[rec.Identity] = rec
	}

	r.version = env.Version
	r.logger().Debug("store loaded",
		zap.String("path", r.path),
		zap.Int64("version", env.Version),
		zap.Int("records", len(records)))
	return records, nil
}

// Save replaces the file atomically. It fails with ErrConflict when the file
// version is no longer the one this repository loaded.
func (r *FileRepository) Save(_ context.Context, records map[string]models.SecretRecord) error {
	current, err := r.read()
	if err != nil {
		return err
	}
	if current.Version != r.version {
		return fmt.Errorf("%w: expected version %d, found %d", ErrConflict, r.version, current.Version)
	}

	secrets := make([]models.SecretRecord, 0, len(records))
	for _, rec := range records {
		secrets = append(secrets, rec)
	}
	slices.SortFunc(secrets, func(a, b models.SecretRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})

	env := fileEnvelope{Version: r.version + 1}
	if r.aead != nil {
		plain, err := json.Marshal(secrets)
		if err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		if env.Sealed, err = seal(r.aead, plain); err != nil {
			return err
		}
	} else {
		env.Secrets = secrets
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := r.writeAtomic(data); err != nil {
		return err
	}

	r.version = env.Version
	r.logger().Debug("store saved",
		zap.String("path", r.path),
		zap.Int64("version", env.Version),
		zap.Int("records", len(secrets)))
	return nil
}

func (r *FileRepository) read() (fileEnvelope, error) {
	var env fileEnvelope
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return env, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return env, nil
}

func (r *FileRepository) writeAtomic(data []byte) (err error) {
	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		return multierr.Append(fmt.Errorf("chmod temp file: %w", err), tmp.Close())
	}
	if _, err = tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write temp file: %w", err), tmp.Close())
	}
	if err = tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("sync temp file: %w", err), tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
