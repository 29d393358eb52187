// Package service holds the secret store: the identity to secret mapping,
// lookup and disambiguation of user queries, and mutation-or-nothing updates
// delegated to a Repository.
package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/totpkeeper/internal/models"
	"github.com/atinyakov/totpkeeper/internal/totp"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Repository defines the persistence operations the Store needs.
type Repository interface {
	// Load returns every stored record keyed by identity. An absent store
	// is an empty map, not an error.
	Load(ctx context.Context) (map[string]models.SecretRecord, error)
	// Save replaces the stored records. The mutation is not committed
	// unless Save returns nil.
	Save(ctx context.Context, records map[string]models.SecretRecord) error
}

// Option configures a Store.
type Option func(*Store)

// WithCaseInsensitiveIdentities makes exact lookups and duplicate detection
// ignore case. Substring search ignores case either way.
func WithCaseInsensitiveIdentities() Option {
	return func(s *Store) { s.foldCase = true }
}

// WithParams sets the parameters Code uses.
func WithParams(p totp.Params) Option {
	return func(s *Store) { s.params = p }
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the identity to secret mapping for one invocation.
type Store struct {
	repo     Repository
	records  map[string]models.SecretRecord
	foldCase bool
	params   totp.Params
	now      func() time.Time
}

// NewStore loads the records from repo once. Load failures are wrapped in
// ErrPersistence.
func NewStore(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:   repo,
		params: totp.DefaultParams(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}

	records, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	if records == nil {
		records = make(map[string]models.SecretRecord)
	}
	s.records = records
	return s, nil
}

// Params returns the code generation parameters of the store.
func (s *Store) Params() totp.Params {
	return s.params
}

// Add stores a new secret under identity. secret may be a Base32 string or
// an otpauth://totp/ URI.
func (s *Store) Add(ctx context.Context, identity, secret string) error {
	if identity == "" {
		return ErrInvalidIdentity
	}
	normalized, err := s.parseSecret(secret)
	if err != nil {
		return err
	}
	if len(s.matches(identity)) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, identity)
	}

	now := s.now().UTC()
	next := maps.Clone(s.records)
	next[identity] = models.SecretRecord{
		ID:        uuid.NewString(),
		Identity:  identity,
		Secret:    normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.commit(ctx, next)
}

// GetExact returns the record stored under identity.
func (s *Store) GetExact(identity string) (models.SecretRecord, error) {
	return s.lookup(identity)
}

// Search returns the records whose identity contains partial, ignoring
// case, ordered by identity. An empty partial matches every record.
func (s *Store) Search(partial string) []models.SecretRecord {
	needle := strings.ToLower(partial)
	matched := lo.Filter(lo.Values(s.records), func(rec models.SecretRecord, _ int) bool {
		return strings.Contains(strings.ToLower(rec.Identity), needle)
	})
	slices.SortFunc(matched, func(a, b models.SecretRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return matched
}

// Resolve picks the record a user query refers to: an exact identity match
// first, then a unique substring match. Several substring matches, or
// several case variants when folding case, are returned as Ambiguous for the
// caller to choose from.
func (s *Store) Resolve(query string) Resolution {
	exact := s.matches(query)
	switch {
	case len(exact) == 1:
		return Resolution{Status: Found, Record: exact[0]}
	case len(exact) > 1:
		return Resolution{Status: Ambiguous, Candidates: exact}
	}
	switch matches := s.Search(query); len(matches) {
	case 0:
		return Resolution{Status: NotFound}
	case 1:
		return Resolution{Status: Found, Record: matches[0]}
	default:
		return Resolution{Status: Ambiguous, Candidates: matches}
	}
}

// Update replaces the secret stored under identity.
func (s *Store) Update(ctx context.Context, identity, secret string) error {
	rec, err := s.lookup(identity)
	if err != nil {
		return err
	}
	normalized, err := s.parseSecret(secret)
	if err != nil {
		return err
	}

	rec.Secret = normalized
	rec.UpdatedAt = s.now().UTC()
	next := maps.Clone(s.records)
	next[rec.Identity] = rec
	return s.commit(ctx, next)
}

// Delete removes the record stored under identity.
func (s *Store) Delete(ctx context.Context, identity string) error {
	rec, err := s.lookup(identity)
	if err != nil {
		return err
	}
	next := maps.Clone(s.records)
	delete(next, rec.Identity)
	return s.commit(ctx, next)
}

// ListAll returns every identity in the order Search uses.
func (s *Store) ListAll() []string {
	return lo.Map(s.Search(""), func(rec models.SecretRecord, _ int) string {
		return rec.Identity
	})
}

// Code computes the current code for rec at the given time.
func (s *Store) Code(rec models.SecretRecord, at time.Time) (string, error) {
	return totp.Code(rec.Secret, at, s.params)
}

// matches returns the records stored under identity. A byte-exact match
// wins; otherwise, when folding case, every case variant is returned,
// ordered by identity.
func (s *Store) matches(identity string) []models.SecretRecord {
	if rec, ok := s.records[identity]; ok {
		return []models.SecretRecord{rec}
	}
	if !s.foldCase {
		return nil
	}
	folded := lo.Filter(lo.Values(s.records), func(rec models.SecretRecord, _ int) bool {
		return strings.EqualFold(rec.Identity, identity)
	})
	slices.SortFunc(folded, func(a, b models.SecretRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return folded
}

func (s *Store) lookup(identity string) (models.SecretRecord, error) {
	switch found := s.matches(identity); len(found) {
	case 0:
		return models.SecretRecord{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
	case 1:
		return found[0], nil
	default:
		return models.SecretRecord{}, fmt.Errorf("%w: %s matches %s", ErrAmbiguousIdentity, identity,
			strings.Join(lo.Map(found, func(rec models.SecretRecord, _ int) string { return rec.Identity }), ", "))
	}
}

func (s *Store) parseSecret(secret string) (string, error) {
	p, err := totp.ParseSecret(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	if p.FromURI && p.Params != (totp.Params{Step: s.params.Step, Digits: s.params.Digits, Algorithm: s.params.Algorithm}) {
		return "", fmt.Errorf("%w: uri wants %d digits every %ds with %s, store uses %d digits every %ds with %s",
			ErrInvalidSecret,
			p.Params.Digits, p.Params.Step, p.Params.Algorithm,
			s.params.Digits, s.params.Step, s.params.Algorithm)
	}
	return p.Secret, nil
}

// commit saves next and adopts it only when the repository accepted it.
func (s *Store) commit(ctx context.Context, next map[string]models.SecretRecord) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	s.records = next
	return nil
}
