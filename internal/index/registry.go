package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/rolodex/internal/embed"
	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// DefaultRestoreConcurrency bounds parallel rebuilds during Restore.
const DefaultRestoreConcurrency = 4

// userIndex holds the published snapshot of one user. build serializes
// writers; readers only load current.
type userIndex struct {
	build   sync.Mutex
	current atomic.Pointer[Snapshot]
}

// Registry maps user ids to their current Snapshot. Builds for one user
// are serialized; builds for different users run in parallel; reads never
// block on a build.
type Registry struct {
	builder *Builder
	store   store.ContactStore
	logger  *slog.Logger

	mu    sync.RWMutex
	users map[string]*userIndex
}

// Option configures a Registry.
type Option func(*Registry)

// WithContactStore persists every published contact set to s.
func WithContactStore(s store.ContactStore) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(builder *Builder, opts ...Option) *Registry {
	r := &Registry{
		builder: builder,
		logger:  slog.Default(),
		users:   make(map[string]*userIndex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildOption configures one mutation.
type BuildOption func(*buildOptions)

type buildOptions struct {
	progress embed.ProgressFunc
}

// WithProgress reports embedding progress of the rebuild.
func WithProgress(fn embed.ProgressFunc) BuildOption {
	return func(o *buildOptions) {
		o.progress = fn
	}
}

// Snapshot returns the current index of userID, or EngineUnavailable when
// the user was never indexed.
func (r *Registry) Snapshot(userID string) (*Snapshot, error) {
	r.mu.RLock()
	u, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, rerrors.EngineUnavailable(userID)
	}
	snap := u.current.Load()
	if snap == nil {
		return nil, rerrors.EngineUnavailable(userID)
	}
	return snap, nil
}

// Users lists the users with a published index, sorted.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for id, u := range r.users {
		if u.current.Load() != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Upsert inserts or replaces contacts by id and publishes a new version.
// Contacts without an id get a fresh UUID. Upserting nothing into an
// existing index is a no-op; into an unknown user it publishes an empty
// index so searches return no results instead of failing.
func (r *Registry) Upsert(ctx context.Context, userID string, contacts []store.Contact, opts ...BuildOption) (uint64, error) {
	if err := validateUser(userID); err != nil {
		return 0, err
	}

	u := r.userIndex(userID)
	u.build.Lock()
	defer u.build.Unlock()

	prev := u.current.Load()
	if len(contacts) == 0 && prev != nil {
		return prev.Version, nil
	}

	merged := make([]store.Contact, 0, len(contacts))
	if prev != nil {
		merged = append(merged, prev.Contacts...)
	}
	for _, c := range contacts {
		if strings.TrimSpace(c.ID) == "" {
			c.ID = uuid.NewString()
		}
		merged = append(merged, c)
	}

	return r.publish(ctx, u, userID, cloneContacts(merged), prev, opts)
}

// Replace publishes contacts as the complete address book of userID.
func (r *Registry) Replace(ctx context.Context, userID string, contacts []store.Contact, opts ...BuildOption) (uint64, error) {
	if err := validateUser(userID); err != nil {
		return 0, err
	}

	u := r.userIndex(userID)
	u.build.Lock()
	defer u.build.Unlock()

	set := make([]store.Contact, 0, len(contacts))
	for _, c := range contacts {
		if strings.TrimSpace(c.ID) == "" {
			c.ID = uuid.NewString()
		}
		set = append(set, c)
	}

	return r.publish(ctx, u, userID, cloneContacts(set), u.current.Load(), opts)
}

// Delete removes one contact and publishes a new version. Deleting an id
// that is not indexed changes nothing and returns the current version.
func (r *Registry) Delete(ctx context.Context, userID, contactID string) (uint64, error) {
	r.mu.RLock()
	u, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return 0, rerrors.EngineUnavailable(userID)
	}

	u.build.Lock()
	defer u.build.Unlock()

	prev := u.current.Load()
	if prev == nil {
		return 0, rerrors.EngineUnavailable(userID)
	}
	if _, ok := prev.Contact(contactID); !ok {
		return prev.Version, nil
	}

	remaining := make([]store.Contact, 0, len(prev.Contacts)-1)
	for _, c := range prev.Contacts {
		if c.ID != contactID {
			remaining = append(remaining, c)
		}
	}

	return r.publish(ctx, u, userID, remaining, prev, nil)
}

// Restore rebuilds every user held by the contact store, at the version
// stored for it. It returns the number of users restored.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}

	users, err := r.store.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultRestoreConcurrency)

	var restored atomic.Int64
	for _, userID := range users {
		g.Go(func() error {
			contacts, version, err := r.store.LoadUser(gctx, userID)
			if err != nil {
				return fmt.Errorf("load user %s: %w", userID, err)
			}
			version = max(version, 1)

			u := r.userIndex(userID)
			u.build.Lock()
			defer u.build.Unlock()

			snap, err := r.builder.Build(gctx, userID, version, cloneContacts(contacts), nil, nil)
			if err != nil {
				return fmt.Errorf("rebuild user %s: %w", userID, err)
			}
			u.current.Store(snap)
			restored.Add(1)

			r.logger.Info("index_restored",
				slog.String("user_id", userID),
				slog.Uint64("version", version),
				slog.Int("contacts", snap.Len()),
				slog.Int("embedded", snap.Stats.Embedded))
			return nil
		})
	}

	err = g.Wait()
	return int(restored.Load()), err
}

// publish builds the next version from contacts, persists it, and swaps
// it in. Caller holds u.build.
func (r *Registry) publish(ctx context.Context, u *userIndex, userID string, contacts []store.Contact,
	prev *Snapshot, opts []BuildOption) (uint64, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	version := uint64(1)
	if prev != nil {
		version = prev.Version + 1
	}

	snap, err := r.builder.Build(ctx, userID, version, contacts, prev, bo.progress)
	if err != nil {
		return 0, fmt.Errorf("build index for %s: %w", userID, err)
	}

	if r.store != nil {
		persistStart := time.Now()
		if err := r.store.SaveUser(ctx, userID, contacts, version); err != nil {
			return 0, fmt.Errorf("persist contacts for %s: %w", userID, err)
		}
		snap.Stats.PersistDuration = time.Since(persistStart)
	}

	u.current.Store(snap)

	r.logger.Info("index_published",
		slog.String("user_id", userID),
		slog.Uint64("version", version),
		slog.Int("contacts", snap.Len()),
		slog.Int("embedded", snap.Stats.Embedded),
		slog.Int("reused", snap.Stats.Reused),
		slog.Int("unembedded", snap.Stats.Unembedded),
		slog.Int64("embed_ms", snap.Stats.EmbedDuration.Milliseconds()),
		slog.Int64("index_ms", snap.Stats.IndexDuration.Milliseconds()))

	return version, nil
}

// userIndex returns the entry of userID, creating it on first use.
func (r *Registry) userIndex(userID string) *userIndex {
	r.mu.RLock()
	u, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		return u
	}
	u = &userIndex{}
	r.users[userID] = u
	return u
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return rerrors.InputError("user id is required", nil)
	}
	return nil
}
