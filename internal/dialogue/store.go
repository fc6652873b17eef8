// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dialogue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// cacheEntry pairs a cached context with its last-access time.
type cacheEntry struct {
	uctx       *types.UserContext
	lastAccess time.Time
}

// Store is the dialogue context store: an in-memory cache bounded by TTL
// and size over the durable repository. Persistence happens on every
// mutation, so eviction and shutdown flushes are safety nets, not the
// durability mechanism.
//
// Same-user operations are serialized by a per-user mutex held across the
// whole load-mutate-persist sequence, so two concurrent messages from one
// user cannot overwrite each other's turns.
type Store struct {
	repo Repository
	cfg  types.ContextConfig
	log  *zap.Logger

	// mu guards cache and userLocks. Per-user mutexes are acquired before
	// mu and never while holding it.
	mu        sync.Mutex
	cache     map[int64]*cacheEntry
	userLocks map[int64]*sync.Mutex

	done    chan struct{}
	stopped sync.WaitGroup
}

// NewStore initializes the repository schema and starts the background
// eviction task.
func NewStore(ctx context.Context, repo Repository, cfg types.ContextConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := repo.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing context repository: %w", err)
	}

	s := &Store{
		repo:      repo,
		cfg:       cfg,
		log:       log.Named("dialogue"),
		cache:     make(map[int64]*cacheEntry),
		userLocks: make(map[int64]*sync.Mutex),
		done:      make(chan struct{}),
	}

	s.stopped.Add(1)
	go s.cleanupLoop()

	return s, nil
}

// Close stops the eviction task, waits for it, then flushes every cached
// context to the repository. Callers must not run other store operations
// concurrently with Close.
func (s *Store) Close(ctx context.Context) error {
	close(s.done)
	s.stopped.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for userID, entry := range s.cache {
		if err := s.repo.Upsert(ctx, entry.uctx); err != nil {
			s.log.Error("flushing context on close failed", zap.Int64("user_id", userID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.log.Info("context store closed", zap.Int("flushed", len(s.cache)))
	s.cache = make(map[int64]*cacheEntry)
	return firstErr
}

// userLock returns the mutex serializing operations for one user. Locks
// are created on demand and retained for the store's lifetime.
func (s *Store) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// GetContext returns a snapshot of the user's context, creating an empty
// one lazily when the repository has no row. Every call refreshes the
// entry's last-access time, hit or miss. Callers must not mutate the
// returned snapshot directly; mutations go through Update/Clear.
func (s *Store) GetContext(ctx context.Context, userID int64) (*types.UserContext, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	uctx, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uctx.Clone(), nil
}

// loadOrCreate returns the cached context, loading it from the repository
// (or constructing an empty one) on a miss. The caller must hold the
// user's lock. The returned pointer is the cached instance.
func (s *Store) loadOrCreate(ctx context.Context, userID int64) (*types.UserContext, error) {
	now := time.Now()

	s.mu.Lock()
	if entry, ok := s.cache[userID]; ok {
		entry.lastAccess = now
		s.mu.Unlock()
		return entry.uctx, nil
	}
	s.mu.Unlock()

	uctx, err := s.repo.Get(ctx, userID)
	if err == ErrNotFound {
		uctx = types.NewUserContext(userID)
	} else if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[userID] = &cacheEntry{uctx: uctx, lastAccess: now}
	s.mu.Unlock()
	return uctx, nil
}

// UpdateContext appends a turn for the processed message: history is
// truncated to the cap, the sticky topic is recomputed from this turn's
// first topic entity, and a non-empty search-result set replaces the
// article snapshot wholesale. The new state is persisted before the cache
// entry is refreshed; on a persistence error the cache keeps the previous
// state.
func (s *Store) UpdateContext(ctx context.Context, userID int64, message string, intent types.Intent, entities []types.Entity, botResponse string, searchResults []types.Article) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	current, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	next := current.Clone()
	next.AddTurn(types.ConversationTurn{
		Timestamp:     time.Now(),
		UserMessage:   message,
		Intent:        intent,
		Entities:      entities,
		BotResponse:   botResponse,
		SearchResults: searchResults,
	}, s.cfg.HistoryCap())

	for _, e := range entities {
		if e.Type == types.EntityTopic {
			next.CurrentTopic = e.NormalizedString()
			break
		}
	}

	if len(searchResults) > 0 {
		next.CurrentArticles = searchResults
	}

	return s.persist(ctx, next)
}

// SetCurrentArticles replaces the article snapshot wholesale.
func (s *Store) SetCurrentArticles(ctx context.Context, userID int64, articles []types.Article) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	current, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	next := current.Clone()
	next.CurrentArticles = articles
	next.UpdatedAt = time.Now()
	return s.persist(ctx, next)
}

// ClearContext resets the user's history, topic and articles, preserving
// identity and CreatedAt.
func (s *Store) ClearContext(ctx context.Context, userID int64) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	current, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	next := current.Clone()
	next.Clear()
	return s.persist(ctx, next)
}

// persist writes the context to the repository and, only on success,
// refreshes the cache entry. The caller must hold the user's lock.
func (s *Store) persist(ctx context.Context, uctx *types.UserContext) error {
	if err := s.repo.Upsert(ctx, uctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[uctx.UserID] = &cacheEntry{uctx: uctx, lastAccess: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *Store) cleanupLoop() {
	defer s.stopped.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupPass(context.Background())
		case <-s.done:
			return
		}
	}
}

// cleanupPass runs the two-stage eviction policy: first flush-and-evict
// every entry idle past the TTL, then, if the cache still exceeds the cap,
// flush-and-evict the least-recently-accessed entries until at the cap.
// Entries are processed one at a time so a slow flush cannot stall other
// work for long.
func (s *Store) cleanupPass(ctx context.Context) {
	ttl := s.cfg.CacheTTL()
	now := time.Now()

	s.mu.Lock()
	var expired []int64
	for userID, entry := range s.cache {
		if now.Sub(entry.lastAccess) > ttl {
			expired = append(expired, userID)
		}
	}
	s.mu.Unlock()

	evicted := 0
	for _, userID := range expired {
		if s.evict(ctx, userID) {
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug("evicted expired contexts", zap.Int("count", evicted))
	}

	limit := s.cfg.CacheCap()
	s.mu.Lock()
	over := len(s.cache) - limit
	var oldest []int64
	if over > 0 {
		type access struct {
			userID int64
			at     time.Time
		}
		all := make([]access, 0, len(s.cache))
		for userID, entry := range s.cache {
			all = append(all, access{userID, entry.lastAccess})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
		for _, a := range all[:over] {
			oldest = append(oldest, a.userID)
		}
	}
	s.mu.Unlock()

	for _, userID := range oldest {
		s.evict(ctx, userID)
	}
	if len(oldest) > 0 {
		s.log.Debug("evicted contexts over cache cap", zap.Int("count", len(oldest)))
	}
}

// evict flushes one cache entry to the repository and removes it. The
// per-user lock keeps the flush from racing an in-flight update. A failed
// flush leaves the entry cached; it will be retried next pass.
func (s *Store) evict(ctx context.Context, userID int64) bool {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	entry, ok := s.cache[userID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if err := s.repo.Upsert(ctx, entry.uctx); err != nil {
		s.log.Error("flushing context for eviction failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
	return true
}

// cachedUsers reports which users are currently cached. Test hook.
func (s *Store) cachedUsers() map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool, len(s.cache))
	for userID := range s.cache {
		out[userID] = true
	}
	return out
}
