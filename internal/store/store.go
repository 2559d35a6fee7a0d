// Package store keeps the client-side copy of one REST collection. A Store
// owns the list, its loading flag and the last error, and cancels its
// in-flight requests when it is closed.
package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/common/errors"
	"storefront/internal/common/logger"
	"storefront/internal/common/metrics"
	"storefront/internal/common/observability"
	"storefront/internal/common/validation"
	"storefront/internal/models"
)

// Backend is the subset of an API resource a store drives.
type Backend[T models.Entity] interface {
	List(ctx context.Context, query url.Values) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotCache persists the last successful list of a resource.
type SnapshotCache interface {
	Load(ctx context.Context, resource string, dst interface{}) (bool, error)
	Save(ctx context.Context, resource string, value interface{}) error
}

// State is an immutable snapshot of a store.
type State[T models.Entity] struct {
	Items   []T
	Loading bool
	Err     *errors.ApiError
}

type Options struct {
	// Name labels logs and metrics, usually the resource name.
	Name string
	// Schema, when set, validates items before Save sends them.
	Schema *validation.Schema
	// RestoreOnDeleteFailure puts an optimistically removed item back when
	// the DELETE call fails.
	RestoreOnDeleteFailure bool
	Snapshots              SnapshotCache
	Logger                 logger.Logger
	Recorder               observability.Recorder
}

type Store[T models.Entity] struct {
	backend Backend[T]
	opts    Options
	logger  logger.Logger

	// base is cancelled by Close and parents every mutation.
	base       context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	items   []T
	loading bool
	err     *errors.ApiError
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	subs    []chan State[T]
}

func New[T models.Entity](backend Backend[T], opts Options) *Store[T] {
	if opts.Name == "" {
		opts.Name = "store"
	}
	if opts.Recorder == nil {
		opts.Recorder = observability.Nop{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	base, cancel := context.WithCancel(context.Background())
	return &Store[T]{
		backend:    backend,
		opts:       opts,
		logger:     log.With(map[string]interface{}{"resource": opts.Name}),
		base:       base,
		baseCancel: cancel,
		items:      []T{},
	}
}

func (s *Store[T]) Name() string { return s.opts.Name }

// ==========================
// Reads
// ==========================

func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItemsLocked()
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded API error, or nil.
func (s *Store[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

func (s *Store[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Filter returns the items matching pred, in store order.
func (s *Store[T]) Filter(pred func(T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []T{}
	for _, item := range s.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// ==========================
// Fetch
// ==========================

func (s *Store[T]) Fetch(ctx context.Context) error {
	return s.FetchWith(ctx, nil)
}

// FetchWith replaces the list with the server's. Starting a fetch aborts the
// previous one. A fetch that is aborted, by a newer fetch, Close, Reset or
// ctx, returns nil and leaves items and error untouched.
func (s *Store[T]) FetchWith(ctx context.Context, query url.Values) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.loading = true
	s.notifyLocked()
	s.mu.Unlock()

	start := time.Now()
	items, err := s.backend.List(fetchCtx, query)
	aborted := fetchCtx.Err() == context.Canceled

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		cancel()
		s.record(ctx, "fetch", "canceled", start)
		return nil
	}
	s.cancel = nil
	cancel()
	s.loading = false

	if errors.IsCanceled(err) || (err != nil && aborted) {
		s.notifyLocked()
		s.mu.Unlock()
		s.logger.Debug("Fetch aborted", nil)
		s.record(ctx, "fetch", "canceled", start)
		return nil
	}

	if err != nil {
		apiErr := s.failLocked("fetch", err)
		s.mu.Unlock()
		s.record(ctx, "fetch", "error", start)
		return apiErr
	}

	if items == nil {
		items = []T{}
	}
	s.items = items
	s.err = nil
	snapshot := s.copyItemsLocked()
	metrics.StoreItems.WithLabelValues(s.opts.Name).Set(float64(len(items)))
	s.notifyLocked()
	s.mu.Unlock()

	s.record(ctx, "fetch", "success", start)
	s.saveSnapshot(ctx, snapshot)
	return nil
}

// Hydrate seeds an empty store from the snapshot cache. It reports whether a
// snapshot was applied.
func (s *Store[T]) Hydrate(ctx context.Context) (bool, error) {
	if s.opts.Snapshots == nil {
		return false, nil
	}

	var items []T
	found, err := s.opts.Snapshots.Load(ctx, s.opts.Name, &items)
	if err != nil {
		s.logger.Warn("Failed to load snapshot", map[string]interface{}{"error": err})
		return false, err
	}
	if !found {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errors.ErrClosed
	}
	// A fetched list always wins over a snapshot.
	if len(s.items) > 0 || s.loading {
		return false, nil
	}
	if items == nil {
		items = []T{}
	}
	s.items = items
	metrics.StoreItems.WithLabelValues(s.opts.Name).Set(float64(len(items)))
	s.notifyLocked()
	return true, nil
}

func (s *Store[T]) saveSnapshot(ctx context.Context, items []T) {
	if s.opts.Snapshots == nil {
		return
	}
	if err := s.opts.Snapshots.Save(ctx, s.opts.Name, items); err != nil {
		s.logger.Warn("Failed to save snapshot", map[string]interface{}{"error": err})
	}
}

// ==========================
// Mutations
// ==========================

// Save creates item when it has no id and appends the server's copy.
// Otherwise it updates the item and replaces the local element with the
// same id, appending it if absent.
func (s *Store[T]) Save(ctx context.Context, item T) (T, error) {
	var zero T
	if s.isClosed() {
		return zero, errors.ErrClosed
	}

	if s.opts.Schema != nil {
		if result := s.opts.Schema.Validate(item); !result.Valid {
			return zero, errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	opCtx, stop := s.opContext(ctx)
	defer stop()

	start := time.Now()
	id := item.GetID()

	var (
		saved T
		err   error
		op    = "update"
	)
	if id == "" {
		op = "create"
		saved, err = s.backend.Create(opCtx, item)
	} else {
		saved, err = s.backend.Update(opCtx, id, item)
	}

	if err != nil {
		if errors.IsCanceled(err) || opCtx.Err() == context.Canceled {
			s.record(ctx, op, "canceled", start)
			return zero, fmt.Errorf("%w: %s", errors.ErrCanceled, op)
		}
		s.mu.Lock()
		apiErr := s.failLocked(op, err)
		s.mu.Unlock()
		s.record(ctx, op, "error", start)
		return zero, apiErr
	}

	s.mu.Lock()
	if !s.closed {
		if id == "" {
			s.items = append(s.items, saved)
		} else {
			s.putLocked(id, saved)
		}
		s.err = nil
		metrics.StoreItems.WithLabelValues(s.opts.Name).Set(float64(len(s.items)))
		s.notifyLocked()
	}
	s.mu.Unlock()

	s.record(ctx, op, "success", start)
	return saved, nil
}

// Delete removes the item locally first, then calls the backend. A failed
// call records the error; the item stays removed unless
// RestoreOnDeleteFailure is set.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrClosed
	}
	index := s.indexLocked(id)
	var removed T
	if index >= 0 {
		removed = s.items[index]
		s.items = append(s.items[:index:index], s.items[index+1:]...)
		metrics.StoreItems.WithLabelValues(s.opts.Name).Set(float64(len(s.items)))
		s.notifyLocked()
	}
	s.mu.Unlock()

	opCtx, stop := s.opContext(ctx)
	defer stop()

	start := time.Now()
	err := s.backend.Delete(opCtx, id)
	if err == nil {
		s.record(ctx, "delete", "success", start)
		return nil
	}

	canceled := errors.IsCanceled(err) || opCtx.Err() == context.Canceled

	s.mu.Lock()
	var apiErr *errors.ApiError
	if !canceled {
		apiErr = s.failLocked("delete", err)
	}
	if index >= 0 && s.opts.RestoreOnDeleteFailure && !s.closed && s.indexLocked(id) < 0 {
		s.insertLocked(index, removed)
		s.notifyLocked()
	}
	s.mu.Unlock()

	if canceled {
		s.record(ctx, "delete", "canceled", start)
		return fmt.Errorf("%w: delete", errors.ErrCanceled)
	}
	s.record(ctx, "delete", "error", start)
	return apiErr
}

// Put replaces the element with item's id, or appends it. It is used for
// server results obtained outside Save, like status changes.
func (s *Store[T]) Put(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.putLocked(item.GetID(), item)
	metrics.StoreItems.WithLabelValues(s.opts.Name).Set(float64(len(s.items)))
	s.notifyLocked()
}

// SetError records err as the store's current error. Cancellations are
// ignored.
func (s *Store[T]) SetError(err error) {
	apiErr := errors.Normalize(err)
	if apiErr == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = apiErr
	s.notifyLocked()
}

// Reset aborts any in-flight fetch and empties the store.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.items = []T{}
	s.err = nil
	s.loading = false
	metrics.StoreItems.WithLabelValues(s.opts.Name).Set(0)
	s.notifyLocked()
}

// ==========================
// Lifecycle
// ==========================

// Subscribe returns a channel that receives the current state and then a
// new State after every change. Slow readers only see the latest state.
// The channel is closed by Close.
func (s *Store[T]) Subscribe() <-chan State[T] {
	ch := make(chan State[T], 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	ch <- s.stateLocked()
	s.subs = append(s.subs, ch)
	return ch
}

// Close aborts in-flight requests and detaches subscribers. Later calls
// return errors.ErrClosed. Close is idempotent.
func (s *Store[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.baseCancel()
	s.loading = false
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *Store[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// opContext derives a context that is also cancelled by Close.
func (s *Store[T]) opContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.base, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// ==========================
// Internal helpers (mu held)
// ==========================

func (s *Store[T]) failLocked(op string, err error) *errors.ApiError {
	apiErr := errors.Normalize(err)
	s.err = apiErr
	s.notifyLocked()

	metrics.StoreErrors.WithLabelValues(s.opts.Name, op).Inc()
	s.logger.Error("Store operation failed", map[string]interface{}{
		"operation": op,
		"status":    apiErr.Status,
		"error":     apiErr.Message,
	})
	return apiErr
}

func (s *Store[T]) indexLocked(id string) int {
	for i, item := range s.items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) putLocked(id string, item T) {
	if i := s.indexLocked(id); i >= 0 {
		s.items[i] = item
		return
	}
	s.items = append(s.items, item)
}

func (s *Store[T]) insertLocked(index int, item T) {
	if index > len(s.items) {
		index = len(s.items)
	}
	s.items = append(s.items, item)
	copy(s.items[index+1:], s.items[index:])
	s.items[index] = item
}

func (s *Store[T]) copyItemsLocked() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store[T]) stateLocked() State[T] {
	return State[T]{
		Items:   s.copyItemsLocked(),
		Loading: s.loading,
		Err:     s.err,
	}
}

// notifyLocked delivers the current state without blocking. A pending,
// unread state is replaced.
func (s *Store[T]) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	state := s.stateLocked()
	for _, ch := range s.subs {
		select {
		case ch <- state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

func (s *Store[T]) record(ctx context.Context, op, status string, start time.Time) {
	s.opts.Recorder.RecordOperation(ctx, s.opts.Name, op, status, time.Since(start))
}
