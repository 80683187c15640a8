// Package queue holds the upload queue: the single source of truth for which
// files are pending, in flight, finished or failed in the current session.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumerank/internal/errors"
	"resumerank/internal/intake"
)

// DefaultMaxItems caps the number of items present at once
const DefaultMaxItems = 500

// State is the lifecycle position of a queue item
type State string

const (
	StateQueued    State = "queued"
	StateUploading State = "uploading"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Item is a snapshot of one queued file. Callers always receive copies.
type Item struct {
	ID          string             `json:"id"`
	Payload     intake.Source      `json:"-"`
	Name        string             `json:"name"`
	Size        int64              `json:"size"`
	Fingerprint intake.Fingerprint `json:"-"`
	State       State              `json:"state"`
	Progress    int                `json:"progress"`
	Error       string             `json:"error,omitempty"`
	Seq         uint64             `json:"seq"`
	AddedAt     time.Time          `json:"added_at"`
}

// Removable reports whether a user may delete the item
func (i Item) Removable() bool {
	return i.State == StateQueued || i.State == StateFailed
}

// Stats are point-in-time queue counters
type Stats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Uploading int `json:"uploading"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
	Capacity  int `json:"capacity"`
}

// Options configures a Queue
type Options struct {
	MaxItems  int
	Validator *intake.Validator
	Hasher    *intake.Hasher
	Logger    *errors.Logger
	// Observe is notified of every Add outcome; code is "" on success
	Observe func(code string)
}

// Queue is safe for concurrent use
type Queue struct {
	mu      sync.RWMutex
	items   map[string]*Item
	order   []string
	index   map[string]string // fingerprint -> item id
	seq     uint64
	skipped int
	rejects int

	maxItems  int
	validator *intake.Validator
	hasher    *intake.Hasher
	logger    *errors.Logger
	observe   func(code string)
}

// New creates an empty queue
func New(opts Options) *Queue {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	if opts.Validator == nil {
		opts.Validator = intake.NewValidator(0, nil)
	}
	if opts.Hasher == nil {
		opts.Hasher = intake.NewHasher(opts.Logger)
	}

	return &Queue{
		items:     make(map[string]*Item),
		index:     make(map[string]string),
		maxItems:  opts.MaxItems,
		validator: opts.Validator,
		hasher:    opts.Hasher,
		logger:    opts.Logger,
		observe:   opts.Observe,
	}
}

// Capacity returns the configured item limit
func (q *Queue) Capacity() int { return q.maxItems }

// Add validates, fingerprints and enqueues src. Capacity is checked before
// any other work. Rejections are AppErrors with QUEUE_FULL, FILE_TOO_LARGE,
// UNSUPPORTED_FILE_TYPE or DUPLICATE_FILE.
func (q *Queue) Add(src intake.Source) (Item, error) {
	if q.Len() >= q.maxItems {
		return Item{}, q.reject(q.fullError(src), false)
	}

	if err := q.validator.Validate(src); err != nil {
		return Item{}, q.reject(err, false)
	}

	// hashing reads the whole payload, so it happens outside the lock
	fp := q.hasher.Fingerprint(src)

	q.mu.Lock()
	if len(q.items) >= q.maxItems {
		q.mu.Unlock()
		return Item{}, q.reject(q.fullError(src), false)
	}
	if existing, ok := q.index[fp.Value]; ok {
		q.mu.Unlock()
		err := errors.NewValidationError(errors.ErrCodeDuplicateFile,
			fmt.Sprintf("%s is already in the queue", src.Name()), nil).
			WithContext("file", src.Name()).
			WithContext("existing_id", existing)
		return Item{}, q.reject(err, true)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	q.seq++
	item := &Item{
		ID:          id.String(),
		Payload:     src,
		Name:        src.Name(),
		Size:        src.Size(),
		Fingerprint: fp,
		State:       StateQueued,
		Seq:         q.seq,
		AddedAt:     time.Now(),
	}
	q.items[item.ID] = item
	q.order = append(q.order, item.ID)
	q.index[fp.Value] = item.ID
	snapshot := *item
	q.mu.Unlock()

	q.logger.Debug("File queued", "id", snapshot.ID, "file", snapshot.Name, "weak_fingerprint", fp.Weak)
	if q.observe != nil {
		q.observe("")
	}
	return snapshot, nil
}

func (q *Queue) fullError(src intake.Source) error {
	return errors.NewValidationError(errors.ErrCodeQueueFull,
		fmt.Sprintf("queue is full (maximum %d files)", q.maxItems), nil).
		WithContext("file", src.Name())
}

func (q *Queue) reject(err error, duplicate bool) error {
	q.mu.Lock()
	if duplicate {
		q.skipped++
	} else {
		q.rejects++
	}
	q.mu.Unlock()

	if q.observe != nil {
		q.observe(errors.CodeOf(err))
	}
	return err
}

// Remove deletes an item and its fingerprint. Removing an absent id is a
// no-op; uploading and done items cannot be removed.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return nil
	}
	if !item.Removable() {
		return errors.NewValidationError(errors.ErrCodeItemNotRemovable,
			fmt.Sprintf("%s is %s and cannot be removed", item.Name, item.State), nil).
			WithContext("id", id)
	}

	q.deleteLocked(id)
	return nil
}

func (q *Queue) deleteLocked(id string) {
	item := q.items[id]
	delete(q.items, id)
	if owner, ok := q.index[item.Fingerprint.Value]; ok && owner == id {
		delete(q.index, item.Fingerprint.Value)
	}
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Clear empties the queue and the dedup index in one step. In-flight uploads
// become orphans and their completions are ignored.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make(map[string]*Item)
	q.index = make(map[string]string)
	q.order = nil
}

// ResetCounters zeroes the skipped and rejected counters
func (q *Queue) ResetCounters() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.skipped = 0
	q.rejects = 0
}

// ResetForRetry returns every item to queued with no progress or error
func (q *Queue) ResetForRetry() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		item.State = StateQueued
		item.Progress = 0
		item.Error = ""
	}
}

// Snapshot returns copies of every item in insertion order
func (q *Queue) Snapshot() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Item, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.items[id])
	}
	return out
}

// Queued returns copies of the queued items in insertion order
func (q *Queue) Queued() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []Item
	for _, id := range q.order {
		if item := q.items[id]; item.State == StateQueued {
			out = append(out, *item)
		}
	}
	return out
}

// MarkUploading claims a queued item. It returns false when the item is gone
// or has already been claimed.
func (q *Queue) MarkUploading(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok || item.State != StateQueued {
		return false
	}
	item.State = StateUploading
	item.Progress = 0
	item.Error = ""
	return true
}

// SetProgress records upload progress, clamped to [0,100]
func (q *Queue) SetProgress(id string, pct int) bool {
	pct = max(0, min(pct, 100))

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok || item.State != StateUploading {
		return false
	}
	item.Progress = pct
	return true
}

// MarkDone finishes an uploading item
func (q *Queue) MarkDone(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok || item.State != StateUploading {
		return false
	}
	item.State = StateDone
	item.Progress = 100
	item.Error = ""
	return true
}

// MarkFailed records a failed upload. An empty message is replaced so that
// failed items always carry a reason.
func (q *Queue) MarkFailed(id, msg string) bool {
	if msg == "" {
		msg = "Upload failed"
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok || item.State != StateUploading {
		return false
	}
	item.State = StateFailed
	item.Error = msg
	return true
}

// Get returns a copy of the item with the given id
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Has reports whether id is present
func (q *Queue) Has(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.items[id]
	return ok
}

// Len returns the number of present items
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Stats counts items per state
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := Stats{
		Total:    len(q.items),
		Skipped:  q.skipped,
		Rejected: q.rejects,
		Capacity: q.maxItems,
	}
	for _, item := range q.items {
		switch item.State {
		case StateQueued:
			s.Queued++
		case StateUploading:
			s.Uploading++
		case StateDone:
			s.Done++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}
