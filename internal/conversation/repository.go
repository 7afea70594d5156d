// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/storage"
	"github.com/jeranaias/eyeq-tui/internal/util"
)

// InterruptedNotice replaces an assistant message that was still streaming
// when the application last exited.
const InterruptedNotice = "This response was interrupted before it finished. Try regenerating it."

// MaxTitleLength bounds user-supplied titles.
const MaxTitleLength = 200

var (
	// ErrNotFound is returned when no conversation has the given id.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyTitle is returned when a rename would leave no title.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrMultipleStreaming is returned when a message list would contain
	// more than one streaming message.
	ErrMultipleStreaming = errors.New("more than one streaming message")
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what changed in the repository.
type EventKind int

const (
	EventCreated EventKind = iota
	EventUpdated
	EventDeleted
	EventActiveChanged
	EventCleared
	EventThemeChanged
)

// Event is delivered to subscribers after each mutation.
type Event struct {
	Kind           EventKind
	ConversationID string
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the conversation collection. It is safe for concurrent use.
type Repository struct {
	mu       sync.RWMutex
	convs    []*model.Conversation // insertion order
	activeID string
	theme    string

	// dirty bits consumed by the persister
	convsDirty bool
	themeDirty bool

	store *storage.Store
	log   *slog.Logger
	saver *persister

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New loads the collection and theme preference from store and starts the
// background persister. A nil store behaves as an unavailable medium.
func New(store *storage.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if store == nil {
		store = storage.Noop(logger)
	}

	r := &Repository{
		store: store,
		log:   logger.With("component", "conversation"),
		subs:  make(map[int]func(Event)),
	}

	loaded := storage.Load(store, storage.KeyConversations, []model.Conversation{})
	r.convs = make([]*model.Conversation, 0, len(loaded))
	seen := make(map[string]bool, len(loaded))
	for i := range loaded {
		c := loaded[i]
		if c.ID == "" || seen[c.ID] {
			r.log.Warn("skipping stored conversation with missing or duplicate id", "id", c.ID)
			continue
		}
		seen[c.ID] = true
		if recoverInterrupted(&c) {
			r.convsDirty = true
		}
		r.convs = append(r.convs, &c)
	}
	r.theme = storage.Load(store, storage.KeyTheme, "")

	r.saver = newPersister(r.persist)
	if r.convsDirty {
		r.saver.kick()
	}
	r.log.Debug("repository loaded", "conversations", len(r.convs))
	return r
}

// recoverInterrupted settles messages left streaming by a previous process.
func recoverInterrupted(c *model.Conversation) bool {
	changed := false
	for i := range c.Messages {
		m := c.Messages[i]
		if !m.IsStreaming() && !m.IsLoading() {
			continue
		}
		c.Messages[i] = m.Fail(InterruptedNotice, m.Content)
		changed = true
	}
	if c.Messages == nil {
		c.Messages = make([]model.Message, 0)
	}
	return changed
}

// =============================================================================
// NAVIGATION
// =============================================================================

// CreateOnFirstMessage allocates an empty conversation with the sentinel
// title, makes it active and returns its id. It is the only way a
// conversation comes into existence.
func (r *Repository) CreateOnFirstMessage() string {
	c := model.NewConversation()

	r.mu.Lock()
	r.convs = append(r.convs, c)
	r.activeID = c.ID
	r.convsDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.log.Debug("conversation created", "id", c.ID)
	r.notify(Event{Kind: EventCreated, ConversationID: c.ID})
	return c.ID
}

// ReturnToHomepage clears the active pointer. Nothing is created; the next
// send will call CreateOnFirstMessage.
func (r *Repository) ReturnToHomepage() {
	r.mu.Lock()
	changed := r.activeID != ""
	r.activeID = ""
	r.mu.Unlock()

	if changed {
		r.notify(Event{Kind: EventActiveChanged})
	}
}

// SwitchTo makes id the active conversation. Unknown ids are a no-op.
func (r *Repository) SwitchTo(id string) bool {
	r.mu.Lock()
	if r.indexLocked(id) < 0 {
		r.mu.Unlock()
		r.log.Debug("switch to unknown conversation ignored", "id", id)
		return false
	}
	changed := r.activeID != id
	r.activeID = id
	r.mu.Unlock()

	if changed {
		r.notify(Event{Kind: EventActiveChanged, ConversationID: id})
	}
	return true
}

// ActiveID returns the active conversation id, or "" on the homepage.
func (r *Repository) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active returns a copy of the active conversation.
func (r *Repository) Active() (*model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return nil, false
	}
	return r.getLocked(r.activeID)
}

// Get returns a copy of the conversation with id.
func (r *Repository) Get(id string) (*model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

// Len returns the number of conversations.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}

// SortedView returns copies of all conversations, pinned first, otherwise
// in insertion order.
func (r *Repository) SortedView() []*model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Conversation, 0, len(r.convs))
	for _, c := range r.convs {
		if c.Pinned {
			out = append(out, c.Clone())
		}
	}
	for _, c := range r.convs {
		if !c.Pinned {
			out = append(out, c.Clone())
		}
	}
	return out
}

// FindMessage locates a message by id across all conversations.
func (r *Repository) FindMessage(messageID string) (convID string, msg model.Message, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.convs {
		if i := c.IndexOf(messageID); i >= 0 {
			return c.ID, c.Messages[i].Clone(), true
		}
	}
	return "", model.Message{}, false
}

// =============================================================================
// MUTATION
// =============================================================================

// ReplaceMessages atomically replaces the message list of conversation id,
// bumps UpdatedAt and schedules persistence. While the title is still the
// sentinel and a user message exists, the title is derived from the first
// user message in the same step.
func (r *Repository) ReplaceMessages(id string, msgs []model.Message) error {
	streaming := 0
	for i := range msgs {
		if msgs[i].IsStreaming() {
			streaming++
		}
	}
	if streaming > 1 {
		r.log.Error("rejected message list", "id", id, "streaming", streaming)
		return ErrMultipleStreaming
	}

	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		r.log.Debug("replace on unknown conversation ignored", "id", id)
		return ErrNotFound
	}
	c := r.convs[i]
	c.Messages = model.CloneMessages(msgs)
	c.UpdatedAt = time.Now()
	if c.HasSentinelTitle() {
		if first, ok := c.FirstUserMessage(); ok {
			c.Title = model.DeriveTitle(first.Content)
		}
	}
	r.convsDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.notify(Event{Kind: EventUpdated, ConversationID: id})
	return nil
}

// Rename sets a user-chosen title.
func (r *Repository) Rename(id, title string) error {
	title = util.TruncateRunes(strings.TrimSpace(util.SingleLine(title)), MaxTitleLength)
	if title == "" {
		return ErrEmptyTitle
	}
	return r.mutate(id, EventUpdated, func(c *model.Conversation) {
		c.Title = title
	})
}

// TogglePin flips the pinned flag and returns the new value.
func (r *Repository) TogglePin(id string) (bool, error) {
	var pinned bool
	err := r.mutate(id, EventUpdated, func(c *model.Conversation) {
		c.Pinned = !c.Pinned
		pinned = c.Pinned
	})
	return pinned, err
}

// Delete removes a conversation. Deleting the active conversation returns
// the repository to the homepage.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		r.log.Debug("delete of unknown conversation ignored", "id", id)
		return ErrNotFound
	}
	r.convs = append(r.convs[:i], r.convs[i+1:]...)
	if r.activeID == id {
		r.activeID = ""
	}
	r.convsDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.notify(Event{Kind: EventDeleted, ConversationID: id})
	return nil
}

// ClearAll removes every conversation.
func (r *Repository) ClearAll() {
	r.mu.Lock()
	r.convs = make([]*model.Conversation, 0)
	r.activeID = ""
	r.convsDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.notify(Event{Kind: EventCleared})
}

// Theme returns the persisted theme preference, or "" if none was chosen.
func (r *Repository) Theme() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.theme
}

// SetTheme records the theme preference.
func (r *Repository) SetTheme(theme string) {
	r.mu.Lock()
	if r.theme == theme {
		r.mu.Unlock()
		return
	}
	r.theme = theme
	r.themeDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.notify(Event{Kind: EventThemeChanged})
}

func (r *Repository) mutate(id string, kind EventKind, fn func(*model.Conversation)) error {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		r.log.Debug("mutation of unknown conversation ignored", "id", id)
		return ErrNotFound
	}
	fn(r.convs[i])
	r.convsDirty = true
	r.mu.Unlock()

	r.saver.kick()
	r.notify(Event{Kind: kind, ConversationID: id})
	return nil
}

func (r *Repository) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range r.convs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) getLocked(id string) (*model.Conversation, bool) {
	if i := r.indexLocked(id); i >= 0 {
		return r.convs[i].Clone(), true
	}
	return nil, false
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for change events and returns a function that
// removes it. fn runs on the mutating goroutine, outside the repository
// lock, so it may read from the repository.
func (r *Repository) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
		})
	}
}

func (r *Repository) notify(ev Event) {
	r.subMu.Lock()
	fns := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist writes whatever is dirty. It runs on the persister goroutine.
func (r *Repository) persist() {
	r.mu.Lock()
	var snapshot []model.Conversation
	saveConvs := r.convsDirty
	if saveConvs {
		snapshot = make([]model.Conversation, 0, len(r.convs))
		for _, c := range r.convs {
			snapshot = append(snapshot, *c.Clone())
		}
		r.convsDirty = false
	}
	saveTheme := r.themeDirty
	theme := r.theme
	r.themeDirty = false
	r.mu.Unlock()

	if saveConvs {
		r.store.Save(storage.KeyConversations, snapshot)
	}
	if saveTheme {
		r.store.Save(storage.KeyTheme, theme)
	}
}

// Flush blocks until every change made so far has been handed to the store.
func (r *Repository) Flush() {
	r.saver.flush()
}

// Close flushes pending changes and stops the persister. The store is owned
// by the caller and is not closed.
func (r *Repository) Close() {
	r.saver.stop()
}
