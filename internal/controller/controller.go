// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/eyeq-tui/internal/backend"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
)

// User-facing apologies, one per exchange kind. Raw errors are logged only.
const (
	SendApology       = "Sorry, I couldn't complete that review. Please try again."
	RegenerateApology = "Sorry, I couldn't regenerate that response. Please try again."
	EditApology       = "Sorry, I couldn't process your edited message. Please try again."
)

var (
	// ErrExchangeInProgress is returned when the conversation already has
	// an exchange running.
	ErrExchangeInProgress = errors.New("an exchange is already in progress for this conversation")

	// ErrEmptyMessage is returned for a send with no text and no file.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoActiveConversation is returned by operations that need one.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrMessageNotFound is returned for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotRegenerable is returned when the target is not an assistant
	// message directly preceded by a user message.
	ErrNotRegenerable = errors.New("message cannot be regenerated")

	// ErrNoUserMessage is returned by EditAndResend on a conversation
	// without user messages.
	ErrNoUserMessage = errors.New("conversation has no user message to edit")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is what the controller needs from the analysis service.
type Backend interface {
	Analyze(ctx context.Context, req backend.AnalyzeRequest, cb backend.Callback) error
	ComprehensiveReview(ctx context.Context, req backend.ReviewRequest, cb backend.Callback) error
	Upload(ctx context.Context, name string, data []byte) (*backend.UploadResult, error)
	Feedback(ctx context.Context, fb backend.FeedbackRequest) error
}

// Options configures a Controller.
type Options struct {
	// SessionID is sent with every request. Empty uses the conversation id.
	SessionID string

	// OnPhase is called on every phase change, on the exchange goroutine.
	OnPhase func(conversationID string, p Phase)

	Logger *slog.Logger
}

// Result describes how an exchange settled.
type Result struct {
	ConversationID string
	// MessageID is the assistant message produced by the exchange.
	MessageID string
	Phase     Phase
	// Err is the logged cause when Phase is PhaseSettledError.
	Err error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller mediates between UI intents, the repository and the backend.
type Controller struct {
	repo    *conversation.Repository
	backend Backend
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	active map[string]bool  // conversations with an exchange in flight
	phases map[string]Phase // last phase per conversation
}

// New creates a Controller.
func New(repo *conversation.Repository, be Backend, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		repo:    repo,
		backend: be,
		opts:    opts,
		log:     logger.With("component", "controller"),
		active:  make(map[string]bool),
		phases:  make(map[string]Phase),
	}
}

// Phase returns the current phase for a conversation.
func (c *Controller) Phase(conversationID string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[conversationID]
}

// Busy reports whether conversationID has an exchange in flight.
func (c *Controller) Busy(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[conversationID]
}

func (c *Controller) setPhase(convID string, p Phase) {
	c.mu.Lock()
	c.phases[convID] = p
	c.mu.Unlock()
	c.log.Debug("phase", "conversation", convID, "phase", p)
	if c.opts.OnPhase != nil {
		c.opts.OnPhase(convID, p)
	}
}

// acquire claims the exchange slot for convID.
func (c *Controller) acquire(convID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[convID] {
		return false
	}
	c.active[convID] = true
	return true
}

func (c *Controller) release(convID string) {
	c.mu.Lock()
	delete(c.active, convID)
	c.mu.Unlock()
}

func (c *Controller) sessionID(convID string) string {
	if c.opts.SessionID != "" {
		return c.opts.SessionID
	}
	return convID
}

// =============================================================================
// INTENTS
// =============================================================================

// SendMessage runs a full exchange on the active conversation, creating one
// first when the repository is on the homepage. file may be nil.
func (c *Controller) SendMessage(ctx context.Context, text string, file *FileInput, attachments []model.Attachment) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return Result{}, ErrEmptyMessage
	}

	convID := c.repo.ActiveID()
	if convID == "" {
		convID = c.repo.CreateOnFirstMessage()
	}
	return c.SendTo(ctx, convID, text, file, attachments)
}

// SendTo runs a full exchange on a specific conversation, whether or not it
// is the active one.
func (c *Controller) SendTo(ctx context.Context, convID, text string, file *FileInput, attachments []model.Attachment) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return Result{ConversationID: convID}, ErrEmptyMessage
	}
	user := model.NewUserMessage(text)
	if len(attachments) > 0 {
		user.Attachments = append([]model.Attachment(nil), attachments...)
	}
	return c.send(ctx, convID, user, file)
}

// Review runs a comprehensive review of a whole document on convID. The
// material is kept as the user message, so Regenerate and EditLast repeat
// the review instead of a chat analysis. product may be empty.
func (c *Controller) Review(ctx context.Context, convID, material, product string, file *FileInput) (Result, error) {
	material = strings.TrimSpace(material)
	if material == "" && file == nil {
		return Result{ConversationID: convID}, ErrEmptyMessage
	}
	user := model.NewUserMessage(material)
	user.Review = &model.ReviewMode{Product: strings.TrimSpace(product)}
	return c.send(ctx, convID, user, file)
}

// send appends user to convID, ingests file and runs the exchange.
func (c *Controller) send(ctx context.Context, convID string, user model.Message, file *FileInput) (Result, error) {
	if !c.acquire(convID) {
		return Result{ConversationID: convID}, ErrExchangeInProgress
	}
	defer c.release(convID)
	c.setPhase(convID, PhaseAwaitingConversation)

	conv, ok := c.repo.Get(convID)
	if !ok {
		return Result{ConversationID: convID}, ErrNoActiveConversation
	}

	if file != nil {
		user.FileName = file.Name
	}
	msgs := append(conv.Messages, user)
	if err := c.repo.ReplaceMessages(convID, msgs); err != nil {
		return Result{ConversationID: convID}, err
	}

	if file != nil {
		c.setPhase(convID, PhaseUploading)
		uploaded := c.ingest(ctx, file)
		user.FileContent = uploaded.Content
		msgs[len(msgs)-1] = user
		if err := c.repo.ReplaceMessages(convID, msgs); err != nil {
			return Result{ConversationID: convID}, err
		}
	}

	return c.exchange(ctx, convID, msgs, user, SendApology), nil
}

// Regenerate replaces an assistant message with a fresh response to the
// user message before it. The target and everything after it are dropped.
func (c *Controller) Regenerate(ctx context.Context, assistantMessageID string) (Result, error) {
	convID, _, ok := c.repo.FindMessage(assistantMessageID)
	if !ok {
		return Result{}, ErrMessageNotFound
	}
	if !c.acquire(convID) {
		return Result{ConversationID: convID}, ErrExchangeInProgress
	}
	defer c.release(convID)

	conv, ok := c.repo.Get(convID)
	if !ok {
		return Result{}, ErrMessageNotFound
	}
	i := conv.IndexOf(assistantMessageID)
	if i < 1 || conv.Messages[i].Role != model.RoleAssistant || conv.Messages[i-1].Role != model.RoleUser {
		return Result{ConversationID: convID}, ErrNotRegenerable
	}

	user := conv.Messages[i-1]
	msgs := conv.Messages[:i]
	return c.exchange(ctx, convID, msgs, user, RegenerateApology), nil
}

// EditAndResend replaces the text of the active conversation's last user
// message, drops everything after it and runs a new exchange.
func (c *Controller) EditAndResend(ctx context.Context, newText string) (Result, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return Result{}, ErrEmptyMessage
	}
	convID := c.repo.ActiveID()
	if convID == "" {
		return Result{}, ErrNoActiveConversation
	}
	return c.EditLast(ctx, convID, newText)
}

// EditLast is EditAndResend for a specific conversation.
func (c *Controller) EditLast(ctx context.Context, convID, newText string) (Result, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return Result{ConversationID: convID}, ErrEmptyMessage
	}
	if !c.acquire(convID) {
		return Result{ConversationID: convID}, ErrExchangeInProgress
	}
	defer c.release(convID)

	conv, ok := c.repo.Get(convID)
	if !ok {
		return Result{}, ErrNoActiveConversation
	}
	i := conv.LastUserIndex()
	if i < 0 {
		return Result{ConversationID: convID}, ErrNoUserMessage
	}

	user := conv.Messages[i]
	user.Content = newText
	msgs := append(conv.Messages[:i], user)
	if err := c.repo.ReplaceMessages(convID, msgs); err != nil {
		return Result{ConversationID: convID}, err
	}

	return c.exchange(ctx, convID, msgs, user, EditApology), nil
}

// SubmitFeedback records a verdict on an assistant message locally and
// reports it to the backend. The local verdict is kept even when the
// report fails.
func (c *Controller) SubmitFeedback(ctx context.Context, messageID string, fb model.Feedback) error {
	if !fb.Valid() {
		return fmt.Errorf("invalid feedback %q", fb)
	}
	convID, msg, ok := c.repo.FindMessage(messageID)
	if !ok {
		return ErrMessageNotFound
	}
	if msg.Role != model.RoleAssistant || !msg.Status.Terminal() {
		return fmt.Errorf("feedback applies to completed assistant messages")
	}

	conv, ok := c.repo.Get(convID)
	if !ok {
		return ErrMessageNotFound
	}
	if i := conv.IndexOf(messageID); i >= 0 {
		conv.Messages[i].Feedback = fb
		if err := c.repo.ReplaceMessages(convID, conv.Messages); err != nil {
			return err
		}
	}

	err := c.backend.Feedback(ctx, backend.FeedbackRequest{
		MessageID:      messageID,
		MessageContent: msg.Content,
		FeedbackType:   fb,
		ConversationID: convID,
	})
	if err != nil {
		c.log.Warn("feedback not delivered", "message", messageID, "error", err)
		return err
	}
	return nil
}

// =============================================================================
// EXCHANGE
// =============================================================================

// stream sends user to the endpoint matching how it was submitted.
func (c *Controller) stream(ctx context.Context, convID string, user model.Message, cb backend.Callback) error {
	payload := ComposePayload(user.Content, user.FileContent, user.Attachments)
	if user.Review != nil {
		return c.backend.ComprehensiveReview(ctx, backend.ReviewRequest{
			MaterialText: payload,
			ProductName:  user.Review.Product,
			SessionID:    c.sessionID(convID),
			Streaming:    true,
		}, cb)
	}
	return c.backend.Analyze(ctx, backend.AnalyzeRequest{
		Message:   payload,
		SessionID: c.sessionID(convID),
		Streaming: true,
	}, cb)
}

// exchange appends a streaming placeholder after base, streams the
// response to user into it and settles it. The caller holds the slot for
// convID.
func (c *Controller) exchange(ctx context.Context, convID string, base []model.Message, user model.Message, apology string) Result {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	placeholder := model.NewAssistantPlaceholder()
	msgs := append(model.CloneMessages(base), placeholder)
	if err := c.repo.ReplaceMessages(convID, msgs); err != nil {
		c.log.Error("could not append placeholder", "conversation", convID, "error", err)
		c.setPhase(convID, PhaseSettledError)
		return Result{ConversationID: convID, Phase: PhaseSettledError, Err: err}
	}
	c.setPhase(convID, PhaseStreaming)

	var (
		acc  strings.Builder
		done *backend.Event
	)
	err := c.stream(ctx, convID, user, func(ev backend.Event) {
		switch ev.Kind {
		case backend.EventChunk:
			acc.WriteString(ev.Chunk)
			if err := c.fold(convID, placeholder.WithContent(acc.String())); err != nil {
				cancel(err)
			}
		case backend.EventDone:
			e := ev
			done = &e
		}
	})

	res := Result{ConversationID: convID, MessageID: placeholder.ID}
	var settled model.Message
	switch {
	case err != nil:
		res.Err = err
	case done == nil:
		res.Err = backend.ErrEmptyStream
	default:
		content := acc.String()
		if done.HasFullResponse {
			content = done.FullResponse
		}
		settled = placeholder.Finalize(content, done.Analysis, done.Citations)
	}

	if res.Err != nil {
		c.log.Error("exchange failed", "conversation", convID, "error", res.Err, "partial_chars", acc.Len())
		settled = placeholder.Fail(apology, acc.String())
		res.Phase = PhaseSettledError
	} else {
		res.Phase = PhaseSettledSuccess
	}

	if err := c.fold(convID, settled); err != nil {
		c.log.Warn("could not settle exchange", "conversation", convID, "error", err)
	}
	c.setPhase(convID, res.Phase)
	return res
}

// fold writes msg over the message with the same id in convID.
func (c *Controller) fold(convID string, msg model.Message) error {
	conv, ok := c.repo.Get(convID)
	if !ok {
		return conversation.ErrNotFound
	}
	i := conv.IndexOf(msg.ID)
	if i < 0 {
		return ErrMessageNotFound
	}
	conv.Messages[i] = msg
	return c.repo.ReplaceMessages(convID, conv.Messages)
}
