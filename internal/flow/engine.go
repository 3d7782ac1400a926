// Package flow implements the per-message decision logic of the bot: which
// conversation transition an inbound message triggers and which outbound
// texts it produces.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/qurain/qurainbot/internal/catalog"
	"github.com/qurain/qurainbot/internal/messaging"
	"github.com/qurain/qurainbot/internal/store"
	"github.com/qurain/qurainbot/internal/util"
)

// Outcome tags the decision the engine took for one inbound message.
type Outcome string

const (
	// OutcomeStarted means a new conversation began and the first prompt was sent.
	OutcomeStarted Outcome = "started"
	// OutcomeStartFailed means the first prompt could not be delivered and the
	// just-created conversation was rolled back.
	OutcomeStartFailed Outcome = "start_failed"
	// OutcomeAdvanced means an answer was recorded and the next prompt sent.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCompleted means the final answer was recorded and the submission
	// forwarded to the administrator.
	OutcomeCompleted Outcome = "completed"
	// OutcomeIgnored means the message was not recognized and silently dropped.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeHelpSent means the message was not recognized and the service
	// menu was sent back.
	OutcomeHelpSent Outcome = "help_sent"
	// OutcomeIgnoredMenu means the message was a WhatsAuto menu number (1-15)
	// outside any flow.
	OutcomeIgnoredMenu Outcome = "ignored_menu"
	// OutcomeDropped means a mid-flow digit message was discarded per policy.
	OutcomeDropped Outcome = "dropped"
	// OutcomeExited means a mid-flow digit message abandoned the flow per
	// policy, without forwarding the collected data.
	OutcomeExited Outcome = "exited"
)

// UnknownMessagePolicy selects how unrecognized messages outside any flow
// are handled.
type UnknownMessagePolicy string

const (
	// UnknownIgnore silently ignores unrecognized messages.
	UnknownIgnore UnknownMessagePolicy = "ignore"
	// UnknownHelp replies with the service menu.
	UnknownHelp UnknownMessagePolicy = "help"
)

// MidFlowDigitPolicy selects how a digit-only message that is not a service
// code is handled while a flow is active.
type MidFlowDigitPolicy string

const (
	// DigitAnswer records the digits as answer data.
	DigitAnswer MidFlowDigitPolicy = "answer"
	// DigitDrop discards the message and keeps waiting for the current step.
	DigitDrop MidFlowDigitPolicy = "drop"
	// DigitExit abandons the flow without forwarding anything.
	DigitExit MidFlowDigitPolicy = "exit"
)

// WhatsAuto reserves menu option numbers 1-15; taps on those arrive as
// plain messages and must not start or feed a flow.
const (
	menuNumberMin = 1
	menuNumberMax = 15
)

// Option configures an Engine.
type Option func(*Engine)

// WithUnknownMessagePolicy sets the unknown-message policy.
func WithUnknownMessagePolicy(p UnknownMessagePolicy) Option {
	return func(e *Engine) {
		e.unknownPolicy = p
	}
}

// WithMidFlowDigitPolicy sets the mid-flow digit policy.
func WithMidFlowDigitPolicy(p MidFlowDigitPolicy) Option {
	return func(e *Engine) {
		e.digitPolicy = p
	}
}

// WithClock overrides the time source used for admin summaries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine decides, per inbound message, how the user's conversation moves
// and which outbound texts go out. It holds no state of its own; the store
// is the only shared mutable resource it touches, and every send happens
// after the corresponding store mutation has released its lock.
type Engine struct {
	store         store.ConversationStore
	catalog       *catalog.Catalog
	notifier      messaging.Service
	adminPhone    string
	unknownPolicy UnknownMessagePolicy
	digitPolicy   MidFlowDigitPolicy
	now           func() time.Time
}

// NewEngine creates an Engine. adminPhone is the fixed destination for
// completed submissions; if empty, admin forwarding is disabled and logged.
func NewEngine(st store.ConversationStore, cat *catalog.Catalog, notifier messaging.Service, adminPhone string, opts ...Option) *Engine {
	e := &Engine{
		store:         st,
		catalog:       cat,
		notifier:      notifier,
		adminPhone:    adminPhone,
		unknownPolicy: UnknownIgnore,
		digitPolicy:   DigitAnswer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	slog.Debug("Engine created", "unknownPolicy", e.unknownPolicy, "digitPolicy", e.digitPolicy, "adminPhoneSet", adminPhone != "")
	return e
}

// Process handles one inbound message. text must already be trimmed and
// digit-normalized by the caller.
func (e *Engine) Process(ctx context.Context, userID, text string) Outcome {
	phone := phoneFromUserID(userID)

	// A valid service code always wins, even mid-flow: the new flow starts
	// and any collected progress is discarded without forwarding.
	if e.catalog.IsServiceCode(text) {
		return e.startConversation(ctx, userID, phone, text)
	}

	rec, active := e.store.Get(userID)
	if !active {
		return e.handleOutsideFlow(ctx, userID, phone, text)
	}
	return e.handleMidFlow(ctx, userID, phone, text, rec)
}

func (e *Engine) startConversation(ctx context.Context, userID, phone, code string) Outcome {
	def, _ := e.catalog.Lookup(code)
	if _, err := e.store.Begin(userID, code); err != nil {
		slog.Error("Engine.startConversation: begin failed", "error", err, "userID", userID, "serviceCode", code)
		return OutcomeIgnored
	}
	slog.Info("Engine.startConversation: conversation started", "userID", userID, "serviceCode", code, "service", def.Name)

	if err := e.notifier.SendMessage(ctx, phone, def.Steps[0]); err != nil {
		// The user never saw the first prompt; leaving the record in place
		// would strand them in a flow they know nothing about.
		slog.Error("Engine.startConversation: first prompt send failed, rolling back", "error", err, "userID", userID, "serviceCode", code)
		e.store.End(userID)
		return OutcomeStartFailed
	}
	return OutcomeStarted
}

func (e *Engine) handleOutsideFlow(ctx context.Context, userID, phone, text string) Outcome {
	if isMenuNumber(text) {
		slog.Debug("Engine.handleOutsideFlow: ignoring WhatsAuto menu number", "userID", userID, "text", text)
		return OutcomeIgnoredMenu
	}
	if e.unknownPolicy == UnknownHelp {
		if err := e.notifier.SendMessage(ctx, phone, e.helpMessage()); err != nil {
			slog.Error("Engine.handleOutsideFlow: help message send failed", "error", err, "userID", userID)
		}
		return OutcomeHelpSent
	}
	slog.Debug("Engine.handleOutsideFlow: unrecognized message ignored", "userID", userID)
	return OutcomeIgnored
}

func (e *Engine) handleMidFlow(ctx context.Context, userID, phone, text string, rec store.ConversationRecord) Outcome {
	if util.IsDigits(text) {
		switch e.digitPolicy {
		case DigitDrop:
			slog.Debug("Engine.handleMidFlow: dropping digit message per policy", "userID", userID, "text", text)
			return OutcomeDropped
		case DigitExit:
			slog.Info("Engine.handleMidFlow: exiting flow per digit policy", "userID", userID, "serviceCode", rec.ServiceCode, "text", text)
			e.store.End(userID)
			return OutcomeExited
		}
		// DigitAnswer: fall through and record the digits as data.
	}

	updated, complete, err := e.store.RecordAnswer(userID, text)
	if err != nil {
		if errors.Is(err, store.ErrUnknownServiceCode) {
			// Record referenced a service the catalog no longer knows; the
			// store already removed it. Treat the message as unrecognized.
			slog.Error("Engine.handleMidFlow: stale service reference", "userID", userID, "serviceCode", rec.ServiceCode)
			return e.handleOutsideFlow(ctx, userID, phone, text)
		}
		// Raced with expiry or a concurrent completion between Get and
		// RecordAnswer; handle as if no flow was active.
		slog.Debug("Engine.handleMidFlow: record gone before answer", "error", err, "userID", userID)
		return e.handleOutsideFlow(ctx, userID, phone, text)
	}

	def, ok := e.catalog.Lookup(updated.ServiceCode)
	if !ok {
		slog.Error("Engine.handleMidFlow: service vanished after answer", "userID", userID, "serviceCode", updated.ServiceCode)
		e.store.End(userID)
		return OutcomeIgnored
	}

	if !complete {
		if err := e.notifier.SendMessage(ctx, phone, def.Steps[updated.CurrentStep]); err != nil {
			slog.Error("Engine.handleMidFlow: next prompt send failed", "error", err, "userID", userID, "step", updated.CurrentStep)
		}
		return OutcomeAdvanced
	}
	return e.completeConversation(ctx, userID, phone, def, updated)
}

func (e *Engine) completeConversation(ctx context.Context, userID, phone string, def catalog.ServiceDefinition, rec store.ConversationRecord) Outcome {
	summary := e.adminSummary(phone, def, rec)
	e.store.End(userID)
	slog.Info("Engine.completeConversation: submission complete", "userID", userID, "serviceCode", def.Code, "answers", len(rec.Answers))

	// Admin forwarding is at-most-once: a failed send is logged and not
	// retried, and the user confirmation is still attempted.
	if e.adminPhone == "" {
		slog.Warn("Engine.completeConversation: no admin destination configured, submission not forwarded", "serviceCode", def.Code)
	} else if err := e.notifier.SendMessage(ctx, e.adminPhone, summary); err != nil {
		slog.Error("Engine.completeConversation: admin notification failed", "error", err, "serviceCode", def.Code, "userID", userID)
	}

	confirmation := def.Confirmation
	if confirmation == "" {
		confirmation = defaultConfirmation(def.Name)
	}
	if err := e.notifier.SendMessage(ctx, phone, confirmation); err != nil {
		slog.Error("Engine.completeConversation: confirmation send failed", "error", err, "userID", userID)
	}
	return OutcomeCompleted
}

func isMenuNumber(text string) bool {
	if !util.IsDigits(text) || len(text) > 2 {
		return false
	}
	n := int(text[0] - '0')
	if len(text) == 2 {
		n = n*10 + int(text[1]-'0')
	}
	return n >= menuNumberMin && n <= menuNumberMax
}
