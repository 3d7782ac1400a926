// Package models defines the core data structures for the Qurain bot.
//
// It includes the inbound message record produced by the webhook adapter,
// the gateway callback payload shape, and the API response envelope shared
// across modules.
package models

import (
	"encoding/json"
	"errors"
)

// Error variables for better error handling and testability
var (
	ErrMissingUserID      = errors.New("payload is missing a user identifier")
	ErrMissingMessageText = errors.New("payload is missing a message body")
	ErrNoMessages         = errors.New("payload contains no messages")
)

// IncomingMessage is the normalized form of a gateway callback, as handed
// to the conversation engine by the webhook adapter.
type IncomingMessage struct {
	UserID   string `json:"user_id"`   // gateway chat identifier (remoteJid)
	Text     string `json:"text"`      // trimmed message body
	FromSelf bool   `json:"from_self"` // true for echoes of our own sends
}

// WebhookPayload mirrors the callback body posted by the WhatsApp gateway.
// Some gateway versions nest the interesting part under "data"; both shapes
// are accepted.
type WebhookPayload struct {
	Event string       `json:"event,omitempty"`
	Data  *webhookData `json:"data,omitempty"`
	webhookData
}

type webhookData struct {
	Messages *WebhookMessages `json:"messages,omitempty"`
}

// WebhookMessages carries a single inbound message in the gateway's wire shape.
type WebhookMessages struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Message struct {
		Conversation string `json:"conversation"`
	} `json:"message"`
}

// TestEvent is the event name the gateway sends to verify webhook connectivity.
const TestEvent = "webhook.test"

// IsTest reports whether the payload is a bare connectivity-test event.
func (p *WebhookPayload) IsTest() bool {
	return p.Event == TestEvent
}

// Incoming extracts the normalized inbound message from the payload.
func (p *WebhookPayload) Incoming() (IncomingMessage, error) {
	msgs := p.Messages
	if p.Data != nil && p.Data.Messages != nil {
		msgs = p.Data.Messages
	}
	if msgs == nil {
		return IncomingMessage{}, ErrNoMessages
	}
	if msgs.Key.RemoteJID == "" {
		return IncomingMessage{}, ErrMissingUserID
	}
	return IncomingMessage{
		UserID:   msgs.Key.RemoteJID,
		Text:     msgs.Message.Conversation,
		FromSelf: msgs.Key.FromMe,
	}, nil
}

// ParseWebhookPayload decodes a raw gateway callback body.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProcessingStatus tags the outcome of a webhook call, as reported in the
// HTTP response body.
type ProcessingStatus string

const (
	// StatusProcessed indicates the message was dispatched to the engine.
	StatusProcessed ProcessingStatus = "processed"
	// StatusIgnored indicates the message was dropped before or by the engine.
	StatusIgnored ProcessingStatus = "ignored"
	// StatusTestOK acknowledges a gateway connectivity test.
	StatusTestOK ProcessingStatus = "test_ok"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
