package v1

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType partitions envelopes into the four exchange patterns
// carried by the system bus.
type MessageType string

const (
	TypeCommand  MessageType = "command"
	TypeEvent    MessageType = "event"
	TypeQuery    MessageType = "query"
	TypeResponse MessageType = "response"
)

// Envelope is the canonical message unit exchanged over the system bus.
// The field set is a cross-runtime wire contract and must stay backward
// compatible.
//
// MessageID doubles as the idempotency key: consumers treat a redelivered
// MessageID as a duplicate and process it at most once. CorrelationID on a
// response equals the MessageID of the query it answers. An empty Target
// means broadcast to every subscriber of the topic.
type Envelope struct {
	MessageID     string          `json:"message_id"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Source        string          `json:"source"`
	Target        string          `json:"target,omitempty"`
	Topic         string          `json:"topic"`
	Action        string          `json:"action"`
	Type          MessageType     `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Route addresses one message contract: a topic plus the action routed
// inside it. All routes used by the station are declared as constants in
// this package so a handler can never silently miss traffic because of a
// typo'd string at a call site.
type Route struct {
	Topic  string
	Action string
}

func newEnvelope(route Route, kind MessageType, source, target string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload for %s/%s: %w", kind, route.Topic, route.Action, err)
	}
	return Envelope{
		MessageID: uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    target,
		Topic:     route.Topic,
		Action:    route.Action,
		Type:      kind,
		Payload:   raw,
	}, nil
}

// NewQuery builds a query envelope expecting exactly one response
// correlated by MessageID.
func NewQuery(route Route, source, target string, payload any) (Envelope, error) {
	return newEnvelope(route, TypeQuery, source, target, payload)
}

// NewCommand builds a one-way command envelope.
func NewCommand(route Route, source, target string, payload any) (Envelope, error) {
	return newEnvelope(route, TypeCommand, source, target, payload)
}

// NewEvent builds a broadcast event envelope.
func NewEvent(route Route, source string, payload any) (Envelope, error) {
	return newEnvelope(route, TypeEvent, source, "", payload)
}

// NewResponse builds the response to a query or command. The response
// inherits the request's topic and action, targets the requester, and
// carries the request's MessageID as its CorrelationID.
func NewResponse(request Envelope, source string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal response payload for %s/%s: %w", request.Topic, request.Action, err)
	}
	return Envelope{
		MessageID:     uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: request.MessageID,
		Source:        source,
		Target:        request.Source,
		Topic:         request.Topic,
		Action:        request.Action,
		Type:          TypeResponse,
		Payload:       raw,
	}, nil
}

// Decode unmarshals the envelope payload into the typed contract struct
// for its route.
func Decode[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s payload: %w", env.Topic, env.Action, err)
	}
	return out, nil
}
