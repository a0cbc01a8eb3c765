// Package domain contains core concepts of the chat room.
// This file defines Message events and the visibility rule.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastTarget is the reserved recipient meaning "all present participants".
const BroadcastTarget = "Todos"

// ClockLayout is the human-readable timestamp carried on every message.
const ClockLayout = "15:04:05"

// Status notices synthesized by the room itself.
const (
	JoinNotice  = "entra na sala..."
	LeaveNotice = "sai da sala..."
)

type Kind string

const (
	KindMessage Kind = "message"
	KindPrivate Kind = "private_message"
	KindStatus  Kind = "status"
)

// Message is one entry of the room log.
// From and ID never change after creation; To, Text, Kind and Time may
// be rewritten by the author through an edit. At is the creation
// instant and orders the log regardless of later edits.
type Message struct {
	ID   uuid.UUID
	From string
	To   string
	Text string
	Kind Kind
	Lang string
	Time string
	At   time.Time
}

// VisibleTo decides who may read the message. Public kinds (message,
// status) are visible to everyone; a private message only to its
// author and its addressed recipient. The rule is driven by Kind, not
// by a literal To == BroadcastTarget match.
func (m Message) VisibleTo(user string) bool {
	if m.Kind != KindPrivate {
		return true
	}
	return m.From == user || m.To == user
}

// NewStatusMessage builds a broadcast system notice authored by name.
func NewStatusMessage(name, text string, at time.Time) Message {
	return Message{
		ID:   uuid.New(),
		From: name,
		To:   BroadcastTarget,
		Text: text,
		Kind: KindStatus,
		Time: at.Format(ClockLayout),
		At:   at,
	}
}
