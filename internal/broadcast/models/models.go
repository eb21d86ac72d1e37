// Package models holds broadcast messages and per-identity read state.
package models

import (
	"time"

	id "clocklayer/pkg/domain"
)

// Message is an admin announcement. Messages are append-only.
type Message struct {
	ID        id.MessageID `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Inbox is one identity's view of the broadcast feed, newest first.
type Inbox struct {
	Messages   []Message  `json:"messages"`
	Unread     int        `json:"unread"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

// NewInbox builds an inbox from messages sorted newest first. A message is
// unread when it was created after lastReadAt; with no read marker every
// message is unread.
func NewInbox(messages []Message, lastReadAt *time.Time) *Inbox {
	inbox := &Inbox{Messages: messages, LastReadAt: lastReadAt}
	if inbox.Messages == nil {
		inbox.Messages = []Message{}
	}
	for _, m := range messages {
		if lastReadAt == nil || m.CreatedAt.After(*lastReadAt) {
			inbox.Unread++
		}
	}
	return inbox
}
