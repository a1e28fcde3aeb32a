package domain

import "time"

// ConversationMessage is one turn of an advisor chat.
type ConversationMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}
