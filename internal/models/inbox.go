package models

import "time"

// Message is the wire form of one message.
// ShowTime is set only on the public reader's view.
type Message struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty"`
	Time           time.Time `json:"time"`
	ShowTime       bool      `json:"showTime,omitempty"`
}

// Conversation is a thread with its messages. Title and preview are lower-cased.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	Pinned     bool      `json:"pinned"`
	Icon       string    `json:"icon,omitempty"`
	Index      int       `json:"index"`
	LastActive string    `json:"lastActive,omitempty"`
	Messages   []Message `json:"messages"`
}

// CreateConversationRequest is the POST /api/admin/conversations payload.
// A non-blank Seed becomes the thread's first message.
type CreateConversationRequest struct {
	Title   string  `json:"title"`
	Preview string  `json:"preview"`
	Pinned  bool    `json:"pinned"`
	Seed    string  `json:"seed"`
	Icon    *string `json:"icon"`
	Index   *int    `json:"index"`
}

// PatchConversationRequest is the PATCH /api/admin/conversations payload.
// Blank title or preview count as absent. A blank icon clears it.
type PatchConversationRequest struct {
	ID      string  `json:"id"`
	Title   *string `json:"title"`
	Preview *string `json:"preview"`
	Pinned  *bool   `json:"pinned"`
	Icon    *string `json:"icon"`
	Index   *int    `json:"index"`
}

type DeleteConversationRequest struct {
	ID string `json:"id"`
}

// CreateMessageRequest is the POST /api/admin/messages payload. Either Text or
// AttachmentURL must be set.
type CreateMessageRequest struct {
	ThreadID       string `json:"threadId"`
	Text           string `json:"text"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentType string `json:"attachment_type"`
}

type PatchMessageRequest struct {
	Text string `json:"text"`
}

// UploadResponse is returned by POST /api/admin/uploads.
type UploadResponse struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}
