package model

import "time"

type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // Serialized rich-text markup, replaced wholesale.
	OwnerID   string    `json:"owner_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Presence is a participant's live activity on one document. Never persisted;
// a new report for the same (doc, user) fully replaces the previous record.
type Presence struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsTyping  bool   `json:"isTyping"`
	CursorPos *int   `json:"cursorPos"`
}

// PresenceSnapshot is the full registry state for one document, broadcast on
// every presence report. Subscribers receive snapshots, not deltas.
type PresenceSnapshot struct {
	DocID string     `json:"docId"`
	Users []Presence `json:"users"`
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type UpdateDocRequest struct {
	Content string `json:"content"`
}

type RenameDocRequest struct {
	Title string `json:"title"`
}

type PresenceRequest struct {
	DocID     string `json:"doc_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsTyping  bool   `json:"is_typing"`
	CursorPos *int   `json:"cursor_pos"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
