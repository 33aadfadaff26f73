package presence

import (
	"sync"

	"codraft/internal/document/model"
)

// Registry holds per-document presence state: docID -> userID -> record.
// Pure in-memory state, it never rejects a write and performs no I/O.
// Publishing the snapshots it returns is the caller's job.
type Registry struct {
	mu   sync.Mutex
	docs map[string]map[string]model.Presence
}

func NewRegistry() *Registry {
	return &Registry{
		docs: make(map[string]map[string]model.Presence),
	}
}

// Upsert replaces the record for rec.UserID under docID and returns the full
// current snapshot for that document, ready for re-broadcast. Fields are not
// merged: the new record wins wholesale.
func (r *Registry) Upsert(docID string, rec model.Presence) []model.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.docs[docID]
	if users == nil {
		users = make(map[string]model.Presence)
		r.docs[docID] = users
	}
	users[rec.UserID] = rec

	return r.snapshotLocked(docID)
}

// Snapshot returns a copy of all records for docID. Empty for unknown docs.
func (r *Registry) Snapshot(docID string) []model.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(docID)
}

func (r *Registry) snapshotLocked(docID string) []model.Presence {
	users := r.docs[docID]
	out := make([]model.Presence, 0, len(users))
	for _, rec := range users {
		out = append(out, rec)
	}
	return out
}

// Drop removes all presence state for docID. Called when the document is
// deleted so the registry does not accumulate maps for dead documents.
// Records for live documents are never expired; they persist until restart.
func (r *Registry) Drop(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docID)
}
