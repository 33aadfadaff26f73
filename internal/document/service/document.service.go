package service

import (
	"context"

	"github.com/google/uuid"

	"codraft/internal/bus"
	"codraft/internal/cache"
	"codraft/internal/document/model"
	"codraft/internal/document/repository"
	"codraft/internal/presence"
	"codraft/pkg/logger"
)

const DefaultTitle = "Untitled"

// Topic keys. Per-document feeds are parameterized by document id; creation
// is a single global feed so peers can discover new documents.
const CreatedTopic = "document.created"

func UpdatedTopic(docID string) string {
	return "document.updated." + docID
}

func PresenceTopic(docID string) string {
	return "document.presence." + docID
}

// DocumentService is the mutation gateway: every write follows the same
// validate, persist, publish pipeline. Publish happens strictly after the
// store call returns, which is what gives subscribers per-document ordering.
type DocumentService struct {
	Repo     *repository.DocumentRepository
	Bus      *bus.Bus
	Presence *presence.Registry
	Cache    cache.DocumentCache

	// UpdateRequiresOwner gates content updates on ownership. Deployment
	// policy: off by default, every authenticated caller may edit any
	// document they can name. Delete is always owner-gated.
	UpdateRequiresOwner bool
}

func NewDocumentService(repo *repository.DocumentRepository, b *bus.Bus, reg *presence.Registry, c cache.DocumentCache) *DocumentService {
	return &DocumentService{
		Repo:     repo,
		Bus:      b,
		Presence: reg,
		Cache:    c,
	}
}

// CreateDocument persists a new empty document and announces it on the
// global creation feed. A blank title falls back to a placeholder. There is
// no uniqueness constraint on titles, so creation always succeeds.
func (s *DocumentService) CreateDocument(title, ownerID string) (*model.Document, error) {
	if title == "" {
		title = DefaultTitle
	}

	doc := &model.Document{
		ID:      uuid.NewString(),
		Title:   title,
		Content: "",
		OwnerID: ownerID,
	}
	if err := s.Repo.Create(doc); err != nil {
		return nil, err
	}

	logger.Sugar.Infof("Created document %s (%q) for %s", doc.ID, doc.Title, ownerID)
	s.Bus.Publish(CreatedTopic, doc)
	return doc, nil
}

// UpdateDocument replaces the document's content wholesale and publishes the
// updated record on the document's update topic. Last-write-wins: there is no
// version check, a concurrent writer that commits later silently overwrites
// this write. Returns false when the document does not exist, or when the
// ownership policy is on and the caller is not the owner.
func (s *DocumentService) UpdateDocument(docID, content, callerID string) (bool, error) {
	existing, err := s.Repo.FindByID(docID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		logger.Sugar.Warnf("Update rejected: document %s not found", docID)
		return false, nil
	}
	if s.UpdateRequiresOwner && existing.OwnerID != callerID {
		logger.Sugar.Warnf("Update rejected: %s is not the owner of document %s", callerID, docID)
		return false, nil
	}

	updated, err := s.Repo.ReplaceContent(docID, content)
	if err != nil {
		return false, err
	}
	if updated == nil {
		// Deleted between the existence check and the write.
		return false, nil
	}
	s.invalidate(docID)

	s.Bus.Publish(UpdatedTopic(docID), updated)
	return true, nil
}

// RenameDocument changes the title. Only the owner may rename; the updated
// record goes out on the document's update topic like a content change.
func (s *DocumentService) RenameDocument(docID, title, callerID string) (bool, error) {
	existing, err := s.Repo.FindByID(docID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		logger.Sugar.Warnf("Rename rejected: document %s not found", docID)
		return false, nil
	}
	if existing.OwnerID != callerID {
		logger.Sugar.Warnf("Rename rejected: %s is not the owner of document %s", callerID, docID)
		return false, nil
	}
	if title == "" {
		title = DefaultTitle
	}

	updated, err := s.Repo.ReplaceTitle(docID, title)
	if err != nil {
		return false, err
	}
	if updated == nil {
		return false, nil
	}
	s.invalidate(docID)

	s.Bus.Publish(UpdatedTopic(docID), updated)
	return true, nil
}

// DeleteDocument removes the document. The ownership check is mandatory: a
// denied delete returns false with no side effects at all. Deletions are not
// broadcast; live subscribers on the document's feeds simply go quiet.
func (s *DocumentService) DeleteDocument(docID, callerID string) (bool, error) {
	existing, err := s.Repo.FindByID(docID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		logger.Sugar.Warnf("Delete rejected: document %s not found", docID)
		return false, nil
	}
	if existing.OwnerID != callerID {
		logger.Sugar.Warnf("Delete rejected: %s is not the owner of document %s", callerID, docID)
		return false, nil
	}

	if err := s.Repo.Delete(docID); err != nil {
		return false, err
	}
	s.invalidate(docID)
	s.Presence.Drop(docID)

	logger.Sugar.Infof("Deleted document %s by %s", docID, callerID)
	return true, nil
}

// UpdatePresence records a participant's live state and publishes the full
// registry snapshot for the document on its presence topic. Never fails:
// presence skips persistence entirely.
func (s *DocumentService) UpdatePresence(docID, userID, name, color string, isTyping bool, cursorPos *int) (bool, error) {
	rec := model.Presence{
		UserID:    userID,
		Name:      name,
		Color:     color,
		IsTyping:  isTyping,
		CursorPos: cursorPos,
	}
	users := s.Presence.Upsert(docID, rec)

	s.Bus.Publish(PresenceTopic(docID), model.PresenceSnapshot{DocID: docID, Users: users})
	return true, nil
}

// GetDocument is a cache read-through to the store. Returns (nil, nil) when
// the document does not exist.
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	if doc, err := s.Cache.GetDocument(ctx, docID); err != nil {
		logger.Sugar.Warnf("Cache read failed for doc %s: %v", docID, err)
	} else if doc != nil {
		return doc, nil
	}

	doc, err := s.Repo.FindByID(docID)
	if err != nil || doc == nil {
		return nil, err
	}

	if err := s.Cache.SetDocument(ctx, doc); err != nil {
		logger.Sugar.Warnf("Cache fill failed for doc %s: %v", docID, err)
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments(ownerID string) ([]model.Document, error) {
	return s.Repo.FindByOwner(ownerID)
}

// invalidate drops the cached copy after a mutation. Best effort: a failed
// invalidation only delays freshness until the TTL runs out.
func (s *DocumentService) invalidate(docID string) {
	if err := s.Cache.DeleteDocument(context.Background(), docID); err != nil {
		logger.Sugar.Warnf("Cache invalidation failed for doc %s: %v", docID, err)
	}
}
