package repository

import (
	"database/sql"

	"codraft/internal/document/model"
	"codraft/pkg/logger"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	err := r.DB.QueryRow(`INSERT INTO documents (id, title, content, owner_id, updated_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING updated_at`,
		doc.ID, doc.Title, doc.Content, doc.OwnerID).Scan(&doc.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", doc.ID, err)
	}
	return err
}

// FindByID returns (nil, nil) when no document exists with the given id.
func (r *DocumentRepository) FindByID(docID string) (*model.Document, error) {
	doc := &model.Document{}
	err := r.DB.QueryRow("SELECT id, title, content, owner_id, updated_at FROM documents WHERE id = $1", docID).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load document %s: %v", docID, err)
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) FindByOwner(ownerID string) ([]model.Document, error) {
	rows, err := r.DB.Query("SELECT id, title, content, owner_id, updated_at FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC", ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for owner %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.UpdatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan document row: %v", err)
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ReplaceContent swaps the stored content wholesale and returns the updated
// record. Returns (nil, nil) when the document no longer exists.
func (r *DocumentRepository) ReplaceContent(docID, content string) (*model.Document, error) {
	doc := &model.Document{}
	err := r.DB.QueryRow(`UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2 RETURNING id, title, content, owner_id, updated_at`,
		content, docID).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", docID, err)
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ReplaceTitle(docID, title string) (*model.Document, error) {
	doc := &model.Document{}
	err := r.DB.QueryRow(`UPDATE documents SET title = $1, updated_at = NOW() WHERE id = $2 RETURNING id, title, content, owner_id, updated_at`,
		title, docID).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for doc %s: %v", docID, err)
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) Delete(docID string) error {
	_, err := r.DB.Exec("DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
	}
	return err
}
