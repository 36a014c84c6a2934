package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/trainproof/trainproof/internal/filestore"
	"github.com/trainproof/trainproof/internal/model"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// DocumentService registers uploaded evidence documents. The extracted
// text lives on the row; the original upload is archived in the file
// store under the key recorded on the document.
type DocumentService struct {
	documents DocumentStore
	archive   filestore.Store
}

func NewDocumentService(documents DocumentStore, archive filestore.Store) *DocumentService {
	return &DocumentService{documents: documents, archive: archive}
}

func (s *DocumentService) Create(ctx context.Context, name, text string) (*model.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document text is empty", apperr.ErrInvalid)
	}
	sum := sha256.Sum256([]byte(text))
	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:     newID(),
		Name:   name,
		Text:   text,
		Hash:   hex.EncodeToString(sum[:]),
		Status: model.DocumentStatusPending,
		Ctime:  now,
		Mtime:  now,
	}
	key := doc.ID + ".txt"
	if err := filestore.SaveText(ctx, s.archive, key, text); err != nil {
		return nil, fmt.Errorf("archive document text: %w", err)
	}
	doc.TextKey = key
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.documents.Get(ctx, id)
}

// ArchivedText loads the original upload from the archive.
func (s *DocumentService) ArchivedText(ctx context.Context, id string) (string, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.TextKey == "" {
		return "", fmt.Errorf("%w: document has no archived text", apperr.ErrNotFound)
	}
	return filestore.ReadText(ctx, s.archive, doc.TextKey)
}
