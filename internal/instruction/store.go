// Package instruction manages per-field generation instructions: the stored
// template, model choice and settings bound to one schema path of a document
// type.
package instruction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
	"draftsmith/internal/schema"
)

// seedConcurrency bounds parallel existence checks during seeding.
const seedConcurrency = 4

// Store provides instruction lookup and seeding on top of a record store.
type Store struct {
	db db.Store
}

// NewStore creates a new instruction store.
func NewStore(store db.Store) *Store {
	return &Store{db: store}
}

// Get returns the instruction bound to a field, addressed by any live path.
// The path is normalized before lookup, so "items.3.title" and "items.title"
// resolve the same record. Returns db.ErrNotFound when no instruction exists.
func (s *Store) Get(ctx context.Context, documentType, livePath string) (*models.InstructionRecord, error) {
	return s.db.GetInstruction(ctx, documentType, schema.Normalize(livePath))
}

// GetByID returns one instruction by its record id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.InstructionRecord, error) {
	return s.db.GetInstructionByID(ctx, id)
}

// List returns all instructions for a document type, ordered by schema path.
func (s *Store) List(ctx context.Context, documentType string) ([]models.InstructionRecord, error) {
	return s.db.ListInstructions(ctx, documentType)
}

// Upsert stores an instruction, assigning an id when missing.
func (s *Store) Upsert(ctx context.Context, rec *models.InstructionRecord) error {
	if rec.DocumentType == "" || rec.SchemaPath == "" {
		return errors.New("instruction requires document type and schema path")
	}
	rec.SchemaPath = schema.Normalize(rec.SchemaPath)
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return s.db.UpsertInstruction(ctx, rec)
}

// SeedMissing creates a default instruction for every schema path entry that
// has none yet. It is idempotent: each entry is guarded by an existence check
// keyed on (documentType, schemaPath), so re-running after a partial failure
// never duplicates records. Returns the number of records created.
func (s *Store) SeedMissing(ctx context.Context, documentType string, entries []schema.PathEntry) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)

	created := make([]bool, len(entries))
	for i, entry := range entries {
		g.Go(func() error {
			_, err := s.db.GetInstruction(ctx, documentType, entry.Path)
			if err == nil {
				return nil
			}
			if !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("checking instruction for %s: %w", entry.Path, err)
			}

			rec := &models.InstructionRecord{
				ID:           uuid.New().String(),
				DocumentType: documentType,
				SchemaPath:   entry.Path,
				FieldType:    string(entry.FieldType),
				ModelID:      DefaultModelID(entry.FieldType),
				Template:     defaultTemplate(entry),
			}
			if err := s.db.UpsertInstruction(ctx, rec); err != nil {
				return fmt.Errorf("seeding instruction for %s: %w", entry.Path, err)
			}
			created[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, c := range created {
		if c {
			n++
		}
	}
	if n > 0 {
		slog.Info("seeded default instructions", "document_type", documentType, "created", n)
	}
	return n, nil
}

// DefaultModelID picks the stock model alias for a field type.
func DefaultModelID(t schema.FieldType) string {
	switch t {
	case schema.TypeRichDocument:
		return "richtext"
	case schema.TypeUpload:
		return "image"
	default:
		return "text"
	}
}

func defaultTemplate(entry schema.PathEntry) string {
	label := entry.Label
	if label == "" {
		label = entry.Path
	}
	switch entry.FieldType {
	case schema.TypeRichDocument:
		return fmt.Sprintf("Write the %s as well-structured rich text, drawing on the rest of the document for context.", label)
	case schema.TypeUpload:
		return fmt.Sprintf("Generate an image suitable for the %s of this document.", label)
	default:
		return fmt.Sprintf("Write the %s for this document.", label)
	}
}
