package instruction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
	"draftsmith/internal/schema"
)

func testEntries() []schema.PathEntry {
	return []schema.PathEntry{
		{Path: "title", FieldType: schema.TypeText, Label: "Title"},
		{Path: "summary", FieldType: schema.TypeTextarea, Label: "Summary"},
		{Path: "body", FieldType: schema.TypeRichDocument, Label: "Body"},
		{Path: "hero.image", FieldType: schema.TypeUpload, Label: "Hero Image"},
	}
}

func TestSeedMissingCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore(db.NewMemory())

	created, err := store.SeedMissing(ctx, "post", testEntries())
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	title, err := store.Get(ctx, "post", "title")
	require.NoError(t, err)
	assert.Equal(t, "text", title.ModelID)
	assert.Contains(t, title.Template, "Title")

	body, err := store.Get(ctx, "post", "body")
	require.NoError(t, err)
	assert.Equal(t, "richtext", body.ModelID)

	hero, err := store.Get(ctx, "post", "hero.image")
	require.NoError(t, err)
	assert.Equal(t, "image", hero.ModelID)
}

func TestSeedMissingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(db.NewMemory())

	entries := testEntries()
	_, err := store.SeedMissing(ctx, "post", entries)
	require.NoError(t, err)

	// An edited instruction must survive a reseed untouched.
	rec, err := store.Get(ctx, "post", "title")
	require.NoError(t, err)
	rec.Template = "Write a punchy title about {{ topic }}."
	require.NoError(t, store.Upsert(ctx, rec))

	created, err := store.SeedMissing(ctx, "post", entries)
	require.NoError(t, err)
	assert.Zero(t, created)

	again, err := store.Get(ctx, "post", "title")
	require.NoError(t, err)
	assert.Equal(t, "Write a punchy title about {{ topic }}.", again.Template)
}

func TestSeedMissingOnlyFillsGaps(t *testing.T) {
	ctx := context.Background()
	store := NewStore(db.NewMemory())

	entries := testEntries()
	_, err := store.SeedMissing(ctx, "post", entries[:2])
	require.NoError(t, err)

	created, err := store.SeedMissing(ctx, "post", entries)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	list, err := store.List(ctx, "post")
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestGetNormalizesLivePath(t *testing.T) {
	ctx := context.Background()
	store := NewStore(db.NewMemory())

	require.NoError(t, store.Upsert(ctx, &models.InstructionRecord{
		DocumentType: "post",
		SchemaPath:   "items.title",
		FieldType:    "text",
		ModelID:      "text",
		Template:     "t",
	}))

	rec, err := store.Get(ctx, "post", "items.4.title")
	require.NoError(t, err)
	assert.Equal(t, "items.title", rec.SchemaPath)
}

func TestUpsertAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(db.NewMemory())

	rec := &models.InstructionRecord{
		DocumentType: "post",
		SchemaPath:   "title",
		FieldType:    "text",
		ModelID:      "text",
	}
	require.NoError(t, store.Upsert(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	assert.Error(t, store.Upsert(ctx, &models.InstructionRecord{SchemaPath: "x"}))
}

func TestDefaultModelID(t *testing.T) {
	assert.Equal(t, "richtext", DefaultModelID(schema.TypeRichDocument))
	assert.Equal(t, "image", DefaultModelID(schema.TypeUpload))
	assert.Equal(t, "text", DefaultModelID(schema.TypeText))
	assert.Equal(t, "text", DefaultModelID(schema.TypeTextarea))
}
