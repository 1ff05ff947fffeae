package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
)

// SeedProviders inserts seed-file providers that have no stored record and
// sets the global defaults when none are configured yet. Stored records
// win, so a reseed never clobbers runtime edits like rotated keys.
func SeedProviders(ctx context.Context, store db.Store, providers []models.ProviderSettings, defaults models.GlobalDefaults) error {
	for i := range providers {
		p := providers[i]
		_, err := store.GetProvider(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("check provider %s: %w", p.ID, err)
		}
		p.UpdatedAt = time.Now().UTC()
		if err := store.UpsertProvider(ctx, &p); err != nil {
			return fmt.Errorf("seed provider %s: %w", p.ID, err)
		}
	}

	if len(defaults) == 0 {
		return nil
	}
	stored, err := store.GetDefaults(ctx)
	if err != nil {
		return fmt.Errorf("get defaults: %w", err)
	}
	if len(stored) > 0 {
		return nil
	}
	if err := store.SetDefaults(ctx, defaults); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	return nil
}
