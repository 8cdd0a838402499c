package app

import (
	"context"
	"errors"
)

// Migrate creates the warehouse tables when they do not exist yet. It is
// safe to run repeatedly.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot migrate")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	a.Logger.Info().Msg("schema migration complete")
	return nil
}
