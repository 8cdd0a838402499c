package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Ping verifies database connectivity and prints the server clock and
// database name.
func (a *App) Ping(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot ping")
	}
	if closeStore != nil {
		defer closeStore()
	}

	serverTime, dbName, err := store.Ping(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "CONNECTED SUCCESSFULLY")
	fmt.Fprintf(os.Stdout, "Server time: %s\n", serverTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "Database:    %s\n", dbName)
	return nil
}
