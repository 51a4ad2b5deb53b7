package repository

import (
	"context"
	"fmt"

	"github.com/developia-II/feedback-board-backend/internal/database"
)

// Open connects the backend named by storage: mongo, sqlite, postgres or
// memory. dbName is only used by mongo.
func Open(ctx context.Context, storage, dsn, dbName string) (Store, error) {
	switch storage {
	case "memory":
		return MemoryStore(NewMemory()), nil
	case "mongo":
		if err := database.Connect(dsn, dbName); err != nil {
			return Store{}, fmt.Errorf("connect mongo: %w", err)
		}
		return MongoStore(NewMongo(database.DB)), nil
	case database.SQLite.Name, database.Postgres.Name:
		d, err := database.DialectFor(storage)
		if err != nil {
			return Store{}, err
		}
		db, err := database.OpenSQL(ctx, d, dsn)
		if err != nil {
			return Store{}, fmt.Errorf("open %s: %w", storage, err)
		}
		return SQLStore(NewSQL(db, d)), nil
	}
	return Store{}, fmt.Errorf("unknown storage %q", storage)
}
