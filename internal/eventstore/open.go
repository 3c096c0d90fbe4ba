package eventstore

import (
	"context"
	"fmt"
)

// Open selects a backend by name: "sqlite", "mongo" or "memory".
func Open(ctx context.Context, backend, sqlitePath, mongoURI, mongoDB string) (Store, error) {
	switch backend {
	case "", "sqlite":
		return OpenSQLite(sqlitePath)
	case "mongo":
		return OpenMongo(ctx, mongoURI, mongoDB)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported event store %q", backend)
	}
}
