package nodestore

import (
	"context"
	"fmt"

	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/tuning"
)

// Open returns the backend named by cfg.Driver.
func Open(cfg tuning.StoreConfig) (host.NodeStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "badger":
		return OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Lister is implemented by stores that can enumerate their worlds.
type Lister interface {
	Worlds(ctx context.Context) ([]string, error)
}

// Flusher is implemented by stores with asynchronous writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Flush waits for queued writes when the store buffers them.
func Flush(ctx context.Context, s host.NodeStore) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
