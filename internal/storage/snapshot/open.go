package snapshot

import (
	"context"
	"fmt"
)

const BackendNone = "none"

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string
	DSN     string
	Schema  string
}

// Open returns the configured backend. BackendNone yields a nil Store and no
// error; callers treat that as "persistence disabled".
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendPebble:
		st, err := OpenPebble(opts.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendPostgres:
		var pgOpts []PostgresOption
		if opts.Schema != "" {
			pgOpts = append(pgOpts, WithSchema(opts.Schema))
		}
		st, err := OpenPostgres(ctx, opts.DSN, pgOpts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown backend %q", opts.Backend)
	}
}
