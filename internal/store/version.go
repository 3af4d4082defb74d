package store

import "context"

// writeThenBump applies write and only then advances the store version. A reader that
// takes the version before listing may see a write the version does not count yet, but
// never counts a write it could not see.
func writeThenBump(ctx context.Context, write func(context.Context) error, bump func(context.Context) (uint64, error)) (uint64, error) {
	if err := write(ctx); err != nil {
		return 0, err
	}
	return bump(ctx)
}
