package setting

import "context"

type Repository interface {
	List(ctx context.Context) ([]Setting, error)
	// Upsert writes every setting or none.
	Upsert(ctx context.Context, settings []Setting) error
}
