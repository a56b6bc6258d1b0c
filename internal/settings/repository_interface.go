package settings

import "context"

type Repository interface {
	Load(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, upd Update) (*Settings, error)
}
