package customer

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Customer, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Customer, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Customer, error)
}
