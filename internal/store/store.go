package store

import (
	"context"
	"errors"
	"time"

	"meuestoque/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository is the persistence contract shared by the postgres, stoolap and
// in-memory backends. Lookup misses are ErrNotFound. List operations return
// the total count of the filtered set so callers can compute page counts.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (int64, error)

	// ListProducts filters by case-insensitive substring match on name or
	// category when search is non-empty, ordered by creation time descending.
	ListProducts(ctx context.Context, search string, page int, pageSize int) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// CreateSale inserts the sale row and decrements the referenced product's
	// quantity in a single transaction. The decrement is conditional on
	// sufficient stock; ErrInsufficientStock rolls the whole operation back.
	CreateSale(ctx context.Context, sale domain.Sale) (int64, error)
	ListSales(ctx context.Context, page int, pageSize int) ([]domain.SaleWithProduct, int, error)

	DashboardStats(ctx context.Context) (domain.DashboardStats, error)

	// ReportData returns product entries and sale exits with dates inside
	// [start, end] inclusive, each ordered by date descending.
	ReportData(ctx context.Context, start time.Time, end time.Time) (entries []domain.ReportRow, exits []domain.ReportRow, err error)
}
