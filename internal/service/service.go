package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"meuestoque/backend/internal/cache"
	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/money"
	"meuestoque/backend/internal/store"
)

const (
	dateLayout    = "2006-01-02"
	statsCacheKey = "dashboard:stats"
	maxPageSize   = 100
)

type actorContextKey struct{}

// WithActor attaches the authenticated user to the request context. Service
// calls read it back instead of consulting ambient session state.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	stats           cache.StatsCache
	statsTTL        time.Duration
	defaultPageSize int
}

func New(repo store.Repository, stats cache.StatsCache, statsTTL time.Duration, defaultPageSize int) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}
	if defaultPageSize < 1 {
		defaultPageSize = 10
	}

	return &Service{
		repo:            repo,
		stats:           stats,
		statsTTL:        statsTTL,
		defaultPageSize: defaultPageSize,
	}
}

func (s *Service) ListProducts(ctx context.Context, search string, page int, pageSize int) (domain.ProductPage, error) {
	page, pageSize = s.normalizePage(page, pageSize)

	items, total, err := s.repo.ListProducts(ctx, strings.TrimSpace(search), page, pageSize)
	if err != nil {
		return domain.ProductPage{}, err
	}

	return domain.ProductPage{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: pageCount(total, pageSize),
	}, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	product, err := s.validateProductInput(input)
	if err != nil {
		return domain.Product{}, err
	}

	id, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateStats(ctx)

	created, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (domain.Product, error) {
	product, err := s.validateProductInput(input)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.invalidateStats(ctx)

	updated, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// CreateSale validates against the product's current stock, then delegates
// to the store's atomic insert-and-decrement. The store re-checks stock
// inside the transaction, so a concurrent submission racing past this
// pre-check still cannot drive the quantity negative.
func (s *Service) CreateSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	if input.Quantity < 1 {
		return domain.Sale{}, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}

	priceCents, err := money.ParseBRL(input.SalePrice)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("sale_price: %w", err)
	}

	saleDate, err := parseDate(input.SaleDate, "sale_date")
	if err != nil {
		return domain.Sale{}, err
	}

	product, err := s.repo.GetProduct(ctx, input.ProductID)
	if err != nil {
		return domain.Sale{}, err
	}
	if product.Quantity < input.Quantity {
		return domain.Sale{}, &InsufficientStockError{Available: product.Quantity}
	}

	sale := domain.Sale{
		ProductID:      input.ProductID,
		Quantity:       input.Quantity,
		SalePriceCents: priceCents,
		SaleDate:       saleDate,
	}

	id, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			// Lost a race since the pre-check; report the quantity left now.
			available := 0
			if current, getErr := s.repo.GetProduct(ctx, input.ProductID); getErr == nil {
				available = current.Quantity
			}
			return domain.Sale{}, &InsufficientStockError{Available: available}
		}
		return domain.Sale{}, err
	}
	s.invalidateStats(ctx)

	sale.ID = id
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, page int, pageSize int) (domain.SalePage, error) {
	page, pageSize = s.normalizePage(page, pageSize)

	items, total, err := s.repo.ListSales(ctx, page, pageSize)
	if err != nil {
		return domain.SalePage{}, err
	}

	return domain.SalePage{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: pageCount(total, pageSize),
	}, nil
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := s.stats.Get(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache get: %v", err)
	} else if ok {
		return *cached, nil
	}

	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if err := s.stats.Set(ctx, statsCacheKey, &stats, s.statsTTL); err != nil {
		log.Printf("[service] WARN: stats cache set: %v", err)
	}
	return stats, nil
}

// Report merges product entries and sale exits into one date-descending
// timeline. Reports only run with a complete range: when either bound is
// missing the result is empty rather than an unbounded scan.
func (s *Service) Report(ctx context.Context, startStr string, endStr string) ([]domain.ReportRow, error) {
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if startStr == "" || endStr == "" {
		return []domain.ReportRow{}, nil
	}

	start, err := parseDate(startStr, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endStr, "end_date")
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, &ValidationError{Field: "start_date", Message: "must not be after end_date"}
	}

	entries, exits, err := s.repo.ReportData(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return mergeTimeline(entries, exits), nil
}

func (s *Service) validateProductInput(input domain.ProductInput) (domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)

	if name == "" {
		return domain.Product{}, &ValidationError{Field: "name", Message: "is required"}
	}
	if category == "" {
		return domain.Product{}, &ValidationError{Field: "category", Message: "is required"}
	}
	// Zero initial stock is deliberately disallowed, including on update.
	if input.Quantity < 1 {
		return domain.Product{}, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}

	purchaseCents, err := money.ParseBRL(input.PurchasePrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("purchase_price: %w", err)
	}
	saleCents, err := money.ParseBRL(input.SalePrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("sale_price: %w", err)
	}

	entryDate, err := parseDate(input.EntryDate, "entry_date")
	if err != nil {
		return domain.Product{}, err
	}

	return domain.Product{
		Name:               name,
		Category:           category,
		Quantity:           input.Quantity,
		PurchasePriceCents: purchaseCents,
		SalePriceCents:     saleCents,
		EntryDate:          entryDate,
	}, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Delete(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache invalidate: %v", err)
	}
}

func (s *Service) normalizePage(page int, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func parseDate(value string, field string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return parsed, nil
}

func pageCount(total int, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}

// mergeTimeline interleaves the two date-sorted streams preserving the
// descending order; within a date, entries keep their retrieval order and
// come before same-date exits, which is stable for identical inputs.
func mergeTimeline(entries []domain.ReportRow, exits []domain.ReportRow) []domain.ReportRow {
	merged := make([]domain.ReportRow, 0, len(entries)+len(exits))
	i, j := 0, 0
	for i < len(entries) && j < len(exits) {
		if exits[j].Date.After(entries[i].Date) {
			merged = append(merged, exits[j])
			j++
			continue
		}
		merged = append(merged, entries[i])
		i++
	}
	merged = append(merged, entries[i:]...)
	merged = append(merged, exits[j:]...)
	return merged
}
