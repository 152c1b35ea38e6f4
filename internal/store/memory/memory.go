package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/store"
)

// Store is a mutex-guarded in-memory repository used by unit tests and dev
// mode (no DATABASE_URL or STOOLAP_DSN configured).
type Store struct {
	mu         sync.RWMutex
	users      map[int64]domain.User
	products   map[int64]domain.Product
	sales      map[int64]domain.Sale
	nextUserID int64
	nextProdID int64
	nextSaleID int64
}

// seedAdmin builds the default admin account for dev/demo mode. The password
// comes from SEED_ADMIN_PASSWORD; if unset a hardcoded dev default is used
// with a warning. Production deployments bootstrap the admin through the SQL
// backends instead.
func seedAdmin() domain.User {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		log.Println("[memory-store] WARNING: using default dev admin password. Set SEED_ADMIN_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return domain.User{
		ID:           1,
		Name:         "Administrador",
		Email:        "admin@admin.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
}

func New() *Store {
	admin := seedAdmin()
	return &Store{
		users:      map[int64]domain.User{admin.ID: admin},
		products:   make(map[int64]domain.Product),
		sales:      make(map[int64]domain.Sale),
		nextUserID: admin.ID,
	}
}

// NewSeeded returns a store preloaded with demo products for dev mode.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	entry := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	for _, p := range []domain.Product{
		{Name: "Camiseta Básica", Category: "Vestuário", Quantity: 40, PurchasePriceCents: 1890, SalePriceCents: 3990, EntryDate: entry},
		{Name: "Caneca Esmaltada", Category: "Cozinha", Quantity: 25, PurchasePriceCents: 1250, SalePriceCents: 2590, EntryDate: entry},
		{Name: "Caderno Pautado", Category: "Papelaria", Quantity: 60, PurchasePriceCents: 780, SalePriceCents: 1690, EntryDate: entry.AddDate(0, 0, 2)},
		{Name: "Garrafa Térmica", Category: "Cozinha", Quantity: 15, PurchasePriceCents: 3200, SalePriceCents: 6490, EntryDate: entry.AddDate(0, 0, 5)},
	} {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			log.Fatalf("[memory-store] seed product: %v", err)
		}
	}
	return s
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := u
	return &found, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (int64, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return 0, store.ErrInvalidInput
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *Store) ListProducts(_ context.Context, search string, page int, pageSize int) ([]domain.Product, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	needle := strings.ToLower(strings.TrimSpace(search))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Category), needle) {
			continue
		}
		matched = append(matched, p)
	}

	slices.SortFunc(matched, func(a, b domain.Product) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return int(b.ID - a.ID)
	})

	total := len(matched)
	offset := (page - 1) * pageSize
	if offset >= total {
		return []domain.Product{}, total, nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	return slices.Clone(matched[offset:end]), total, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (int64, error) {
	if product.Name == "" || product.Quantity < 0 {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProdID++
	product.ID = s.nextProdID
	product.CreatedAt = time.Now().UTC()
	s.products[product.ID] = product
	return product.ID, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) error {
	if product.Name == "" || product.Quantity < 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return store.ErrNotFound
	}
	// Creation timestamp is immutable.
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	// Referencing sales are kept; they drop out of joined listings.
	delete(s.products, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (int64, error) {
	if sale.Quantity < 1 {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[sale.ProductID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if product.Quantity < sale.Quantity {
		return 0, store.ErrInsufficientStock
	}

	product.Quantity -= sale.Quantity
	s.products[product.ID] = product

	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.CreatedAt = time.Now().UTC()
	s.sales[sale.ID] = sale
	return sale.ID, nil
}

func (s *Store) ListSales(_ context.Context, page int, pageSize int) ([]domain.SaleWithProduct, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	joined := make([]domain.SaleWithProduct, 0, len(s.sales))
	for _, sale := range s.sales {
		product, ok := s.products[sale.ProductID]
		if !ok {
			// Inner-join semantics: sales of deleted products are not listed.
			continue
		}
		joined = append(joined, domain.SaleWithProduct{Sale: sale, ProductName: product.Name})
	}

	slices.SortFunc(joined, func(a, b domain.SaleWithProduct) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return int(b.ID - a.ID)
	})

	total := len(joined)
	offset := (page - 1) * pageSize
	if offset >= total {
		return []domain.SaleWithProduct{}, total, nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	return slices.Clone(joined[offset:end]), total, nil
}

func (s *Store) DashboardStats(_ context.Context) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.DashboardStats
	for _, p := range s.products {
		if p.Quantity > 0 {
			stats.ProductsInStock++
		}
		stats.InvestedCents += p.PurchasePriceCents * int64(p.Quantity)
		stats.PotentialCents += p.SalePriceCents * int64(p.Quantity)
	}
	for _, sale := range s.sales {
		product, ok := s.products[sale.ProductID]
		if !ok {
			continue
		}
		// Realized profit uses the product's current purchase price.
		stats.ProfitCents += (sale.SalePriceCents - product.PurchasePriceCents) * int64(sale.Quantity)
	}
	return stats, nil
}

func (s *Store) ReportData(_ context.Context, start time.Time, end time.Time) ([]domain.ReportRow, []domain.ReportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type keyedRow struct {
		id  int64
		row domain.ReportRow
	}

	entryRows := make([]keyedRow, 0, len(s.products))
	for _, p := range s.products {
		if p.EntryDate.Before(start) || p.EntryDate.After(end) {
			continue
		}
		entryRows = append(entryRows, keyedRow{id: p.ID, row: domain.ReportRow{
			Type:           domain.EntryType,
			ProductName:    p.Name,
			Category:       p.Category,
			Quantity:       p.Quantity,
			UnitPriceCents: p.PurchasePriceCents,
			Date:           p.EntryDate,
		}})
	}

	exitRows := make([]keyedRow, 0, len(s.sales))
	for _, sale := range s.sales {
		product, ok := s.products[sale.ProductID]
		if !ok {
			continue
		}
		if sale.SaleDate.Before(start) || sale.SaleDate.After(end) {
			continue
		}
		exitRows = append(exitRows, keyedRow{id: sale.ID, row: domain.ReportRow{
			Type:           domain.ExitType,
			ProductName:    product.Name,
			Category:       product.Category,
			Quantity:       sale.Quantity,
			UnitPriceCents: sale.SalePriceCents,
			Date:           sale.SaleDate,
		}})
	}

	// Tie-break equal dates by record id so output is deterministic.
	sortDescByDate := func(rows []keyedRow) []domain.ReportRow {
		slices.SortFunc(rows, func(a, b keyedRow) int {
			if !a.row.Date.Equal(b.row.Date) {
				return b.row.Date.Compare(a.row.Date)
			}
			return int(a.id - b.id)
		})
		out := make([]domain.ReportRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.row)
		}
		return out
	}

	return sortDescByDate(entryRows), sortDescByDate(exitRows), nil
}

func normalizePage(page int, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}
