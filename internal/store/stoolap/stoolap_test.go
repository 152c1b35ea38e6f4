package stoolap

import (
	"context"
	"errors"
	"testing"
	"time"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/store"
)

// newTestStore opens an in-memory stoolap database, so these tests run
// without external services.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(context.Background(), "memory://")
	if err != nil {
		t.Fatalf("open stoolap store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.CreateProduct(ctx, domain.Product{
		Name:               "Caneca Esmaltada",
		Category:           "Cozinha",
		Quantity:           25,
		PurchasePriceCents: 1250,
		SalePriceCents:     2590,
		EntryDate:          entry,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	got, err := s.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Caneca Esmaltada" || got.Quantity != 25 || got.PurchasePriceCents != 1250 {
		t.Fatalf("unexpected product: %+v", got)
	}
	if !got.EntryDate.Equal(entry) {
		t.Fatalf("expected entry date %v, got %v", entry, got.EntryDate)
	}
}

func TestCreateSaleAtomicDecrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.CreateProduct(ctx, domain.Product{
		Name: "Caderno", Category: "Papelaria", Quantity: 5,
		PurchasePriceCents: 780, SalePriceCents: 1690, EntryDate: entry,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{
		ProductID: id, Quantity: 2, SalePriceCents: 1690, SaleDate: entry.AddDate(0, 0, 1),
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 3 {
		t.Fatalf("expected quantity 3 after sale, got %d", product.Quantity)
	}

	// Overselling rolls back without touching the remaining stock.
	_, err = s.CreateSale(ctx, domain.Sale{
		ProductID: id, Quantity: 10, SalePriceCents: 1690, SaleDate: entry,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err = s.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product after failed sale: %v", err)
	}
	if product.Quantity != 3 {
		t.Fatalf("expected quantity unchanged at 3, got %d", product.Quantity)
	}

	_, total, err := s.ListSales(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected a single recorded sale, got %d", total)
	}
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateSale(context.Background(), domain.Sale{ProductID: 404, Quantity: 1, SaleDate: time.Now().UTC()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProductsSearchAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"Caneca Azul", "Caneca Verde", "Prato Raso"} {
		if _, err := s.CreateProduct(ctx, domain.Product{
			Name: name, Category: "Cozinha", Quantity: 5,
			PurchasePriceCents: 1000, SalePriceCents: 2000, EntryDate: entry,
		}); err != nil {
			t.Fatalf("create product: %v", err)
		}
	}

	items, total, err := s.ListProducts(ctx, "caneca", 1, 1)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected filtered total 2, got %d", total)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item with page size 1, got %d", len(items))
	}
}

func TestDashboardStatsAndReportRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entry := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	id, err := s.CreateProduct(ctx, domain.Product{
		Name: "Caneta", Category: "Papelaria", Quantity: 10,
		PurchasePriceCents: 250, SalePriceCents: 400, EntryDate: entry,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateSale(ctx, domain.Sale{
		ProductID: id, Quantity: 4, SalePriceCents: 400, SaleDate: entry.AddDate(0, 0, 5),
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	stats, err := s.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if stats.ProductsInStock != 1 {
		t.Fatalf("expected 1 product in stock, got %d", stats.ProductsInStock)
	}
	if stats.InvestedCents != 6*250 || stats.PotentialCents != 6*400 {
		t.Fatalf("unexpected aggregates: %+v", stats)
	}
	if stats.ProfitCents != (400-250)*4 {
		t.Fatalf("expected profit 600, got %d", stats.ProfitCents)
	}

	// The range is inclusive on both bounds.
	entries, exits, err := s.ReportData(ctx, entry, entry.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("report data: %v", err)
	}
	if len(entries) != 1 || len(exits) != 1 {
		t.Fatalf("expected 1 entry and 1 exit, got %d and %d", len(entries), len(exits))
	}

	entries, exits, err = s.ReportData(ctx, entry.AddDate(0, 0, 1), entry.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("report data narrow range: %v", err)
	}
	if len(entries) != 0 || len(exits) != 0 {
		t.Fatalf("expected empty report outside the range, got %d and %d", len(entries), len(exits))
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, domain.User{
		Name:         "Administrador",
		Email:        "admin@admin.com",
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarea",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ADMIN@ADMIN.COM")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if byEmail.ID != id || byEmail.Name != "Administrador" {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	if _, err := s.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}
}
