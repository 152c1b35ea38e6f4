package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/store"
)

func mustCreateProduct(t *testing.T, s *Store, p domain.Product) int64 {
	t.Helper()
	id, err := s.CreateProduct(context.Background(), p)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return id
}

func TestCreateThenGetProduct(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	id := mustCreateProduct(t, s, domain.Product{
		Name:               "Mochila Escolar",
		Category:           "Papelaria",
		Quantity:           12,
		PurchasePriceCents: 4500,
		SalePriceCents:     8990,
		EntryDate:          entry,
	})

	got, err := s.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Mochila Escolar" || got.Quantity != 12 || got.SalePriceCents != 8990 {
		t.Fatalf("unexpected product: %+v", got)
	}
	if !got.EntryDate.Equal(entry) {
		t.Fatalf("expected entry date %v, got %v", entry, got.EntryDate)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestGetProductNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetProduct(context.Background(), 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProductsFilteredTotalIndependentOfPaging(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	for _, name := range []string{"Caneca Azul", "Caneca Verde", "Caneca Preta", "Prato Fundo", "Prato Raso"} {
		mustCreateProduct(t, s, domain.Product{
			Name: name, Category: "Cozinha", Quantity: 5,
			PurchasePriceCents: 1000, SalePriceCents: 2000, EntryDate: entry,
		})
	}

	page1, total, err := s.ListProducts(context.Background(), "caneca", 1, 2)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected filtered total 3, got %d", total)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(page1))
	}

	page2, total2, err := s.ListProducts(context.Background(), "caneca", 2, 2)
	if err != nil {
		t.Fatalf("list products page 2: %v", err)
	}
	if total2 != total {
		t.Fatalf("total changed across pages: %d vs %d", total, total2)
	}
	if len(page2) != 1 {
		t.Fatalf("expected 1 item on page 2, got %d", len(page2))
	}

	// Out-of-range pages return an empty slice, never an error.
	page9, total9, err := s.ListProducts(context.Background(), "caneca", 9, 2)
	if err != nil {
		t.Fatalf("list products page 9: %v", err)
	}
	if len(page9) != 0 || total9 != 3 {
		t.Fatalf("expected empty page with total 3, got %d items total %d", len(page9), total9)
	}
}

func TestListProductsSearchMatchesCategory(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	mustCreateProduct(t, s, domain.Product{Name: "Caneta", Category: "Papelaria", Quantity: 1, EntryDate: entry})
	mustCreateProduct(t, s, domain.Product{Name: "Faca", Category: "Cozinha", Quantity: 1, EntryDate: entry})

	_, total, err := s.ListProducts(context.Background(), "PAPEL", 1, 10)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected case-insensitive category match, got total %d", total)
	}
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	productID := mustCreateProduct(t, s, domain.Product{
		Name: "Caderno", Category: "Papelaria", Quantity: 10,
		PurchasePriceCents: 780, SalePriceCents: 1690, EntryDate: entry,
	})

	saleID, err := s.CreateSale(context.Background(), domain.Sale{
		ProductID: productID, Quantity: 3, SalePriceCents: 1690,
		SaleDate: entry.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if saleID == 0 {
		t.Fatalf("expected a sale id")
	}

	product, err := s.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 7 {
		t.Fatalf("expected quantity 7 after sale, got %d", product.Quantity)
	}
}

func TestCreateSaleInsufficientStockLeavesQuantityUnchanged(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	productID := mustCreateProduct(t, s, domain.Product{
		Name: "Garrafa", Category: "Cozinha", Quantity: 2,
		PurchasePriceCents: 3200, SalePriceCents: 6490, EntryDate: entry,
	})

	_, err := s.CreateSale(context.Background(), domain.Sale{
		ProductID: productID, Quantity: 5, SalePriceCents: 6490, SaleDate: entry,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err := s.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 2 {
		t.Fatalf("expected quantity unchanged at 2, got %d", product.Quantity)
	}

	_, total, err := s.ListSales(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no sale recorded, got %d", total)
	}
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	s := New()
	_, err := s.CreateSale(context.Background(), domain.Sale{ProductID: 42, Quantity: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteProductHidesItsSales(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	keepID := mustCreateProduct(t, s, domain.Product{Name: "Caneca", Category: "Cozinha", Quantity: 10, SalePriceCents: 2590, EntryDate: entry})
	dropID := mustCreateProduct(t, s, domain.Product{Name: "Prato", Category: "Cozinha", Quantity: 10, SalePriceCents: 1990, EntryDate: entry})

	for _, productID := range []int64{keepID, dropID} {
		if _, err := s.CreateSale(context.Background(), domain.Sale{ProductID: productID, Quantity: 1, SalePriceCents: 1000, SaleDate: entry}); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}

	if err := s.DeleteProduct(context.Background(), dropID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	sales, total, err := s.ListSales(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if total != 1 || len(sales) != 1 {
		t.Fatalf("expected only the surviving product's sale, got total %d", total)
	}
	if sales[0].ProductName != "Caneca" {
		t.Fatalf("expected sale joined to Caneca, got %q", sales[0].ProductName)
	}
}

func TestDashboardStatsEmpty(t *testing.T) {
	s := New()
	stats, err := s.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if stats != (domain.DashboardStats{}) {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestDashboardStatsAggregates(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	firstID := mustCreateProduct(t, s, domain.Product{
		Name: "Caneta", Category: "Papelaria", Quantity: 10,
		PurchasePriceCents: 250, SalePriceCents: 400, EntryDate: entry,
	})
	mustCreateProduct(t, s, domain.Product{
		Name: "Caderno", Category: "Papelaria", Quantity: 2,
		PurchasePriceCents: 500, SalePriceCents: 700, EntryDate: entry,
	})

	stats, err := s.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if stats.ProductsInStock != 2 {
		t.Fatalf("expected 2 products in stock, got %d", stats.ProductsInStock)
	}
	if stats.InvestedCents != 3500 {
		t.Fatalf("expected invested 3500, got %d", stats.InvestedCents)
	}
	if stats.PotentialCents != 5400 {
		t.Fatalf("expected potential 5400, got %d", stats.PotentialCents)
	}

	// A sale realizes profit and shrinks the stock-based aggregates.
	if _, err := s.CreateSale(context.Background(), domain.Sale{
		ProductID: firstID, Quantity: 4, SalePriceCents: 400, SaleDate: entry,
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	stats, err = s.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard stats after sale: %v", err)
	}
	if stats.ProfitCents != (400-250)*4 {
		t.Fatalf("expected profit 600, got %d", stats.ProfitCents)
	}
	if stats.InvestedCents != 6*250+2*500 {
		t.Fatalf("expected invested 2500, got %d", stats.InvestedCents)
	}
}

func TestDashboardStatsZeroQuantityNotInStock(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	productID := mustCreateProduct(t, s, domain.Product{
		Name: "Caneca", Category: "Cozinha", Quantity: 1,
		PurchasePriceCents: 1000, SalePriceCents: 2000, EntryDate: entry,
	})
	if _, err := s.CreateSale(context.Background(), domain.Sale{ProductID: productID, Quantity: 1, SalePriceCents: 2000, SaleDate: entry}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	stats, err := s.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if stats.ProductsInStock != 0 {
		t.Fatalf("expected 0 products in stock, got %d", stats.ProductsInStock)
	}
}

func TestReportDataInclusiveRange(t *testing.T) {
	s := New()
	inRange := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	boundary := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2025, time.June, 21, 0, 0, 0, 0, time.UTC)

	mustCreateProduct(t, s, domain.Product{Name: "Dentro", Category: "A", Quantity: 1, PurchasePriceCents: 100, EntryDate: inRange})
	mustCreateProduct(t, s, domain.Product{Name: "Limite", Category: "A", Quantity: 1, PurchasePriceCents: 100, EntryDate: boundary})
	mustCreateProduct(t, s, domain.Product{Name: "Fora", Category: "A", Quantity: 1, PurchasePriceCents: 100, EntryDate: outside})

	start := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	entries, exits, err := s.ReportData(context.Background(), start, boundary)
	if err != nil {
		t.Fatalf("report data: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries inside the inclusive range, got %d", len(entries))
	}
	if len(exits) != 0 {
		t.Fatalf("expected no exits, got %d", len(exits))
	}
	// Descending date order.
	if entries[0].ProductName != "Limite" || entries[1].ProductName != "Dentro" {
		t.Fatalf("unexpected entry order: %q, %q", entries[0].ProductName, entries[1].ProductName)
	}
}

func TestUpdateProductPreservesCreatedAt(t *testing.T) {
	s := New()
	entry := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	id := mustCreateProduct(t, s, domain.Product{Name: "Caneca", Category: "Cozinha", Quantity: 5, EntryDate: entry})

	before, err := s.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	if err := s.UpdateProduct(context.Background(), domain.Product{
		ID: id, Name: "Caneca Grande", Category: "Cozinha", Quantity: 8, EntryDate: entry,
	}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	after, err := s.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product after update: %v", err)
	}
	if after.Name != "Caneca Grande" || after.Quantity != 8 {
		t.Fatalf("update not applied: %+v", after)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("CreatedAt changed on update")
	}
}

func TestSeededStoreHasAdminAndProducts(t *testing.T) {
	s := NewSeeded()

	admin, err := s.GetUserByEmail(context.Background(), "admin@admin.com")
	if err != nil {
		t.Fatalf("expected seeded admin, got %v", err)
	}
	if admin.Name != "Administrador" {
		t.Fatalf("unexpected admin name %q", admin.Name)
	}

	_, total, err := s.ListProducts(context.Background(), "", 1, 10)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 seeded products, got %d", total)
	}
}
