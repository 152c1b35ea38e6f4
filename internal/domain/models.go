package domain

import "time"

// User is an authentication identity. A default admin account is created at
// startup when missing; users are not otherwise mutated.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product carries its own stock quantity. EntryDate is a calendar date
// (midnight UTC, no time component); CreatedAt is assigned by the store and
// never changes afterwards.
type Product struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Quantity           int       `json:"quantity"`
	PurchasePriceCents int64     `json:"purchase_price_cents"`
	SalePriceCents     int64     `json:"sale_price_cents"`
	EntryDate          time.Time `json:"entry_date"`
	CreatedAt          time.Time `json:"created_at"`
}

// Sale records a stock exit. SalePriceCents is a snapshot taken at sale time,
// not a live reference to the product's price. Sales are never updated or
// deleted.
type Sale struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	Quantity       int       `json:"quantity"`
	SalePriceCents int64     `json:"sale_price_cents"`
	SaleDate       time.Time `json:"sale_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaleWithProduct is a sale listing row with the product name joined at read
// time, not stored.
type SaleWithProduct struct {
	Sale
	ProductName string `json:"product_name"`
}

type DashboardStats struct {
	ProductsInStock int64 `json:"products_in_stock"`
	InvestedCents   int64 `json:"invested_cents"`
	PotentialCents  int64 `json:"potential_cents"`
	ProfitCents     int64 `json:"profit_cents"`
}

// ReportRow is one record of the unified entry/exit timeline. Type is either
// EntryType (a product's initial stock addition) or ExitType (a sale).
type ReportRow struct {
	Type           string    `json:"type"`
	ProductName    string    `json:"product_name"`
	Category       string    `json:"category"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Date           time.Time `json:"date"`
}

const (
	EntryType = "entrada"
	ExitType  = "saida"
)

// ProductInput is the untrusted field set for product create/update. Prices
// arrive as display-formatted monetary strings ("R$ 1.234,56") and EntryDate
// as an ISO date; the service layer parses and validates both.
type ProductInput struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Quantity      int    `json:"quantity"`
	PurchasePrice string `json:"purchase_price"`
	SalePrice     string `json:"sale_price"`
	EntryDate     string `json:"entry_date"`
}

type SaleInput struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	SalePrice string `json:"sale_price"`
	SaleDate  string `json:"sale_date"`
}

// ProductPage and SalePage carry one page of results plus the totals the
// client needs to render pagination. Total counts the filtered set.
type ProductPage struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

type SalePage struct {
	Items      []SaleWithProduct `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the request-scoped authenticated user identity injected by the
// HTTP layer, replacing ambient session state.
type Actor struct {
	UserID int64
	Name   string
	Email  string
}
