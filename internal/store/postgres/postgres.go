package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Monetary columns hold integer centavos.
func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			id BIGSERIAL PRIMARY KEY,
			nome TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			senha_hash TEXT NOT NULL,
			criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS produtos (
			id BIGSERIAL PRIMARY KEY,
			nome TEXT NOT NULL,
			categoria TEXT NOT NULL DEFAULT '',
			quantidade INTEGER NOT NULL DEFAULT 0 CHECK (quantidade >= 0),
			valor_compra BIGINT NOT NULL,
			valor_venda BIGINT NOT NULL,
			data_entrada DATE NOT NULL,
			criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS vendas (
			id BIGSERIAL PRIMARY KEY,
			produto_id BIGINT NOT NULL,
			quantidade INTEGER NOT NULL,
			valor_venda BIGINT NOT NULL,
			data_venda DATE NOT NULL,
			criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha_hash, criado_em
		FROM usuarios
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha_hash, criado_em
		FROM usuarios
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return 0, store.ErrInvalidInput
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO usuarios (nome, email, senha_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, user.Name, user.Email, user.PasswordHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrInvalidInput
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) ListProducts(ctx context.Context, search string, page int, pageSize int) ([]domain.Product, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	// The count must reflect the filtered set, not the whole table, so the
	// caller can compute page counts.
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM produtos
		WHERE $1 = '' OR nome ILIKE '%' || $1 || '%' OR categoria ILIKE '%' || $1 || '%'
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, categoria, quantidade, valor_compra, valor_venda, data_entrada, criado_em
		FROM produtos
		WHERE $1 = '' OR nome ILIKE '%' || $1 || '%' OR categoria ILIKE '%' || $1 || '%'
		ORDER BY criado_em DESC, id DESC
		LIMIT $2 OFFSET $3
	`, search, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, pageSize)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nome, categoria, quantidade, valor_compra, valor_venda, data_entrada, criado_em
		FROM produtos
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (int64, error) {
	if product.Name == "" || product.Quantity < 0 {
		return 0, store.ErrInvalidInput
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO produtos (nome, categoria, quantidade, valor_compra, valor_venda, data_entrada)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, product.Name, product.Category, product.Quantity, product.PurchasePriceCents, product.SalePriceCents, product.EntryDate).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) error {
	if product.Name == "" || product.Quantity < 0 {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE produtos
		SET nome = $2, categoria = $3, quantidade = $4, valor_compra = $5, valor_venda = $6, data_entrada = $7
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.Quantity, product.PurchasePriceCents, product.SalePriceCents, product.EntryDate)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	// No reference check: sales keep their produto_id and become orphans.
	res, err := s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale inserts the sale row and decrements the product's stock as a
// single all-or-nothing unit. The decrement is conditional on sufficient
// stock so quantity can never go negative under concurrent submissions.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (int64, error) {
	if sale.Quantity < 1 {
		return 0, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE produtos
		SET quantidade = quantidade - $1
		WHERE id = $2 AND quantidade >= $1
	`, sale.Quantity, sale.ProductID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM produtos WHERE id = $1)
		`, sale.ProductID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, store.ErrNotFound
		}
		return 0, store.ErrInsufficientStock
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vendas (produto_id, quantidade, valor_venda, data_venda)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sale.ProductID, sale.Quantity, sale.SalePriceCents, sale.SaleDate).Scan(&id)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListSales(ctx context.Context, page int, pageSize int) ([]domain.SaleWithProduct, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM vendas v
		JOIN produtos p ON v.produto_id = p.id
	`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.produto_id, v.quantidade, v.valor_venda, v.data_venda, v.criado_em, p.nome
		FROM vendas v
		JOIN produtos p ON v.produto_id = p.id
		ORDER BY v.criado_em DESC, v.id DESC
		LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := make([]domain.SaleWithProduct, 0, pageSize)
	for rows.Next() {
		var sale domain.SaleWithProduct
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &sale.SalePriceCents, &sale.SaleDate, &sale.CreatedAt, &sale.ProductName); err != nil {
			return nil, 0, err
		}
		sale.SaleDate = dateUTC(sale.SaleDate)
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (s *Store) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE quantidade > 0),
			COALESCE(SUM(valor_compra * quantidade), 0),
			COALESCE(SUM(valor_venda * quantidade), 0)
		FROM produtos
	`).Scan(&stats.ProductsInStock, &stats.InvestedCents, &stats.PotentialCents)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	// Realized profit uses the product's current purchase price, not a
	// snapshot; orphaned sales fall out of the join.
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((v.valor_venda - p.valor_compra) * v.quantidade), 0)
		FROM vendas v
		JOIN produtos p ON v.produto_id = p.id
	`).Scan(&stats.ProfitCents)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	return stats, nil
}

func (s *Store) ReportData(ctx context.Context, start time.Time, end time.Time) ([]domain.ReportRow, []domain.ReportRow, error) {
	entryRows, err := s.db.QueryContext(ctx, `
		SELECT nome, categoria, quantidade, valor_compra, data_entrada
		FROM produtos
		WHERE data_entrada BETWEEN $1 AND $2
		ORDER BY data_entrada DESC, id ASC
	`, start, end)
	if err != nil {
		return nil, nil, err
	}
	entries, err := collectReportRows(entryRows, domain.EntryType)
	if err != nil {
		return nil, nil, err
	}

	exitRows, err := s.db.QueryContext(ctx, `
		SELECT p.nome, p.categoria, v.quantidade, v.valor_venda, v.data_venda
		FROM vendas v
		JOIN produtos p ON v.produto_id = p.id
		WHERE v.data_venda BETWEEN $1 AND $2
		ORDER BY v.data_venda DESC, v.id ASC
	`, start, end)
	if err != nil {
		return nil, nil, err
	}
	exits, err := collectReportRows(exitRows, domain.ExitType)
	if err != nil {
		return nil, nil, err
	}

	return entries, exits, nil
}

func collectReportRows(rows *sql.Rows, rowType string) ([]domain.ReportRow, error) {
	defer rows.Close()

	result := make([]domain.ReportRow, 0, 64)
	for rows.Next() {
		var row domain.ReportRow
		if err := rows.Scan(&row.ProductName, &row.Category, &row.Quantity, &row.UnitPriceCents, &row.Date); err != nil {
			return nil, err
		}
		row.Type = rowType
		row.Date = dateUTC(row.Date)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Quantity, &p.PurchasePriceCents, &p.SalePriceCents, &p.EntryDate, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.EntryDate = dateUTC(p.EntryDate)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func dateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
