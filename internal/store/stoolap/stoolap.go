// Package stoolap backs the repository with an embedded stoolap database,
// the single-file deployment mode. DSNs follow the stoolap driver: a file
// path for durable storage or "memory://" for ephemeral use.
package stoolap

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	_ "github.com/stoolap/stoolap/pkg/driver"

	"meuestoque/backend/internal/domain"
	"meuestoque/backend/internal/store"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339Nano
)

// Store keeps id counters in process. The deployment model is single-node
// single-writer, so MAX(id)+1 at startup is safe.
type Store struct {
	db *sql.DB

	mu         sync.Mutex
	nextUserID int64
	nextProdID int64
	nextSaleID int64
}

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("stoolap", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadCounters(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Dates are stored as ISO-8601 TEXT so lexicographic BETWEEN matches
// chronological order, and monetary columns hold integer centavos.
func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			id INTEGER PRIMARY KEY,
			nome TEXT,
			email TEXT,
			senha_hash TEXT,
			criado_em TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS produtos (
			id INTEGER PRIMARY KEY,
			nome TEXT,
			categoria TEXT,
			quantidade INTEGER,
			valor_compra INTEGER,
			valor_venda INTEGER,
			data_entrada TEXT,
			criado_em TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS vendas (
			id INTEGER PRIMARY KEY,
			produto_id INTEGER,
			quantidade INTEGER,
			valor_venda INTEGER,
			data_venda TEXT,
			criado_em TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadCounters(ctx context.Context) error {
	for _, c := range []struct {
		table string
		dest  *int64
	}{
		{"usuarios", &s.nextUserID},
		{"produtos", &s.nextProdID},
		{"vendas", &s.nextSaleID},
	} {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM `+c.table).Scan(&max); err != nil {
			return err
		}
		*c.dest = max.Int64
	}
	return nil
}

func (s *Store) nextID(counter *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
	return *counter
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha_hash, criado_em
		FROM usuarios
		WHERE LOWER(email) = ?
	`, strings.ToLower(email))
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha_hash, criado_em
		FROM usuarios
		WHERE id = ?
	`, id)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return 0, store.ErrInvalidInput
	}
	if existing, err := s.GetUserByEmail(ctx, user.Email); err == nil && existing != nil {
		return 0, store.ErrInvalidInput
	}

	id := s.nextID(&s.nextUserID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usuarios (id, nome, email, senha_hash, criado_em)
		VALUES (?, ?, ?, ?, ?)
	`, id, user.Name, user.Email, user.PasswordHash, time.Now().UTC().Format(tsLayout))
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListProducts(ctx context.Context, search string, page int, pageSize int) ([]domain.Product, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	// Optional predicates are fixed clauses with bound parameters, never
	// interpolated fragments.
	where := ""
	args := []any{}
	if strings.TrimSpace(search) != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
		where = `WHERE LOWER(nome) LIKE ? OR LOWER(categoria) LIKE ?`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM produtos `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, categoria, quantidade, valor_compra, valor_venda, data_entrada, criado_em
		FROM produtos `+where+`
		ORDER BY criado_em DESC, id DESC
		LIMIT ? OFFSET ?
	`, listArgs...)
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
		WHERE id = ?
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

	id := s.nextID(&s.nextProdID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO produtos (id, nome, categoria, quantidade, valor_compra, valor_venda, data_entrada, criado_em)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, product.Name, product.Category, product.Quantity, product.PurchasePriceCents, product.SalePriceCents,
		product.EntryDate.Format(dateLayout), time.Now().UTC().Format(tsLayout))
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
		SET nome = ?, categoria = ?, quantidade = ?, valor_compra = ?, valor_venda = ?, data_entrada = ?
		WHERE id = ?
	`, product.Name, product.Category, product.Quantity, product.PurchasePriceCents, product.SalePriceCents,
		product.EntryDate.Format(dateLayout), product.ID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = ?`, id)
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

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (int64, error) {
	if sale.Quantity < 1 {
		return 0, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE produtos
		SET quantidade = quantidade - ?
		WHERE id = ? AND quantidade >= ?
	`, sale.Quantity, sale.ProductID, sale.Quantity)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM produtos WHERE id = ?`, sale.ProductID).Scan(&count); err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, store.ErrNotFound
		}
		return 0, store.ErrInsufficientStock
	}

	id := s.nextID(&s.nextSaleID)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vendas (id, produto_id, quantidade, valor_venda, data_venda, criado_em)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, sale.ProductID, sale.Quantity, sale.SalePriceCents,
		sale.SaleDate.Format(dateLayout), time.Now().UTC().Format(tsLayout))
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
		LIMIT ? OFFSET ?
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := make([]domain.SaleWithProduct, 0, pageSize)
	for rows.Next() {
		var sale domain.SaleWithProduct
		var saleDate, createdAt string
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &sale.SalePriceCents, &saleDate, &createdAt, &sale.ProductName); err != nil {
			return nil, 0, err
		}
		if sale.SaleDate, err = parseDate(saleDate); err != nil {
			return nil, 0, err
		}
		if sale.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (s *Store) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM produtos WHERE quantidade > 0`).Scan(&stats.ProductsInStock)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	var invested, potential sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT SUM(valor_compra * quantidade), SUM(valor_venda * quantidade)
		FROM produtos
	`).Scan(&invested, &potential)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.InvestedCents = invested.Int64
	stats.PotentialCents = potential.Int64

	var profit sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT SUM((v.valor_venda - p.valor_compra) * v.quantidade)
		FROM vendas v
		JOIN produtos p ON v.produto_id = p.id
	`).Scan(&profit)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.ProfitCents = profit.Int64

	return stats, nil
}

func (s *Store) ReportData(ctx context.Context, start time.Time, end time.Time) ([]domain.ReportRow, []domain.ReportRow, error) {
	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)

	entryRows, err := s.db.QueryContext(ctx, `
		SELECT nome, categoria, quantidade, valor_compra, data_entrada
		FROM produtos
		WHERE data_entrada BETWEEN ? AND ?
		ORDER BY data_entrada DESC, id ASC
	`, startStr, endStr)
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
		WHERE v.data_venda BETWEEN ? AND ?
		ORDER BY v.data_venda DESC, v.id ASC
	`, startStr, endStr)
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
		var date string
		if err := rows.Scan(&row.ProductName, &row.Category, &row.Quantity, &row.UnitPriceCents, &date); err != nil {
			return nil, err
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		row.Type = rowType
		row.Date = parsed
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

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var createdAt string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var entryDate, createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Quantity, &p.PurchasePriceCents, &p.SalePriceCents, &entryDate, &createdAt)
	if err != nil {
		return domain.Product{}, err
	}
	if p.EntryDate, err = parseDate(entryDate); err != nil {
		return domain.Product{}, err
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(tsLayout, value)
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
