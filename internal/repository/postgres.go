// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/marketplace-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email или именем.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken возвращается, если имя пользователя занято другим пользователем.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrProductExists возвращается, если у владельца уже есть товар с таким названием.
	ErrProductExists = errors.New("user already has product")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductSold возвращается при попытке купить уже проданный товар.
	ErrProductSold = errors.New("product already sold")
	// ErrOwnProduct возвращается при попытке купить собственный товар.
	ErrOwnProduct = errors.New("cannot buy own product")
	// ErrInsufficientBalance возвращается, если баланса покупателя не хватает на покупку.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSessionNotFound возвращается, если сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")
)

// Баланс и цены хранятся в центах, наружу отдаются в единицах валюты.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(v int64) float64 {
	return float64(v) / 100
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password, balance, shipping_address, postal_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.Password, toCents(u.Balance), u.ShippingAddress, u.PostalCode,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var balanceCents int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password,
		&balanceCents, &u.ShippingAddress, &u.PostalCode)
	if err != nil {
		return nil, err
	}
	u.Balance = fromCents(balanceCents)
	return &u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password, balance, shipping_address, postal_code
		 FROM users WHERE id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// GetUsersByEmail возвращает всех пользователей с указанным email.
// Уникальность email гарантирует не более одной записи, но вызывающая
// сторона перебирает результат, сверяя пароль с каждой.
func (r *PostgresRepository) GetUsersByEmail(ctx context.Context, email string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, email, password, balance, shipping_address, postal_code
		 FROM users WHERE email = $1`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var balanceCents int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Password,
			&balanceCents, &u.ShippingAddress, &u.PostalCode); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Balance = fromCents(balanceCents)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// EmailExists сообщает, зарегистрирован ли уже пользователь с таким email.
func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// UsernameTakenByOther сообщает, занято ли имя каким-либо пользователем,
// кроме указанного.
func (r *PostgresRepository) UsernameTakenByOther(ctx context.Context, username, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`,
		username, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// UpdateUser сохраняет изменяемые поля профиля пользователя.
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *model.User) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET username = $2, shipping_address = $3, postal_code = $4 WHERE id = $1`,
		u.ID, u.Username, u.ShippingAddress, u.PostalCode,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateProduct сохраняет новый товар.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, product_name, user_id, owner_email, price, description, last_modified_date, sold, buyer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ProductName, p.UserID, p.OwnerEmail, toCents(p.Price),
		p.Description, p.LastModifiedDate, p.Sold, p.BuyerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrProductExists, p.ProductName)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

const productColumns = `id, product_name, user_id, owner_email, price, description, last_modified_date, sold, buyer_id`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var priceCents int64
	err := row.Scan(&p.ID, &p.ProductName, &p.UserID, &p.OwnerEmail,
		&priceCents, &p.Description, &p.LastModifiedDate, &p.Sold, &p.BuyerID)
	if err != nil {
		return nil, err
	}
	p.Price = fromCents(priceCents)
	return &p, nil
}

// GetProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

// OwnerHasProduct сообщает, есть ли у владельца товар с указанным названием.
func (r *PostgresRepository) OwnerHasProduct(ctx context.Context, ownerEmail, productName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE owner_email = $1 AND product_name = $2)`,
		ownerEmail, productName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product name: %w", err)
	}
	return exists, nil
}

// UpdateProduct сохраняет изменяемые поля товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET product_name = $2, description = $3, price = $4, last_modified_date = $5
		 WHERE id = $1`,
		p.ID, p.ProductName, p.Description, toCents(p.Price), p.LastModifiedDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrProductExists, p.ProductName)
		}
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PostgresRepository) listProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var priceCents int64
		if err := rows.Scan(&p.ID, &p.ProductName, &p.UserID, &p.OwnerEmail,
			&priceCents, &p.Description, &p.LastModifiedDate, &p.Sold, &p.BuyerID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Price = fromCents(priceCents)
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// ListUnsoldProducts возвращает все непроданные товары.
func (r *PostgresRepository) ListUnsoldProducts(ctx context.Context) ([]model.Product, error) {
	return r.listProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE NOT sold ORDER BY last_modified_date DESC`)
}

// ListProductsByOwner возвращает товары указанного владельца.
func (r *PostgresRepository) ListProductsByOwner(ctx context.Context, userID string) ([]model.Product, error) {
	return r.listProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY last_modified_date DESC`,
		userID)
}

// PurchaseProduct выполняет покупку товара в одной транзакции: блокирует
// строку товара, проверяет, что товар не продан, не принадлежит покупателю
// и что баланса хватает, затем переводит средства и помечает товар проданным.
func (r *PostgresRepository) PurchaseProduct(ctx context.Context, buyerID, productID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокировка строки товара сериализует конкурентные покупки:
	// вторая транзакция увидит sold = true и откатится.
	var sellerID string
	var priceCents int64
	var sold bool
	err = tx.QueryRow(ctx,
		`SELECT user_id, price, sold FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&sellerID, &priceCents, &sold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("lock product: %w", err)
	}

	if sold {
		return ErrProductSold
	}
	if sellerID == buyerID {
		return ErrOwnProduct
	}

	var buyerBalance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		buyerID,
	).Scan(&buyerBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock buyer: %w", err)
	}

	if buyerBalance < priceCents {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1`,
		buyerID, priceCents,
	)
	if err != nil {
		return fmt.Errorf("debit buyer: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1`,
		sellerID, priceCents,
	)
	if err != nil {
		return fmt.Errorf("credit seller: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET sold = TRUE, buyer_id = $2 WHERE id = $1`,
		productID, buyerID,
	)
	if err != nil {
		return fmt.Errorf("mark product sold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CreateSession сохраняет новую сессию пользователя.
func (r *PostgresRepository) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, ip_address, expiry) VALUES ($1, $2, $3, $4)`,
		s.ID, s.UserID, s.IPAddress, s.Expiry,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по идентификатору.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, ip_address, expiry FROM sessions WHERE id = $1`,
		id,
	)

	var s model.Session
	err := row.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &s, nil
}

// DeleteSession удаляет сессию по идентификатору.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpiredSessions удаляет сессии с истёкшим сроком действия и
// возвращает число удалённых записей.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expiry <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
