package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// ListProducts returns products whose name contains filter, ignoring case.
// An empty filter returns every product.
func (s *SQLiteStore) ListProducts(ctx context.Context, filter string) ([]domain.Product, error) {
	query := `SELECT id, name, price, stock, return_discount FROM products`
	var args []interface{}
	if filter != "" {
		query += ` WHERE LOWER(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter)+"%")
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.ReturnDiscount); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct inserts a product and sets its ID.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, price, stock, return_discount) VALUES (?, ?, ?, ?)`,
		p.Name, p.Price, p.Stock, p.ReturnDiscount)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetProductByName returns the first product with exactly this name, or nil.
func (s *SQLiteStore) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, stock, return_discount FROM products WHERE name = ? ORDER BY id LIMIT 1`,
		name).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.ReturnDiscount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProductByName removes the first product with exactly this name.
// It reports whether a product was removed.
func (s *SQLiteStore) DeleteProductByName(ctx context.Context, name string) (bool, error) {
	p, err := s.GetProductByName(ctx, name)
	if err != nil || p == nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, p.ID)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateProduct applies the non-nil fields of u to the product named name.
// It returns the updated product, or nil when none matches.
func (s *SQLiteStore) UpdateProduct(ctx context.Context, name string, u domain.ProductUpdate) (*domain.Product, error) {
	p, err := s.GetProductByName(ctx, name)
	if err != nil || p == nil {
		return nil, err
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.ReturnDiscount != nil {
		p.ReturnDiscount = *u.ReturnDiscount
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ?, stock = ?, return_discount = ? WHERE id = ?`,
		p.Name, p.Price, p.Stock, p.ReturnDiscount, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// CreateUser registers a user and sets its ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, company, email, on_vacation, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Company, u.Email, u.OnVacation, millis(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetUserByName returns the earliest user whose name matches, ignoring case, or nil.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, company, email, on_vacation, created_at FROM users WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`,
		name).Scan(&u.ID, &u.Name, &u.Company, &u.Email, &u.OnVacation, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// GetUser retrieves a user by ID, or nil.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, company, email, on_vacation, created_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Name, &u.Company, &u.Email, &u.OnVacation, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}
