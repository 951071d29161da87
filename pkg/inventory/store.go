//Package inventory records cart contents in a SQL database.
//
//Increment and Decrement are the two mutations driven by crossings. Both are
//serialized per product name and run in a single transaction, so concurrent
//calls for the same product never lose an update.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//ErrUnknownProduct is returned when a label has no row in the product table.
var ErrUnknownProduct = errors.New("unknown product")

//CartItem is one line of the cart joined with its product.
type CartItem struct {
	CartProductID int64   `json:"cartproductid"`
	ProductID     int64   `json:"productid"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
}

//CartSummary is the cart screen's view: the items plus their totals.
type CartSummary struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

//Summarize totals the quantities and the price of every unit in items.
func Summarize(items []CartItem) CartSummary {
	sum := CartSummary{Items: items}
	if sum.Items == nil {
		sum.Items = []CartItem{}
	}
	for _, it := range items {
		sum.TotalItems += it.Quantity
		sum.TotalPrice += it.Price * float64(it.Quantity)
	}
	return sum
}

type Store struct {
	*sql.DB
	driver string
	dsn    string
	cartID int
	locks  keyedMutex
}

//Open connects to the database and makes sure the configured cart row exists.
//Migrations must have been applied, see MigrateUp.
func Open(driver, dsn string, cartID int) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		//single writer; also keeps ":memory:" to one database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}

	return &Store{DB: db, driver: driver, dsn: dsn, cartID: cartID}, nil
}

//EnsureCart creates the configured cart row if missing.
func (s *Store) EnsureCart(ctx context.Context) error {
	_, err := s.ExecContext(ctx, s.rebind(`INSERT INTO cart (cartid) VALUES (?) ON CONFLICT (cartid) DO NOTHING`), s.cartID)
	if err != nil {
		return fmt.Errorf("failed to create cart %d: %w", s.cartID, err)
	}
	return nil
}

//SeedProducts inserts every name that is not already a product.
func (s *Store) SeedProducts(ctx context.Context, names []string) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := s.rebind(`INSERT INTO product (name) VALUES (?) ON CONFLICT (name) DO NOTHING`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", name, err)
		}
	}
	return tx.Commit()
}

//Increment adds one unit of label to the cart, creating the line at quantity 1.
func (s *Store) Increment(ctx context.Context, label string) error {
	unlock := s.locks.Lock(label)
	defer unlock()

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	productID, err := s.productID(ctx, tx, label)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO cartproduct (cartid, productid, quantity) VALUES (?, ?, 1)
		ON CONFLICT (cartid, productid) DO UPDATE SET quantity = cartproduct.quantity + 1`),
		s.cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to increment %q: %w", label, err)
	}
	return tx.Commit()
}

//Decrement removes one unit of label. A line at quantity 1 is deleted rather
//than stored as zero; a missing line is left alone.
func (s *Store) Decrement(ctx context.Context, label string) error {
	unlock := s.locks.Lock(label)
	defer unlock()

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	productID, err := s.productID(ctx, tx, label)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE cartproduct SET quantity = quantity - 1
		WHERE cartid = ? AND productid = ? AND quantity > 1`),
		s.cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement %q: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx, s.rebind(`
			DELETE FROM cartproduct WHERE cartid = ? AND productid = ? AND quantity <= 1`),
			s.cartID, productID)
		if err != nil {
			return fmt.Errorf("failed to remove %q: %w", label, err)
		}
	}
	return tx.Commit()
}

//Quantity returns how many units of label are in the cart, 0 when there is no line.
func (s *Store) Quantity(ctx context.Context, label string) (int, error) {
	var q int
	err := s.QueryRowContext(ctx, s.rebind(`
		SELECT cp.quantity FROM cartproduct cp
		JOIN product p ON p.productid = cp.productid
		WHERE cp.cartid = ? AND p.name = ?`), s.cartID, label).Scan(&q)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return q, err
}

func (s *Store) CartItems(ctx context.Context) ([]CartItem, error) {
	rows, err := s.QueryContext(ctx, s.rebind(`
		SELECT cp.cartproductid, p.productid, p.name, p.price, cp.quantity
		FROM cartproduct cp
		JOIN product p ON p.productid = cp.productid
		WHERE cp.cartid = ?
		ORDER BY p.name`), s.cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.CartProductID, &it.ProductID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) productID(ctx context.Context, tx *sql.Tx, label string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.rebind(`SELECT productid FROM product WHERE name = ?`), label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProduct, label)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up product %q: %w", label, err)
	}
	return id, nil
}

//rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

//keyedMutex hands out one mutex per key. Entries are dropped when no caller holds them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
