package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

var (
	ErrOptimisticLock    = domain.ErrOptimisticLock
	ErrInsufficientStock = domain.ErrInsufficientStock
)

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 1000
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock (
		product_id BIGINT PRIMARY KEY,
		quantity   INT NOT NULL DEFAULT 0,
		min_stock  INT NOT NULL DEFAULT 0,
		version    INT NOT NULL DEFAULT 0,
		updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id            BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id    BIGINT NOT NULL,
		movement_type VARCHAR(16) NOT NULL,
		quantity      INT NOT NULL,
		reason        VARCHAR(255) NOT NULL,
		location      VARCHAR(255) NOT NULL DEFAULT '',
		reference     VARCHAR(255) NOT NULL DEFAULT '',
		stock_before  INT NOT NULL,
		stock_after   INT NOT NULL,
		created_at    DATETIME(3) NOT NULL,
		INDEX idx_movements_product_created (product_id, created_at),
		INDEX idx_movements_created (created_at)
	)`,
}

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// lockStock locks the stock row of productID for the transaction, creating
// it first when the product has never been stocked. INSERT IGNORE on an
// existing row takes a shared lock that deadlocks with FOR UPDATE, so the
// insert only runs when the row is missing.
func lockStock(ctx context.Context, tx *sql.Tx, productID int64) (quantity, version int, err error) {
	const selectForUpdate = `SELECT quantity, version FROM stock WHERE product_id = ? FOR UPDATE`

	err = tx.QueryRowContext(ctx, selectForUpdate, productID).Scan(&quantity, &version)
	if err == nil {
		return quantity, version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("lock stock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT IGNORE INTO stock (product_id, quantity, min_stock, version) VALUES (?, 0, 0, 0)`,
		productID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("ensure stock row: %w", err)
	}

	if err = tx.QueryRowContext(ctx, selectForUpdate, productID).Scan(&quantity, &version); err != nil {
		return 0, 0, fmt.Errorf("lock stock: %w", err)
	}
	return quantity, version, nil
}

func updateStock(ctx context.Context, tx *sql.Tx, productID int64, quantity, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE stock
		SET quantity = ?, version = version + 1, updated_at = NOW(3)
		WHERE product_id = ? AND version = ?`,
		quantity, productID, version,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, rec *domain.MovementRecord) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO movements (product_id, movement_type, quantity, reason, location, reference, stock_before, stock_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ProductID, rec.MovementType, rec.Quantity, rec.Reason, rec.Location, rec.Reference,
		rec.StockBefore, rec.StockAfter, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

func (m *MySQLAdapter) RecordMovement(ctx context.Context, mv domain.Movement) (*domain.MovementRecord, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	before, version, err := lockStock(ctx, tx, mv.ProductID)
	if err != nil {
		return nil, err
	}

	after := before + mv.Delta()
	if mv.MovementType == domain.MovementAdjustment {
		after = mv.Quantity
	}
	if after < 0 {
		return nil, ErrInsufficientStock
	}

	if err := updateStock(ctx, tx, mv.ProductID, after, version); err != nil {
		return nil, err
	}

	rec := &domain.MovementRecord{
		ProductID:    mv.ProductID,
		Quantity:     mv.Quantity,
		MovementType: mv.MovementType,
		Reason:       mv.Reason,
		Location:     mv.Location,
		Reference:    mv.Reference,
		StockBefore:  before,
		StockAfter:   after,
		CreatedAt:    m.now().UTC(),
	}
	if err := insertMovement(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (m *MySQLAdapter) AdjustStock(ctx context.Context, input domain.AdjustmentInput) (*domain.AdjustmentResult, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	before, version, err := lockStock(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if err := updateStock(ctx, tx, input.ProductID, input.NewQuantity, version); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	rec := &domain.MovementRecord{
		ProductID:    input.ProductID,
		Quantity:     input.NewQuantity,
		MovementType: domain.MovementAdjustment,
		Reason:       input.Reason,
		StockBefore:  before,
		StockAfter:   input.NewQuantity,
		CreatedAt:    now,
	}
	if err := insertMovement(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &domain.AdjustmentResult{
		ProductID:        input.ProductID,
		PreviousQuantity: before,
		NewQuantity:      input.NewQuantity,
		Difference:       input.NewQuantity - before,
		Reason:           input.Reason,
		AdjustedAt:       now,
	}, nil
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error) {
	var lvl domain.StockLevel
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, quantity, min_stock, version, updated_at
		FROM stock WHERE product_id = ?`, productID,
	).Scan(&lvl.ProductID, &lvl.Quantity, &lvl.MinStock, &lvl.Version, &lvl.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &lvl, nil
}

func (m *MySQLAdapter) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	return m.queryStock(ctx, `
		SELECT product_id, quantity, min_stock, version, updated_at
		FROM stock ORDER BY product_id`)
}

func (m *MySQLAdapter) LowStock(ctx context.Context, threshold int) ([]domain.StockLevel, error) {
	if threshold > 0 {
		return m.queryStock(ctx, `
			SELECT product_id, quantity, min_stock, version, updated_at
			FROM stock WHERE quantity <= ? ORDER BY quantity, product_id`, threshold)
	}
	return m.queryStock(ctx, `
		SELECT product_id, quantity, min_stock, version, updated_at
		FROM stock WHERE quantity <= min_stock ORDER BY quantity, product_id`)
}

func (m *MySQLAdapter) queryStock(ctx context.Context, query string, args ...any) ([]domain.StockLevel, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	levels := []domain.StockLevel{}
	for rows.Next() {
		var lvl domain.StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.Quantity, &lvl.MinStock, &lvl.Version, &lvl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

func (m *MySQLAdapter) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProductID > 0 {
		where = append(where, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.MovementType != "" {
		where = append(where, "movement_type = ?")
		args = append(args, filter.MovementType)
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	query := `
		SELECT id, product_id, movement_type, quantity, reason, location, reference, stock_before, stock_after, created_at
		FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	records := []domain.MovementRecord{}
	for rows.Next() {
		var rec domain.MovementRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.MovementType, &rec.Quantity, &rec.Reason,
			&rec.Location, &rec.Reference, &rec.StockBefore, &rec.StockAfter, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
