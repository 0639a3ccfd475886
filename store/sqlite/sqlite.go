/*
Package sqlite provides the SQLite-backed implementation of the workflow
storage interfaces.

PURPOSE:
  Implements workflow.TxStore over a single SQLite database. The service
  layer does all multi-step work through WithTx, so this package is where
  atomicity actually lives.

CONSTRAINTS AS BACKSTOP:
  The application validates first; the schema declares the same rules so
  a bug upstream cannot corrupt the data:
  - requests.number UNIQUE               (sequential numbering)
  - vendors.tax_id UNIQUE (partial)      (one record per NPWP)
  - line_items CHECK volume > 0
  - budget_allocations CHECK used + reserved <= total
  - contracts CHECK end_date >= start_date
  - foreign keys with cascade from request to line items and steps

ERROR MAPPING:
  SQLite errors are translated into procure error kinds so callers never
  string-match:
  - UNIQUE constraint      -> procure.ErrDuplicateReference
  - CHECK / FOREIGN KEY    -> procure.ErrConstraint
  - anything else          -> procure.ErrStorage
  - sql.ErrNoRows          -> procure.ErrNotFound

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. WithTx holds
  the write lock for the whole transaction, so the tx-bound store does
  not lock again.

WAL MODE:
  The database is opened with _journal_mode=WAL and _foreign_keys=on.
  Readers do not block each other; a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/procure.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := workflow.NewService(store, tiers, taxes, logger)

SEE ALSO:
  - workflow/store.go: Interface definitions and the atomicity contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sigap/procure-engine/procure"
	"github.com/sigap/procure-engine/workflow"
)

// Store implements workflow.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backup writes a consistent copy of the database to dest using
// VACUUM INTO. Safe to run while the store is in use.
func (s *Store) Backup(ctx context.Context, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Budget allocations (referenced by requests)
	CREATE TABLE IF NOT EXISTS budget_allocations (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL,
		total TEXT NOT NULL,
		used TEXT NOT NULL DEFAULT '0',
		reserved TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (CAST(used AS REAL) >= 0),
		CHECK (CAST(reserved AS REAL) >= 0),
		CHECK (CAST(used AS REAL) + CAST(reserved AS REAL) <= CAST(total AS REAL))
	);

	-- Procurement requests (aggregate root)
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		requester TEXT NOT NULL,
		unit TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		total_value TEXT NOT NULL,
		budget_code TEXT NOT NULL REFERENCES budget_allocations(code),
		urgency TEXT NOT NULL DEFAULT 'normal',
		note TEXT,
		budget_reserved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_tier
		ON requests(tier);
	CREATE INDEX IF NOT EXISTS idx_requests_requester
		ON requests(requester);
	CREATE INDEX IF NOT EXISTS idx_requests_created_at
		ON requests(created_at DESC);

	-- Line items (owned by one request, cascade on delete)
	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		unit TEXT,
		volume TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (CAST(volume AS REAL) > 0),
		CHECK (CAST(unit_price AS REAL) >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_request
		ON line_items(request_id);

	-- Approval steps (owned by one request, cascade on delete)
	CREATE TABLE IF NOT EXISTS approval_steps (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		step_number INTEGER NOT NULL,
		approver_role TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT 'pending',
		acted_by TEXT,
		note TEXT,
		acted_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(request_id, step_number)
	);

	-- Vendors
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		tax_id TEXT,
		tax_registered BOOLEAN NOT NULL DEFAULT FALSE,
		classification TEXT,
		address TEXT,
		contact TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One vendor record per NPWP; vendors without one are exempt
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vendors_tax_id
		ON vendors(tax_id) WHERE tax_id IS NOT NULL AND tax_id != '';

	-- Contracts. vendor_id goes NULL when the vendor record is removed;
	-- the application refuses vendor deletion while draft or active
	-- contracts still reference it, so only settled history detaches.
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		request_id TEXT NOT NULL REFERENCES requests(id),
		vendor_id TEXT REFERENCES vendors(id) ON DELETE SET NULL,
		value TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		payment_method TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_request
		ON contracts(request_id);
	CREATE INDEX IF NOT EXISTS idx_contracts_vendor
		ON contracts(vendor_id);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		note TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		CHECK (CAST(amount AS REAL) > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_payments_contract
		ON payments(contract_id);

	-- Audit log (append-only; no UPDATE or DELETE statements exist
	-- anywhere in this package for this table)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		actor TEXT,
		ts TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_record
		ON audit_log(table_name, record_id);
	CREATE INDEX IF NOT EXISTS idx_audit_ts
		ON audit_log(ts DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, procure.ErrNotFound)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", op, procure.ErrDuplicateReference)
	case strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %v: %w", op, err, procure.ErrConstraint)
	default:
		return fmt.Errorf("%s: %v: %w", op, err, procure.ErrStorage)
	}
}

// mustRows converts a zero-row UPDATE or DELETE into ErrNotFound.
func mustRows(op string, res sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, procure.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

// =============================================================================
// TRANSACTIONS (workflow.TxStore)
// =============================================================================

// WithTx executes fn within one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(workflow.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the transaction-bound store handed to WithTx callbacks.
// The parent holds the write lock for the transaction's lifetime, so no
// method here locks.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, number, tier, method, status, requester, unit, description,
	category, quantity, total_value, budget_code, urgency, note, budget_reserved,
	created_at, updated_at`

func insertRequest(ctx context.Context, db dbtx, r *procure.Request) error {
	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Number, r.Tier, r.Method, r.Status,
		r.Requester, r.Unit, r.Description, r.Category, r.Quantity,
		r.TotalValue.String(), r.BudgetCode, r.Urgency, nullString(r.Note),
		r.BudgetReserved,
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
	)
	return mapError("insert request", err)
}

func getRequest(ctx context.Context, db dbtx, id string) (*procure.Request, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, mapError("get request", err)
	}
	return r, nil
}

func updateRequest(ctx context.Context, db dbtx, r *procure.Request) error {
	query := `
		UPDATE requests SET
			number = ?, tier = ?, method = ?, status = ?, requester = ?,
			unit = ?, description = ?, category = ?, quantity = ?,
			total_value = ?, budget_code = ?, urgency = ?, note = ?,
			budget_reserved = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		r.Number, r.Tier, r.Method, r.Status, r.Requester,
		r.Unit, r.Description, r.Category, r.Quantity,
		r.TotalValue.String(), r.BudgetCode, r.Urgency, nullString(r.Note),
		r.BudgetReserved, r.UpdatedAt.Format(time.RFC3339),
		r.ID,
	)
	return mustRows("update request", res, err)
}

func deleteRequest(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	return mustRows("delete request", res, err)
}

func listRequests(ctx context.Context, db dbtx, f workflow.RequestFilter) ([]procure.Request, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, f.Tier)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Requester != "" {
		where = append(where, "requester = ?")
		args = append(args, f.Requester)
	}
	if f.Unit != "" {
		where = append(where, "unit = ?")
		args = append(args, f.Unit)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.Format(time.RFC3339))
	}
	if f.Search != "" {
		where = append(where, "(number LIKE ? OR description LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM requests"+clause, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count requests", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := "SELECT " + requestColumns + " FROM requests" + clause +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, mapError("list requests", err)
	}
	defer rows.Close()

	var out []procure.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, mapError("list requests", err)
		}
		out = append(out, *r)
	}
	return out, total, mapError("list requests", rows.Err())
}

// maxNumberSeq reads the highest issued sequence suffix for a scope. The
// suffix starts right after "prefix/year/", so SUBSTR can cut it out and
// CAST handles the leading zeros.
func maxNumberSeq(ctx context.Context, db dbtx, prefix string, year int) (int, error) {
	scope := fmt.Sprintf("%s/%d/", prefix, year)
	var seq int
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(number, ?) AS INTEGER)), 0) FROM requests WHERE number LIKE ?",
		len(scope)+1, scope+"%",
	).Scan(&seq)
	if err != nil {
		return 0, mapError("max number seq", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*procure.Request, error) {
	var (
		r                    procure.Request
		totalValue           string
		note                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&r.ID, &r.Number, &r.Tier, &r.Method, &r.Status,
		&r.Requester, &r.Unit, &r.Description, &r.Category, &r.Quantity,
		&totalValue, &r.BudgetCode, &r.Urgency, &note, &r.BudgetReserved,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.TotalValue = procure.MustDecimal(totalValue)
	r.Note = note.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func (s *Store) InsertRequest(ctx context.Context, r *procure.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*procure.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) UpdateRequest(ctx context.Context, r *procure.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, r)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRequest(ctx, s.db, id)
}

func (s *Store) ListRequests(ctx context.Context, f workflow.RequestFilter) ([]procure.Request, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, f)
}

func (s *Store) MaxNumberSeq(ctx context.Context, prefix string, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maxNumberSeq(ctx, s.db, prefix, year)
}

func (ts *txStore) InsertRequest(ctx context.Context, r *procure.Request) error {
	return insertRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*procure.Request, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) UpdateRequest(ctx context.Context, r *procure.Request) error {
	return updateRequest(ctx, ts.tx, r)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id string) error {
	return deleteRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequests(ctx context.Context, f workflow.RequestFilter) ([]procure.Request, int, error) {
	return listRequests(ctx, ts.tx, f)
}

func (ts *txStore) MaxNumberSeq(ctx context.Context, prefix string, year int) (int, error) {
	return maxNumberSeq(ctx, ts.tx, prefix, year)
}

// =============================================================================
// LINE ITEMS
// =============================================================================

const lineItemColumns = `id, request_id, description, unit, volume, unit_price, amount,
	created_at, updated_at`

func insertLineItem(ctx context.Context, db dbtx, li *procure.LineItem) error {
	query := `
		INSERT INTO line_items (` + lineItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		li.ID, li.RequestID, li.Description, nullString(li.Unit),
		li.Volume.String(), li.UnitPrice.String(), li.Amount.String(),
		li.CreatedAt.Format(time.RFC3339), li.UpdatedAt.Format(time.RFC3339),
	)
	return mapError("insert line item", err)
}

func updateLineItem(ctx context.Context, db dbtx, li *procure.LineItem) error {
	query := `
		UPDATE line_items SET
			description = ?, unit = ?, volume = ?, unit_price = ?, amount = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		li.Description, nullString(li.Unit),
		li.Volume.String(), li.UnitPrice.String(), li.Amount.String(),
		li.UpdatedAt.Format(time.RFC3339), li.ID,
	)
	return mustRows("update line item", res, err)
}

func deleteLineItem(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM line_items WHERE id = ?", id)
	return mustRows("delete line item", res, err)
}

func getLineItem(ctx context.Context, db dbtx, id string) (*procure.LineItem, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+lineItemColumns+" FROM line_items WHERE id = ?", id)
	li, err := scanLineItem(row)
	if err != nil {
		return nil, mapError("get line item", err)
	}
	return li, nil
}

func listLineItems(ctx context.Context, db dbtx, requestID string) ([]procure.LineItem, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+lineItemColumns+" FROM line_items WHERE request_id = ? ORDER BY created_at ASC, id ASC",
		requestID)
	if err != nil {
		return nil, mapError("list line items", err)
	}
	defer rows.Close()

	var out []procure.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, mapError("list line items", err)
		}
		out = append(out, *li)
	}
	return out, mapError("list line items", rows.Err())
}

func scanLineItem(row scanner) (*procure.LineItem, error) {
	var (
		li                        procure.LineItem
		unit                      sql.NullString
		volume, unitPrice, amount string
		createdAt, updatedAt      string
	)
	err := row.Scan(
		&li.ID, &li.RequestID, &li.Description, &unit,
		&volume, &unitPrice, &amount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	li.Unit = unit.String
	li.Volume = procure.MustDecimal(volume)
	li.UnitPrice = procure.MustDecimal(unitPrice)
	li.Amount = procure.MustDecimal(amount)
	li.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	li.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &li, nil
}

func (s *Store) InsertLineItem(ctx context.Context, li *procure.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLineItem(ctx, s.db, li)
}

func (s *Store) UpdateLineItem(ctx context.Context, li *procure.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLineItem(ctx, s.db, li)
}

func (s *Store) DeleteLineItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLineItem(ctx, s.db, id)
}

func (s *Store) GetLineItem(ctx context.Context, id string) (*procure.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLineItem(ctx, s.db, id)
}

func (s *Store) ListLineItems(ctx context.Context, requestID string) ([]procure.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLineItems(ctx, s.db, requestID)
}

func (ts *txStore) InsertLineItem(ctx context.Context, li *procure.LineItem) error {
	return insertLineItem(ctx, ts.tx, li)
}

func (ts *txStore) UpdateLineItem(ctx context.Context, li *procure.LineItem) error {
	return updateLineItem(ctx, ts.tx, li)
}

func (ts *txStore) DeleteLineItem(ctx context.Context, id string) error {
	return deleteLineItem(ctx, ts.tx, id)
}

func (ts *txStore) GetLineItem(ctx context.Context, id string) (*procure.LineItem, error) {
	return getLineItem(ctx, ts.tx, id)
}

func (ts *txStore) ListLineItems(ctx context.Context, requestID string) ([]procure.LineItem, error) {
	return listLineItems(ctx, ts.tx, requestID)
}

// =============================================================================
// APPROVAL STEPS
// =============================================================================

const approvalColumns = `id, request_id, step_number, approver_role, action, acted_by,
	note, acted_at, created_at`

func insertApprovalStep(ctx context.Context, db dbtx, st *procure.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps (` + approvalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		st.ID, st.RequestID, st.StepNumber, st.ApproverRole, st.Action,
		nullString(st.ActedBy), nullString(st.Note), nullTime(st.ActedAt),
		st.CreatedAt.Format(time.RFC3339),
	)
	return mapError("insert approval step", err)
}

func updateApprovalStep(ctx context.Context, db dbtx, st *procure.ApprovalStep) error {
	query := `
		UPDATE approval_steps SET
			action = ?, acted_by = ?, note = ?, acted_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		st.Action, nullString(st.ActedBy), nullString(st.Note), nullTime(st.ActedAt),
		st.ID,
	)
	return mustRows("update approval step", res, err)
}

func deleteApprovalSteps(ctx context.Context, db dbtx, requestID string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM approval_steps WHERE request_id = ?", requestID)
	return mapError("delete approval steps", err)
}

func listApprovalSteps(ctx context.Context, db dbtx, requestID string) ([]procure.ApprovalStep, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+approvalColumns+" FROM approval_steps WHERE request_id = ? ORDER BY step_number ASC",
		requestID)
	if err != nil {
		return nil, mapError("list approval steps", err)
	}
	defer rows.Close()

	var out []procure.ApprovalStep
	for rows.Next() {
		var (
			st            procure.ApprovalStep
			actedBy, note sql.NullString
			actedAt       sql.NullString
			createdAt     string
		)
		if err := rows.Scan(
			&st.ID, &st.RequestID, &st.StepNumber, &st.ApproverRole, &st.Action,
			&actedBy, &note, &actedAt, &createdAt,
		); err != nil {
			return nil, mapError("list approval steps", err)
		}

		st.ActedBy = actedBy.String
		st.Note = note.String
		if actedAt.Valid {
			t, _ := time.Parse(time.RFC3339, actedAt.String)
			st.ActedAt = &t
		}
		st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, st)
	}
	return out, mapError("list approval steps", rows.Err())
}

func (s *Store) InsertApprovalStep(ctx context.Context, st *procure.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertApprovalStep(ctx, s.db, st)
}

func (s *Store) UpdateApprovalStep(ctx context.Context, st *procure.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateApprovalStep(ctx, s.db, st)
}

func (s *Store) DeleteApprovalSteps(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteApprovalSteps(ctx, s.db, requestID)
}

func (s *Store) ListApprovalSteps(ctx context.Context, requestID string) ([]procure.ApprovalStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listApprovalSteps(ctx, s.db, requestID)
}

func (ts *txStore) InsertApprovalStep(ctx context.Context, st *procure.ApprovalStep) error {
	return insertApprovalStep(ctx, ts.tx, st)
}

func (ts *txStore) UpdateApprovalStep(ctx context.Context, st *procure.ApprovalStep) error {
	return updateApprovalStep(ctx, ts.tx, st)
}

func (ts *txStore) DeleteApprovalSteps(ctx context.Context, requestID string) error {
	return deleteApprovalSteps(ctx, ts.tx, requestID)
}

func (ts *txStore) ListApprovalSteps(ctx context.Context, requestID string) ([]procure.ApprovalStep, error) {
	return listApprovalSteps(ctx, ts.tx, requestID)
}

// =============================================================================
// VENDORS
// =============================================================================

const vendorColumns = `id, name, type, tax_id, tax_registered, classification, address,
	contact, created_at, updated_at`

func insertVendor(ctx context.Context, db dbtx, v *procure.Vendor) error {
	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		v.ID, v.Name, v.Type, nullString(v.TaxID), v.TaxRegistered,
		nullString(v.Classification), nullString(v.Address), nullString(v.Contact),
		v.CreatedAt.Format(time.RFC3339), v.UpdatedAt.Format(time.RFC3339),
	)
	return mapError("insert vendor", err)
}

func updateVendor(ctx context.Context, db dbtx, v *procure.Vendor) error {
	query := `
		UPDATE vendors SET
			name = ?, type = ?, tax_id = ?, tax_registered = ?,
			classification = ?, address = ?, contact = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		v.Name, v.Type, nullString(v.TaxID), v.TaxRegistered,
		nullString(v.Classification), nullString(v.Address), nullString(v.Contact),
		v.UpdatedAt.Format(time.RFC3339), v.ID,
	)
	return mustRows("update vendor", res, err)
}

func deleteVendor(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM vendors WHERE id = ?", id)
	return mustRows("delete vendor", res, err)
}

func getVendor(ctx context.Context, db dbtx, id string) (*procure.Vendor, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+vendorColumns+" FROM vendors WHERE id = ?", id)
	v, err := scanVendor(row)
	if err != nil {
		return nil, mapError("get vendor", err)
	}
	return v, nil
}

func listVendors(ctx context.Context, db dbtx) ([]procure.Vendor, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+vendorColumns+" FROM vendors ORDER BY name ASC")
	if err != nil {
		return nil, mapError("list vendors", err)
	}
	defer rows.Close()

	var out []procure.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, mapError("list vendors", err)
		}
		out = append(out, *v)
	}
	return out, mapError("list vendors", rows.Err())
}

func countActiveContracts(ctx context.Context, db dbtx, vendorID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contracts WHERE vendor_id = ? AND status IN ('draft', 'active')",
		vendorID,
	).Scan(&count)
	if err != nil {
		return 0, mapError("count active contracts", err)
	}
	return count, nil
}

func scanVendor(row scanner) (*procure.Vendor, error) {
	var (
		v                              procure.Vendor
		taxID, class, address, contact sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.Type, &taxID, &v.TaxRegistered,
		&class, &address, &contact, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.TaxID = taxID.String
	v.Classification = class.String
	v.Address = address.String
	v.Contact = contact.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

func (s *Store) InsertVendor(ctx context.Context, v *procure.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertVendor(ctx, s.db, v)
}

func (s *Store) UpdateVendor(ctx context.Context, v *procure.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateVendor(ctx, s.db, v)
}

func (s *Store) DeleteVendor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteVendor(ctx, s.db, id)
}

func (s *Store) GetVendor(ctx context.Context, id string) (*procure.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVendor(ctx, s.db, id)
}

func (s *Store) ListVendors(ctx context.Context) ([]procure.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVendors(ctx, s.db)
}

func (s *Store) CountActiveContracts(ctx context.Context, vendorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countActiveContracts(ctx, s.db, vendorID)
}

func (ts *txStore) InsertVendor(ctx context.Context, v *procure.Vendor) error {
	return insertVendor(ctx, ts.tx, v)
}

func (ts *txStore) UpdateVendor(ctx context.Context, v *procure.Vendor) error {
	return updateVendor(ctx, ts.tx, v)
}

func (ts *txStore) DeleteVendor(ctx context.Context, id string) error {
	return deleteVendor(ctx, ts.tx, id)
}

func (ts *txStore) GetVendor(ctx context.Context, id string) (*procure.Vendor, error) {
	return getVendor(ctx, ts.tx, id)
}

func (ts *txStore) ListVendors(ctx context.Context) ([]procure.Vendor, error) {
	return listVendors(ctx, ts.tx)
}

func (ts *txStore) CountActiveContracts(ctx context.Context, vendorID string) (int, error) {
	return countActiveContracts(ctx, ts.tx, vendorID)
}

// =============================================================================
// CONTRACTS AND PAYMENTS
// =============================================================================

const contractColumns = `id, number, request_id, vendor_id, value, start_date, end_date,
	status, payment_method, created_at, updated_at`

func insertContract(ctx context.Context, db dbtx, c *procure.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.Number, c.RequestID, c.VendorID, c.Value.String(),
		c.StartDate.Format(time.RFC3339), c.EndDate.Format(time.RFC3339),
		c.Status, nullString(c.PaymentMethod),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	return mapError("insert contract", err)
}

func updateContract(ctx context.Context, db dbtx, c *procure.Contract) error {
	query := `
		UPDATE contracts SET
			value = ?, start_date = ?, end_date = ?, status = ?,
			payment_method = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		c.Value.String(),
		c.StartDate.Format(time.RFC3339), c.EndDate.Format(time.RFC3339),
		c.Status, nullString(c.PaymentMethod),
		c.UpdatedAt.Format(time.RFC3339), c.ID,
	)
	return mustRows("update contract", res, err)
}

func getContract(ctx context.Context, db dbtx, id string) (*procure.Contract, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+contractColumns+" FROM contracts WHERE id = ?", id)
	c, err := scanContract(row)
	if err != nil {
		return nil, mapError("get contract", err)
	}
	return c, nil
}

func listContracts(ctx context.Context, db dbtx, requestID string) ([]procure.Contract, error) {
	query := "SELECT " + contractColumns + " FROM contracts"
	var args []any
	if requestID != "" {
		query += " WHERE request_id = ?"
		args = append(args, requestID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list contracts", err)
	}
	defer rows.Close()

	var out []procure.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, mapError("list contracts", err)
		}
		out = append(out, *c)
	}
	return out, mapError("list contracts", rows.Err())
}

func scanContract(row scanner) (*procure.Contract, error) {
	var (
		c                    procure.Contract
		vendorID             sql.NullString
		value                string
		startDate, endDate   string
		paymentMethod        sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&c.ID, &c.Number, &c.RequestID, &vendorID, &value,
		&startDate, &endDate, &c.Status, &paymentMethod,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.VendorID = vendorID.String
	c.Value = procure.MustDecimal(value)
	c.PaymentMethod = paymentMethod.String
	c.StartDate, _ = time.Parse(time.RFC3339, startDate)
	c.EndDate, _ = time.Parse(time.RFC3339, endDate)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

const paymentColumns = `id, contract_id, amount, status, note, paid_at, created_at`

func insertPayment(ctx context.Context, db dbtx, p *procure.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.ContractID, p.Amount.String(), p.Status,
		nullString(p.Note), nullTime(p.PaidAt),
		p.CreatedAt.Format(time.RFC3339),
	)
	return mapError("insert payment", err)
}

func updatePayment(ctx context.Context, db dbtx, p *procure.Payment) error {
	query := `
		UPDATE payments SET status = ?, note = ?, paid_at = ? WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		p.Status, nullString(p.Note), nullTime(p.PaidAt), p.ID,
	)
	return mustRows("update payment", res, err)
}

func getPayment(ctx context.Context, db dbtx, id string) (*procure.Payment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapError("get payment", err)
	}
	return p, nil
}

func listPayments(ctx context.Context, db dbtx, contractID string) ([]procure.Payment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE contract_id = ? ORDER BY created_at ASC",
		contractID)
	if err != nil {
		return nil, mapError("list payments", err)
	}
	defer rows.Close()

	var out []procure.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("list payments", err)
		}
		out = append(out, *p)
	}
	return out, mapError("list payments", rows.Err())
}

func sumPayments(ctx context.Context, db dbtx, contractID string) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT amount FROM payments WHERE contract_id = ? AND status != 'cancelled'",
		contractID)
	if err != nil {
		return decimal.Zero, mapError("sum payments", err)
	}
	defer rows.Close()

	// Summed in Go, not SQL: amounts are decimal strings and must not
	// pass through floating point.
	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, mapError("sum payments", err)
		}
		total = total.Add(procure.MustDecimal(amount))
	}
	return total, mapError("sum payments", rows.Err())
}

func scanPayment(row scanner) (*procure.Payment, error) {
	var (
		p         procure.Payment
		amount    string
		note      sql.NullString
		paidAt    sql.NullString
		createdAt string
	)
	err := row.Scan(&p.ID, &p.ContractID, &amount, &p.Status, &note, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}

	p.Amount = procure.MustDecimal(amount)
	p.Note = note.String
	if paidAt.Valid {
		t, _ := time.Parse(time.RFC3339, paidAt.String)
		p.PaidAt = &t
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) InsertContract(ctx context.Context, c *procure.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertContract(ctx, s.db, c)
}

func (s *Store) UpdateContract(ctx context.Context, c *procure.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateContract(ctx, s.db, c)
}

func (s *Store) GetContract(ctx context.Context, id string) (*procure.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getContract(ctx, s.db, id)
}

func (s *Store) ListContracts(ctx context.Context, requestID string) ([]procure.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContracts(ctx, s.db, requestID)
}

func (s *Store) InsertPayment(ctx context.Context, p *procure.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func (s *Store) UpdatePayment(ctx context.Context, p *procure.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}

func (s *Store) GetPayment(ctx context.Context, id string) (*procure.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func (s *Store) ListPayments(ctx context.Context, contractID string) ([]procure.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPayments(ctx, s.db, contractID)
}

func (s *Store) SumPayments(ctx context.Context, contractID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumPayments(ctx, s.db, contractID)
}

func (ts *txStore) InsertContract(ctx context.Context, c *procure.Contract) error {
	return insertContract(ctx, ts.tx, c)
}

func (ts *txStore) UpdateContract(ctx context.Context, c *procure.Contract) error {
	return updateContract(ctx, ts.tx, c)
}

func (ts *txStore) GetContract(ctx context.Context, id string) (*procure.Contract, error) {
	return getContract(ctx, ts.tx, id)
}

func (ts *txStore) ListContracts(ctx context.Context, requestID string) ([]procure.Contract, error) {
	return listContracts(ctx, ts.tx, requestID)
}

func (ts *txStore) InsertPayment(ctx context.Context, p *procure.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) UpdatePayment(ctx context.Context, p *procure.Payment) error {
	return updatePayment(ctx, ts.tx, p)
}

func (ts *txStore) GetPayment(ctx context.Context, id string) (*procure.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) ListPayments(ctx context.Context, contractID string) ([]procure.Payment, error) {
	return listPayments(ctx, ts.tx, contractID)
}

func (ts *txStore) SumPayments(ctx context.Context, contractID string) (decimal.Decimal, error) {
	return sumPayments(ctx, ts.tx, contractID)
}

// =============================================================================
// BUDGET ALLOCATIONS
// =============================================================================

const budgetColumns = `code, name, fiscal_year, total, used, reserved, created_at, updated_at`

func insertBudget(ctx context.Context, db dbtx, b *procure.BudgetAllocation) error {
	query := `
		INSERT INTO budget_allocations (` + budgetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		b.Code, b.Name, b.FiscalYear,
		b.Total.String(), b.Used.String(), b.Reserved.String(),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339),
	)
	return mapError("insert budget", err)
}

func getBudget(ctx context.Context, db dbtx, code string) (*procure.BudgetAllocation, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budget_allocations WHERE code = ?", code)
	b, err := scanBudget(row)
	if err != nil {
		return nil, mapError("get budget", err)
	}
	return b, nil
}

func updateBudgetAmounts(ctx context.Context, db dbtx, code string, used, reserved decimal.Decimal, now time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE budget_allocations SET used = ?, reserved = ?, updated_at = ? WHERE code = ?",
		used.String(), reserved.String(), now.UTC().Format(time.RFC3339), code,
	)
	return mustRows("update budget amounts", res, err)
}

func listBudgets(ctx context.Context, db dbtx) ([]procure.BudgetAllocation, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budget_allocations ORDER BY code ASC")
	if err != nil {
		return nil, mapError("list budgets", err)
	}
	defer rows.Close()

	var out []procure.BudgetAllocation
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, mapError("list budgets", err)
		}
		out = append(out, *b)
	}
	return out, mapError("list budgets", rows.Err())
}

func scanBudget(row scanner) (*procure.BudgetAllocation, error) {
	var (
		b                     procure.BudgetAllocation
		total, used, reserved string
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&b.Code, &b.Name, &b.FiscalYear, &total, &used, &reserved,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Total = procure.MustDecimal(total)
	b.Used = procure.MustDecimal(used)
	b.Reserved = procure.MustDecimal(reserved)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (s *Store) InsertBudget(ctx context.Context, b *procure.BudgetAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertBudget(ctx, s.db, b)
}

func (s *Store) GetBudget(ctx context.Context, code string) (*procure.BudgetAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBudget(ctx, s.db, code)
}

func (s *Store) UpdateBudgetAmounts(ctx context.Context, code string, used, reserved decimal.Decimal, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBudgetAmounts(ctx, s.db, code, used, reserved, now)
}

func (s *Store) ListBudgets(ctx context.Context) ([]procure.BudgetAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBudgets(ctx, s.db)
}

func (ts *txStore) InsertBudget(ctx context.Context, b *procure.BudgetAllocation) error {
	return insertBudget(ctx, ts.tx, b)
}

func (ts *txStore) GetBudget(ctx context.Context, code string) (*procure.BudgetAllocation, error) {
	return getBudget(ctx, ts.tx, code)
}

func (ts *txStore) UpdateBudgetAmounts(ctx context.Context, code string, used, reserved decimal.Decimal, now time.Time) error {
	return updateBudgetAmounts(ctx, ts.tx, code, used, reserved, now)
}

func (ts *txStore) ListBudgets(ctx context.Context) ([]procure.BudgetAllocation, error) {
	return listBudgets(ctx, ts.tx)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func appendAudit(ctx context.Context, db dbtx, e procure.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, table_name, record_id, action, before_json, after_json, actor, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.Table, e.RecordID, e.Action,
		nullString(e.Before), nullString(e.After), nullString(e.Actor),
		e.Timestamp.Format(time.RFC3339),
	)
	return mapError("append audit", err)
}

func queryAudit(ctx context.Context, db dbtx, f procure.AuditFilter) ([]procure.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Table != "" {
		where = append(where, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, f.RecordID)
	}
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if len(f.Actions) > 0 {
		ph := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			ph[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(ph, ", ")+")")
	}
	if f.From != nil {
		where = append(where, "ts >= ?")
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		where = append(where, "ts <= ?")
		args = append(args, f.To.Format(time.RFC3339))
	}

	query := "SELECT id, table_name, record_id, action, before_json, after_json, actor, ts FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"

	limit := f.Limit
	if limit < 1 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("query audit", err)
	}
	defer rows.Close()

	var out []procure.AuditEntry
	for rows.Next() {
		var (
			e                    procure.AuditEntry
			before, after, actor sql.NullString
			ts                   string
		)
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Action, &before, &after, &actor, &ts); err != nil {
			return nil, mapError("query audit", err)
		}
		e.Before = before.String
		e.After = after.String
		e.Actor = actor.String
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, e)
	}
	return out, mapError("query audit", rows.Err())
}

func (s *Store) AppendAudit(ctx context.Context, e procure.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func (s *Store) QueryAudit(ctx context.Context, f procure.AuditFilter) ([]procure.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAudit(ctx, s.db, f)
}

func (ts *txStore) AppendAudit(ctx context.Context, e procure.AuditEntry) error {
	return appendAudit(ctx, ts.tx, e)
}

func (ts *txStore) QueryAudit(ctx context.Context, f procure.AuditFilter) ([]procure.AuditEntry, error) {
	return queryAudit(ctx, ts.tx, f)
}
