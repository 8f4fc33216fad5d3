/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (StructureStore, GradeStore,
  InvoiceStore) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  structures:  Normalized fee structures; term catalogue serialized as JSON
               (same pattern as storing versioned config blobs)
  grades:      Grade records with the weak fee_structure_id back-reference
  invoices:    Generated invoices; amounts stored as decimal strings
  payments:    Append-only payment history per invoice

BATCH SEMANTICS:
  AppendBatch wraps all inserts in one database transaction - either every
  invoice in a generation run is committed or none are. AppendPayment
  inserts the payment row and updates the invoice's paid/due amounts in the
  same transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/fees.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - fees/store.go: Interface definitions
  - fees/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shulebill/fee-engine/fees"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases alive across queries;
	// writes are serialized by s.mu anyway.
	db.SetMaxOpenConns(1)

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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS structures (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grade TEXT,
		boarding_type TEXT,
		academic_year TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		terms_json TEXT NOT NULL,
		grade_refs_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		section TEXT,
		boarding_type TEXT,
		fee_structure_id TEXT NOT NULL DEFAULT '',
		student_count INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Hot path for assignment lookups and cascade unassignment
	CREATE INDEX IF NOT EXISTS idx_grades_structure
		ON grades(fee_structure_id);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		grade_id TEXT NOT NULL,
		fee_type TEXT NOT NULL,
		bucket_id TEXT NOT NULL,
		bucket_name TEXT,
		total_amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		generate_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		term TEXT NOT NULL,
		academic_year TEXT NOT NULL,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_student
		ON invoices(student_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_batch
		ON invoices(batch_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount TEXT NOT NULL,
		method TEXT,
		reference TEXT,
		paid_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_invoice
		ON payments(invoice_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STRUCTURE STORE
// =============================================================================

func (s *Store) SaveStructure(ctx context.Context, structure fees.FeeStructure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	termsJSON, err := json.Marshal(structure.TermStructures)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	refsJSON, err := json.Marshal(structure.GradeRefs)
	if err != nil {
		return fmt.Errorf("marshal grade refs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO structures (id, name, grade, boarding_type, academic_year, is_active, updated_at, terms_json, grade_refs_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			grade = excluded.grade,
			boarding_type = excluded.boarding_type,
			academic_year = excluded.academic_year,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at,
			terms_json = excluded.terms_json,
			grade_refs_json = excluded.grade_refs_json`,
		string(structure.ID), structure.Name, structure.Grade, string(structure.BoardingType),
		string(structure.AcademicYear), boolToInt(structure.IsActive),
		structure.UpdatedAt.Format(time.RFC3339), string(termsJSON), string(refsJSON))
	return err
}

func (s *Store) GetStructure(ctx context.Context, id fees.StructureID) (fees.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, grade, boarding_type, academic_year, is_active, updated_at, terms_json, grade_refs_json
		FROM structures WHERE id = ?`, string(id))
	structure, err := scanStructure(row)
	if err == sql.ErrNoRows {
		return fees.FeeStructure{}, fees.ErrStructureNotFound
	}
	return structure, err
}

func (s *Store) ListStructures(ctx context.Context) ([]fees.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, grade, boarding_type, academic_year, is_active, updated_at, terms_json, grade_refs_json
		FROM structures ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fees.FeeStructure
	for rows.Next() {
		structure, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, structure)
	}
	return out, rows.Err()
}

func (s *Store) DeleteStructure(ctx context.Context, id fees.StructureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM structures WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fees.ErrStructureNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStructure(row rowScanner) (fees.FeeStructure, error) {
	var (
		id, name, grade, boarding, year, updatedAt, termsJSON, refsJSON string
		isActive                                                        int
	)
	if err := row.Scan(&id, &name, &grade, &boarding, &year, &isActive, &updatedAt, &termsJSON, &refsJSON); err != nil {
		return fees.FeeStructure{}, err
	}
	structure := fees.FeeStructure{
		ID:           fees.StructureID(id),
		Name:         name,
		Grade:        grade,
		BoardingType: fees.BoardingType(boarding),
		AcademicYear: fees.AcademicYearID(year),
		IsActive:     isActive != 0,
	}
	structure.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if err := json.Unmarshal([]byte(termsJSON), &structure.TermStructures); err != nil {
		return fees.FeeStructure{}, fmt.Errorf("unmarshal terms for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(refsJSON), &structure.GradeRefs); err != nil {
		return fees.FeeStructure{}, fmt.Errorf("unmarshal grade refs for %s: %w", id, err)
	}
	return structure, nil
}

// =============================================================================
// GRADE STORE
// =============================================================================

func (s *Store) SaveGrade(ctx context.Context, g fees.Grade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grades (id, name, section, boarding_type, fee_structure_id, student_count, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			section = excluded.section,
			boarding_type = excluded.boarding_type,
			fee_structure_id = excluded.fee_structure_id,
			student_count = excluded.student_count,
			is_active = excluded.is_active`,
		string(g.ID), g.Name, g.Section, string(g.BoardingType),
		string(g.FeeStructureID), g.StudentCount, boolToInt(g.IsActive))
	return err
}

func (s *Store) GetGrade(ctx context.Context, id fees.GradeID) (fees.Grade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, section, boarding_type, fee_structure_id, student_count, is_active
		FROM grades WHERE id = ?`, string(id))
	g, err := scanGrade(row)
	if err == sql.ErrNoRows {
		return fees.Grade{}, fees.ErrGradeNotFound
	}
	return g, err
}

func (s *Store) ListGrades(ctx context.Context) ([]fees.Grade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, section, boarding_type, fee_structure_id, student_count, is_active
		FROM grades ORDER BY name, section`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fees.Grade
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SetAssignment(ctx context.Context, gradeID fees.GradeID, structureID fees.StructureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE grades SET fee_structure_id = ? WHERE id = ?`,
		string(structureID), string(gradeID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fees.ErrGradeNotFound
	}
	return nil
}

func scanGrade(row rowScanner) (fees.Grade, error) {
	var (
		id, name, section, boarding, structureID string
		studentCount, isActive                   int
	)
	if err := row.Scan(&id, &name, &section, &boarding, &structureID, &studentCount, &isActive); err != nil {
		return fees.Grade{}, err
	}
	return fees.Grade{
		ID:             fees.GradeID(id),
		Name:           name,
		Section:        section,
		BoardingType:   fees.BoardingType(boarding),
		FeeStructureID: fees.StructureID(structureID),
		StudentCount:   studentCount,
		IsActive:       isActive != 0,
	}, nil
}

// =============================================================================
// INVOICE STORE
// =============================================================================

// AppendBatch inserts all invoices in one database transaction.
// Either every invoice in the batch is committed or none are.
func (s *Store) AppendBatch(ctx context.Context, invoices []fees.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO invoices (id, batch_id, student_id, grade_id, fee_type, bucket_id, bucket_name,
			total_amount, amount_paid, amount_due, generate_date, due_date, term, academic_year, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inv := range invoices {
		_, err := stmt.ExecContext(ctx,
			string(inv.ID), inv.BatchID, string(inv.StudentID), string(inv.GradeID),
			string(inv.FeeType), string(inv.BucketID), inv.BucketName,
			inv.TotalAmount.String(), inv.AmountPaid.String(), inv.AmountDue.String(),
			inv.GenerateDate.Format(time.RFC3339), inv.DueDate.Format(time.RFC3339),
			string(inv.Term), string(inv.AcademicYear), inv.Message)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetInvoice(ctx context.Context, id fees.InvoiceID) (fees.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectInvoice+` WHERE id = ?`, string(id))
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return fees.Invoice{}, fees.ErrInvoiceNotFound
	}
	if err != nil {
		return fees.Invoice{}, err
	}
	if err := s.loadPayments(ctx, &inv); err != nil {
		return fees.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) ListByStudent(ctx context.Context, studentID fees.StudentID) ([]fees.Invoice, error) {
	return s.listInvoices(ctx, ` WHERE student_id = ? ORDER BY generate_date, id`, string(studentID))
}

func (s *Store) ListByBatch(ctx context.Context, batchID string) ([]fees.Invoice, error) {
	return s.listInvoices(ctx, ` WHERE batch_id = ? ORDER BY student_id, bucket_id`, batchID)
}

func (s *Store) listInvoices(ctx context.Context, where string, arg any) ([]fees.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectInvoice+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fees.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadPayments(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AppendPayment inserts the payment row and updates the invoice's paid/due
// amounts in the same transaction.
func (s *Store) AppendPayment(ctx context.Context, id fees.InvoiceID, p fees.Payment) (fees.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, selectInvoice+` WHERE id = ?`, string(id))
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return fees.Invoice{}, fees.ErrInvoiceNotFound
	}
	if err != nil {
		return fees.Invoice{}, err
	}

	updated := inv.ApplyPayment(p)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fees.Invoice{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, reference, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, string(id), p.Amount.String(), p.Method, p.Reference, p.PaidAt.Format(time.RFC3339)); err != nil {
		return fees.Invoice{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoices SET amount_paid = ?, amount_due = ? WHERE id = ?`,
		updated.AmountPaid.String(), updated.AmountDue.String(), string(id)); err != nil {
		return fees.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return fees.Invoice{}, err
	}

	if err := s.loadPayments(ctx, &updated); err != nil {
		return fees.Invoice{}, err
	}
	return updated, nil
}

const selectInvoice = `
	SELECT id, batch_id, student_id, grade_id, fee_type, bucket_id, bucket_name,
		total_amount, amount_paid, amount_due, generate_date, due_date, term, academic_year, message
	FROM invoices`

func scanInvoice(row rowScanner) (fees.Invoice, error) {
	var (
		id, batchID, studentID, gradeID, feeType, bucketID, bucketName string
		totalAmount, amountPaid, amountDue                             string
		generateDate, dueDate, term, academicYear, message             string
	)
	if err := row.Scan(&id, &batchID, &studentID, &gradeID, &feeType, &bucketID, &bucketName,
		&totalAmount, &amountPaid, &amountDue, &generateDate, &dueDate, &term, &academicYear, &message); err != nil {
		return fees.Invoice{}, err
	}
	inv := fees.Invoice{
		ID:           fees.InvoiceID(id),
		BatchID:      batchID,
		StudentID:    fees.StudentID(studentID),
		GradeID:      fees.GradeID(gradeID),
		FeeType:      fees.BucketType(feeType),
		BucketID:     fees.BucketID(bucketID),
		BucketName:   bucketName,
		TotalAmount:  fees.ParseMoney(totalAmount),
		AmountPaid:   fees.ParseMoney(amountPaid),
		AmountDue:    fees.ParseMoney(amountDue),
		Term:         fees.Term(term),
		AcademicYear: fees.AcademicYearID(academicYear),
		Message:      message,
	}
	inv.GenerateDate, _ = time.Parse(time.RFC3339, generateDate)
	inv.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	return inv, nil
}

func (s *Store) loadPayments(ctx context.Context, inv *fees.Invoice) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, method, reference, paid_at
		FROM payments WHERE invoice_id = ? ORDER BY paid_at, id`, string(inv.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	inv.PaymentHistory = nil
	for rows.Next() {
		var p fees.Payment
		var amount, paidAt string
		if err := rows.Scan(&p.ID, &amount, &p.Method, &p.Reference, &paidAt); err != nil {
			return err
		}
		p.Amount = fees.ParseMoney(amount)
		p.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
		inv.PaymentHistory = append(inv.PaymentHistory, p)
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
