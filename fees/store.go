/*
store.go - Persistence interfaces for structures, grades, and invoices

PURPOSE:
  Defines the boundary between the engine and whatever persists its data.
  The engine performs no I/O itself; aggregation, computation, and batch
  expansion run to completion over data the caller already fetched, and the
  results are handed back through these interfaces.

BATCH CONTRACT:
  InvoiceStore.AppendBatch is all-or-nothing. A bulk generation run either
  commits every invoice in the batch or none of them; a failure surfaces as
  one error for the whole batch and the caller decides whether to retry it.
  There is no Update or Delete for invoices - they are mutated only by
  payments being appended.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - fees/store: in-memory store for tests and dev mode

SEE ALSO:
  - generate.go: The only producer of invoice batches
  - assignment.go: Grade back-reference mutations
*/
package fees

import "context"

// StructureStore persists normalized fee structures.
type StructureStore interface {
	SaveStructure(ctx context.Context, s FeeStructure) error

	// GetStructure returns the structure or ErrStructureNotFound.
	GetStructure(ctx context.Context, id StructureID) (FeeStructure, error)

	ListStructures(ctx context.Context) ([]FeeStructure, error)

	// DeleteStructure removes the structure. Cascading unassignment of
	// grades is the resolver's job, not the store's.
	DeleteStructure(ctx context.Context, id StructureID) error
}

// GradeStore persists grades and their structure back-references.
type GradeStore interface {
	SaveGrade(ctx context.Context, g Grade) error

	// GetGrade returns the grade or ErrGradeNotFound.
	GetGrade(ctx context.Context, id GradeID) (Grade, error)

	ListGrades(ctx context.Context) ([]Grade, error)

	// SetAssignment sets (or clears, with an empty id) the grade's
	// FeeStructureID back-reference.
	SetAssignment(ctx context.Context, gradeID GradeID, structureID StructureID) error
}

// InvoiceStore persists generated invoices and their payments.
type InvoiceStore interface {
	// AppendBatch persists all invoices atomically. Either all succeed or
	// none do.
	AppendBatch(ctx context.Context, invoices []Invoice) error

	// GetInvoice returns the invoice or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id InvoiceID) (Invoice, error)

	ListByStudent(ctx context.Context, studentID StudentID) ([]Invoice, error)

	ListByBatch(ctx context.Context, batchID string) ([]Invoice, error)

	// AppendPayment appends a payment to an invoice and recomputes its
	// paid/due amounts.
	AppendPayment(ctx context.Context, id InvoiceID, p Payment) (Invoice, error)
}
