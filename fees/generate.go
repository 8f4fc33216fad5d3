/*
generate.go - Bulk invoice generation

PURPOSE:
  Expands a (structure, term, grade-set, bucket-set) selection into one
  invoice per student per selected bucket and commits the whole batch
  atomically. This is the only way invoices come into existence.

VALIDATION (fail-fast, before any invoice is created):
  1. Due date present, not before the generate date  -> ErrMissingDueDate
  2. Structure resolves and carries the term          -> ErrStructureNotFound
  3. Every grade id resolves, at least one given      -> ErrInvalidGrade
  4. Bucket ids are a non-empty subset of the term's  -> ErrInvalidBucketSelection

EXPANSION:
  For each grade, for each of its StudentCount students, for each selected
  bucket: one Invoice with TotalAmount = AmountDue = bucket total,
  AmountPaid = 0, empty payment history, tagged with term, academic year,
  and the supplied dates. When real student identities are unknown a stable
  placeholder id is synthesized per grade+ordinal, so re-running against the
  same roster addresses the same students.

ATOMICITY:
  The batch goes to InvoiceStore.AppendBatch in one call. On store failure
  the run reports a single wrapped ErrPersistenceFailure and nothing is
  committed.

DEDUPLICATION (policy decision):
  Generation does NOT deduplicate against existing invoices. Calling twice
  with identical input produces two batches. Callers wanting at-most-once
  semantics must check existing invoices for the same student/term/bucket
  before calling, or serialize requests externally.

PROGRESS:
  An optional callback receives a monotonically increasing 0-100 estimate.
  It is cosmetic: generation is synchronous and 100 is reported only after
  the batch is committed.

SEE ALSO:
  - store.go: AppendBatch contract
  - compute.go: Summaries over the generated invoices
*/
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// REQUEST
// =============================================================================

// GenerationRequest selects what to invoice. GradeIDs and SelectedBuckets
// must be non-empty; DueDate is required and may not precede GenerateDate.
type GenerationRequest struct {
	FeeStructureID      StructureID `validate:"required"`
	Term                Term        `validate:"required"`
	GradeIDs            []GradeID   `validate:"required,min=1"`
	SelectedBuckets     []BucketID  `validate:"required,min=1"`
	GenerateDate        time.Time   `validate:"required"`
	DueDate             time.Time
	IncludeOptionalFees bool
	CustomMessage       string
}

// ProgressFunc receives completion estimates in [0,100].
type ProgressFunc func(percent int)

// GenerationResult describes one committed batch.
type GenerationResult struct {
	BatchID      string
	Invoices     []Invoice
	InvoiceCount int
	TotalBilled  Money
	StudentCount int
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator expands generation requests into invoice batches.
type Generator struct {
	Structures StructureStore
	Grades     GradeStore
	Invoices   InvoiceStore

	// Progress, when set, receives 0-100 completion estimates.
	Progress ProgressFunc

	validate *validator.Validate
}

func NewGenerator(structures StructureStore, grades GradeStore, invoices InvoiceStore) *Generator {
	return &Generator{
		Structures: structures,
		Grades:     grades,
		Invoices:   invoices,
		validate:   validator.New(),
	}
}

// PlaceholderStudentID synthesizes a stable student id for grade+ordinal,
// used when explicit student identities are not available.
func PlaceholderStudentID(gradeID GradeID, ordinal int) StudentID {
	return StudentID(fmt.Sprintf("%s-student-%03d", gradeID, ordinal))
}

// Generate validates the request, expands it into invoices, and commits the
// batch atomically. No invoice is created on any validation error.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	structure, term, grades, buckets, err := g.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	now := req.GenerateDate

	total := 0
	for _, grade := range grades {
		total += grade.StudentCount * len(buckets)
	}
	g.report(0)

	invoices := make([]Invoice, 0, total)
	built := 0
	for _, grade := range grades {
		for ordinal := 1; ordinal <= grade.StudentCount; ordinal++ {
			studentID := PlaceholderStudentID(grade.ID, ordinal)
			for _, bucket := range buckets {
				amount := bucket.Total()
				invoices = append(invoices, Invoice{
					ID:           InvoiceID(uuid.NewString()),
					BatchID:      batchID,
					StudentID:    studentID,
					GradeID:      grade.ID,
					FeeType:      bucket.Type,
					BucketID:     bucket.ID,
					BucketName:   bucket.Name,
					TotalAmount:  amount,
					AmountPaid:   ZeroMoney(),
					AmountDue:    amount,
					GenerateDate: now,
					DueDate:      req.DueDate,
					Term:         term.Term,
					AcademicYear: structure.AcademicYear,
					Message:      req.CustomMessage,
				})
				built++
				if total > 0 {
					// Hold back the last few percent for the commit.
					g.report(built * 95 / total)
				}
			}
		}
	}

	if err := g.Invoices.AppendBatch(ctx, invoices); err != nil {
		return nil, fmt.Errorf("%w: batch %s: %v", ErrPersistenceFailure, batchID, err)
	}
	g.report(100)

	result := &GenerationResult{
		BatchID:      batchID,
		Invoices:     invoices,
		InvoiceCount: len(invoices),
		TotalBilled:  ZeroMoney(),
	}
	for _, grade := range grades {
		result.StudentCount += grade.StudentCount
	}
	for _, inv := range invoices {
		result.TotalBilled = result.TotalBilled.Add(inv.TotalAmount)
	}
	return result, nil
}

// resolve runs every validation before anything is created.
func (g *Generator) resolve(ctx context.Context, req GenerationRequest) (FeeStructure, TermStructure, []Grade, []FeeBucket, error) {
	var none FeeStructure
	var noneTerm TermStructure

	if req.DueDate.IsZero() {
		return none, noneTerm, nil, nil, ErrMissingDueDate
	}
	if err := g.validate.Struct(req); err != nil {
		// Structural problems on grade/bucket slices map to the matching
		// domain error; anything else is a missing structure selection.
		if len(req.GradeIDs) == 0 {
			return none, noneTerm, nil, nil, ErrInvalidGrade
		}
		if len(req.SelectedBuckets) == 0 {
			return none, noneTerm, nil, nil, ErrInvalidBucketSelection
		}
		return none, noneTerm, nil, nil, fmt.Errorf("%w: %v", ErrStructureNotFound, err)
	}
	if req.DueDate.Before(req.GenerateDate) {
		return none, noneTerm, nil, nil, fmt.Errorf("%w: due date precedes generate date", ErrMissingDueDate)
	}

	structure, err := g.Structures.GetStructure(ctx, req.FeeStructureID)
	if err != nil {
		return none, noneTerm, nil, nil, err
	}
	term, ok := structure.TermStructure(req.Term)
	if !ok {
		return none, noneTerm, nil, nil, fmt.Errorf("%w: structure %s has no %s", ErrStructureNotFound, structure.ID, req.Term)
	}

	grades := make([]Grade, 0, len(req.GradeIDs))
	var unknownGrades []GradeID
	for _, id := range req.GradeIDs {
		grade, err := g.Grades.GetGrade(ctx, id)
		if err != nil {
			unknownGrades = append(unknownGrades, id)
			continue
		}
		grades = append(grades, grade)
	}
	if len(unknownGrades) > 0 {
		return none, noneTerm, nil, nil, &GradeSelectionError{Unknown: unknownGrades}
	}

	buckets := make([]FeeBucket, 0, len(req.SelectedBuckets))
	var unknownBuckets []BucketID
	for _, id := range req.SelectedBuckets {
		bucket, ok := term.Bucket(id)
		if !ok {
			unknownBuckets = append(unknownBuckets, id)
			continue
		}
		if bucket.IsOptional && !req.IncludeOptionalFees {
			continue
		}
		buckets = append(buckets, bucket)
	}
	if len(unknownBuckets) > 0 {
		return none, noneTerm, nil, nil, &BucketSelectionError{Term: req.Term, Unknown: unknownBuckets}
	}
	if len(buckets) == 0 {
		return none, noneTerm, nil, nil, ErrInvalidBucketSelection
	}

	return structure, term, grades, buckets, nil
}

func (g *Generator) report(percent int) {
	if g.Progress != nil {
		g.Progress(percent)
	}
}
