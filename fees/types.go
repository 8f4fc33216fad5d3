/*
Package fees provides the core fee structure and invoice generation engine.

PURPOSE:
  This package contains the data model and algorithms for managing a school's
  fee catalogue: terms, fee buckets, fee components, and the invoices generated
  from them. Whether the catalogue covers tuition, transport, meals, or
  boarding, the same engine handles aggregation, totals, and batch invoice
  expansion.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A non-negative decimal amount in a single implied currency
  - FeeComponent: The smallest billable line item inside a bucket
  - FeeBucket: A named grouping of related charges (e.g., "Transport")
  - TermStructure: The fee catalogue for one academic term
  - FeeStructure: The full catalogue for one grade/boarding-type/year combo
  - Grade: A class of students with a weak back-reference to a structure
  - Invoice/Payment: Generated billing records and their payment history

DESIGN PRINCIPLES:
  1. Immutability: catalogue values are never mutated in place; edits replace
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing structure/grade IDs
  4. Derivation: bucket totals, term totals, and payment status are computed,
     never trusted from input

USAGE:
  bucket := fees.FeeBucket{
      ID:   "bkt-tuition",
      Type: fees.BucketTuition,
      Components: []fees.FeeComponent{
          {Name: "Base tuition", Amount: fees.NewMoney(30000)},
          {Name: "Library levy", Amount: fees.NewMoney(5000)},
      },
  }
  total := bucket.Total() // 35000

SEE ALSO:
  - aggregate.go: Merging raw term-fragmented records into structures
  - compute.go: Totals, projections, and student fee summaries
  - generate.go: Bulk invoice generation
*/
package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Non-negative decimal amount, currency-agnostic
// =============================================================================

// Money wraps a decimal amount. The engine is currency-agnostic: all amounts
// are in one implied currency and no formatting is applied here.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

// ParseMoney parses a decimal string. Malformed input degrades to zero
// because upstream records are occasionally incomplete.
func ParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money        { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money        { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) MulInt(n int64) Money     { return Money{Value: m.Value.Mul(decimal.NewFromInt(n))} }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }
func (m Money) String() string           { return m.Value.String() }

// MarshalJSON renders the bare decimal value.
func (m Money) MarshalJSON() ([]byte, error) {
	return m.Value.MarshalJSON()
}

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Value.UnmarshalJSON(data)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StructureID string
type TermID string
type BucketID string
type GradeID string
type StudentID string
type InvoiceID string
type AcademicYearID string

// =============================================================================
// TERMS
// =============================================================================

// Term names the academic term a structure or invoice belongs to.
type Term string

const (
	Term1 Term = "Term 1"
	Term2 Term = "Term 2"
	Term3 Term = "Term 3"
)

// =============================================================================
// FEE CATALOGUE - components, buckets, terms, structures
// =============================================================================

// BucketType categorizes a fee bucket.
type BucketType string

const (
	BucketTuition   BucketType = "tuition"
	BucketTransport BucketType = "transport"
	BucketMeals     BucketType = "meals"
	BucketBoarding  BucketType = "boarding"
	BucketOther     BucketType = "other"
)

// FeeComponent is the leaf monetary unit. Immutable once created.
type FeeComponent struct {
	ID          string
	Name        string
	Description string
	Amount      Money
	Category    string
}

// FeeBucket groups related charges within one term.
//
// Amount is a cached total: when Components is non-empty the components are
// the source of truth and Total() sums them; a bucket may also exist with no
// components and an authoritative Amount (e.g., built from flattened API
// items).
type FeeBucket struct {
	ID          BucketID
	Type        BucketType
	Name        string
	Description string
	Amount      Money
	IsOptional  bool
	Components  []FeeComponent
}

// Total returns the bucket total: the component sum when components exist,
// the bucket-level amount otherwise. Empty bucket yields zero.
func (b FeeBucket) Total() Money {
	if len(b.Components) == 0 {
		return b.Amount
	}
	total := ZeroMoney()
	for _, c := range b.Components {
		total = total.Add(c.Amount)
	}
	return total
}

// TermStructure is the fee catalogue for one academic term.
type TermStructure struct {
	ID                   TermID
	Term                 Term
	Buckets              []FeeBucket
	DueDate              time.Time
	LatePaymentFee       Money
	EarlyPaymentDiscount *Money
	EarlyPaymentDeadline *time.Time
}

// Total returns the sum of all bucket totals for the term. Empty yields zero.
func (t TermStructure) Total() Money {
	total := ZeroMoney()
	for _, b := range t.Buckets {
		total = total.Add(b.Total())
	}
	return total
}

// Bucket returns the bucket with the given id, if present.
func (t TermStructure) Bucket(id BucketID) (FeeBucket, bool) {
	for _, b := range t.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return FeeBucket{}, false
}

// BoardingType identifies which students a structure applies to.
type BoardingType string

const (
	BoardingDay  BoardingType = "day"
	BoardingFull BoardingType = "boarding"
	BoardingBoth BoardingType = "both"
)

// GradeRef is a de-duplicated reference to a grade level carried by a
// structure. It is informational; assignment lives on the Grade side.
type GradeRef struct {
	ID   GradeID
	Name string
}

// FeeStructure is the full fee catalogue for one grade/boarding-type/academic
// year combination, spanning all terms. A structure belongs to exactly one
// academic year. The origin system may split it into multiple raw records
// (one per term); the aggregator re-merges those into one FeeStructure.
type FeeStructure struct {
	ID             StructureID
	Name           string
	Grade          string
	BoardingType   BoardingType
	AcademicYear   AcademicYearID
	GradeRefs      []GradeRef
	IsActive       bool
	TermStructures []TermStructure
	UpdatedAt      time.Time
}

// TermStructure returns the entry for the given term, if present.
func (s FeeStructure) TermStructure(term Term) (TermStructure, bool) {
	for _, t := range s.TermStructures {
		if t.Term == term {
			return t, true
		}
	}
	return TermStructure{}, false
}

// CurrentBuckets returns the buckets of the first term in iteration order,
// used as the default display set when no term is selected.
func (s FeeStructure) CurrentBuckets() []FeeBucket {
	if len(s.TermStructures) == 0 {
		return nil
	}
	return s.TermStructures[0].Buckets
}

// =============================================================================
// GRADE - class of students with a weak structure back-reference
// =============================================================================

// Grade is a class of students. FeeStructureID is a back-reference, not
// ownership: many grades may reference one structure, a grade may reference
// none, and deleting a structure clears the reference without touching the
// grade itself.
type Grade struct {
	ID             GradeID
	Name           string
	Section        string
	BoardingType   BoardingType
	FeeStructureID StructureID // empty = unassigned
	StudentCount   int
	IsActive       bool
}

// IsAssigned reports whether the grade references any fee structure.
func (g Grade) IsAssigned() bool { return g.FeeStructureID != "" }

// =============================================================================
// INVOICE - generated billing record
// =============================================================================

// PaymentStatus is derived from invoice amounts and the due date. It is never
// authoritative input.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPending PaymentStatus = "pending"
	StatusPartial PaymentStatus = "partial"
	StatusOverdue PaymentStatus = "overdue"
)

// Payment is one entry in an invoice's payment history.
type Payment struct {
	ID        string
	Amount    Money
	Method    string
	Reference string
	PaidAt    time.Time
}

// Invoice is created only by the bulk generator (or single generation) and is
// mutated only by payments being appended. Invariant:
// AmountDue == TotalAmount - AmountPaid.
type Invoice struct {
	ID             InvoiceID
	BatchID        string
	StudentID      StudentID
	GradeID        GradeID
	FeeType        BucketType
	BucketID       BucketID
	BucketName     string
	TotalAmount    Money
	AmountPaid     Money
	AmountDue      Money
	GenerateDate   time.Time
	DueDate        time.Time
	Term           Term
	AcademicYear   AcademicYearID
	Message        string
	PaymentHistory []Payment
}

// Status derives the payment status at the given time:
// paid when nothing is due, partial when something but not all is paid,
// overdue when unpaid past the due date, pending otherwise.
func (inv Invoice) Status(now time.Time) PaymentStatus {
	switch {
	case !inv.AmountDue.IsPositive():
		return StatusPaid
	case inv.AmountPaid.IsPositive():
		return StatusPartial
	case now.After(inv.DueDate):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// ApplyPayment returns a copy with the payment appended and the paid/due
// amounts recomputed. The original invoice is not modified.
func (inv Invoice) ApplyPayment(p Payment) Invoice {
	out := inv
	out.AmountPaid = inv.AmountPaid.Add(p.Amount)
	out.AmountDue = inv.TotalAmount.Sub(out.AmountPaid)
	out.PaymentHistory = make([]Payment, 0, len(inv.PaymentHistory)+1)
	out.PaymentHistory = append(out.PaymentHistory, inv.PaymentHistory...)
	out.PaymentHistory = append(out.PaymentHistory, p)
	return out
}
