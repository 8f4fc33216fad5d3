/*
compute.go - Fee totals, revenue projections, and student balance summaries

PURPOSE:
  Two independent computation paths that agree in shape but diverge in source:

  Structure-based (before any invoice exists):
    Bucket and term totals from the catalogue, used for previews and for
    revenue projections (term total x student count).

  Invoice-based (after generation/payment):
    Per-student owed/paid/balance sums over actual invoices.

PRECEDENCE:
  When both an invoice-derived summary and a separately fetched student
  summary are available, invoice data wins whenever at least one invoice
  exists; otherwise the student summary is used. The two sources can
  disagree after partial upstream failures, so the rule is explicit here
  rather than left to callers.

SEE ALSO:
  - types.go: Total() methods on FeeBucket and TermStructure
  - generate.go: Where invoices come from
*/
package fees

// =============================================================================
// STRUCTURE-BASED COMPUTATION
// =============================================================================

// StructureTotal sums all term totals of a structure. Empty yields zero.
func StructureTotal(s FeeStructure) Money {
	total := ZeroMoney()
	for _, t := range s.TermStructures {
		total = total.Add(t.Total())
	}
	return total
}

// RevenueProjection estimates expected revenue for one term across a set of
// grades: term total multiplied by the summed student count.
func RevenueProjection(s FeeStructure, term Term, grades []Grade) Money {
	ts, ok := s.TermStructure(term)
	if !ok {
		return ZeroMoney()
	}
	students := 0
	for _, g := range grades {
		students += g.StudentCount
	}
	return ts.Total().MulInt(int64(students))
}

// =============================================================================
// INVOICE-BASED COMPUTATION
// =============================================================================

// FeeSummary is the student-facing balance view.
type FeeSummary struct {
	StudentID        StudentID
	TotalOwed        Money
	TotalPaid        Money
	Balance          Money
	NumberOfFeeItems int
}

// SummarizeInvoices folds a student's invoices into a FeeSummary.
// NumberOfFeeItems counts payment-history entries across all invoices.
func SummarizeInvoices(studentID StudentID, invoices []Invoice) FeeSummary {
	s := FeeSummary{
		StudentID: studentID,
		TotalOwed: ZeroMoney(),
		TotalPaid: ZeroMoney(),
		Balance:   ZeroMoney(),
	}
	for _, inv := range invoices {
		s.TotalOwed = s.TotalOwed.Add(inv.TotalAmount)
		s.TotalPaid = s.TotalPaid.Add(inv.AmountPaid)
		s.Balance = s.Balance.Add(inv.AmountDue)
		s.NumberOfFeeItems += len(inv.PaymentHistory)
	}
	return s
}

// ResolveSummary applies the precedence rule: invoice data wins whenever at
// least one invoice exists, even if the fallback summary reports non-zero
// values; with no invoices the fallback is returned as-is (nil fallback
// degrades to an all-zero summary).
func ResolveSummary(studentID StudentID, invoices []Invoice, fallback *FeeSummary) FeeSummary {
	if len(invoices) > 0 {
		return SummarizeInvoices(studentID, invoices)
	}
	if fallback != nil {
		out := *fallback
		out.StudentID = studentID
		return out
	}
	return FeeSummary{
		StudentID: studentID,
		TotalOwed: ZeroMoney(),
		TotalPaid: ZeroMoney(),
		Balance:   ZeroMoney(),
	}
}
