package fees_test

import (
	"testing"
	"time"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// STRUCTURE-BASED COMPUTATION
// =============================================================================

func TestRevenueProjection_TermTotalTimesStudents(t *testing.T) {
	s := fees.FeeStructure{
		ID: "fs-1",
		TermStructures: []fees.TermStructure{{
			Term: fees.Term1,
			Buckets: []fees.FeeBucket{
				{ID: "bkt-tuition", Amount: ksh(35000)},
				{ID: "bkt-boarding", Amount: ksh(30000)},
			},
		}},
	}
	grades := []fees.Grade{
		{ID: "g1", StudentCount: 20},
		{ID: "g2", StudentCount: 10},
	}

	got := fees.RevenueProjection(s, fees.Term1, grades)
	if !got.Equal(ksh(1950000)) {
		t.Errorf("expected 1950000, got %s", got)
	}

	// Unknown term projects zero
	if !fees.RevenueProjection(s, fees.Term2, grades).IsZero() {
		t.Error("expected zero projection for absent term")
	}
}

// =============================================================================
// INVOICE-BASED SUMMARIES
// =============================================================================

func invoiceFor(student fees.StudentID, total, paid int64, payments int) fees.Invoice {
	inv := fees.Invoice{
		StudentID:   student,
		TotalAmount: ksh(total),
		AmountPaid:  ksh(paid),
		AmountDue:   ksh(total - paid),
	}
	for i := 0; i < payments; i++ {
		inv.PaymentHistory = append(inv.PaymentHistory, fees.Payment{
			ID:     "pay",
			Amount: ksh(paid / int64(payments)),
			PaidAt: time.Date(2024, time.February, i+1, 0, 0, 0, 0, time.UTC),
		})
	}
	return inv
}

func TestSummarizeInvoices_SumsOwedPaidBalance(t *testing.T) {
	invoices := []fees.Invoice{
		invoiceFor("stu-1", 35000, 10000, 2),
		invoiceFor("stu-1", 30000, 0, 0),
	}

	s := fees.SummarizeInvoices("stu-1", invoices)

	if !s.TotalOwed.Equal(ksh(65000)) {
		t.Errorf("owed: expected 65000, got %s", s.TotalOwed)
	}
	if !s.TotalPaid.Equal(ksh(10000)) {
		t.Errorf("paid: expected 10000, got %s", s.TotalPaid)
	}
	if !s.Balance.Equal(ksh(55000)) {
		t.Errorf("balance: expected 55000, got %s", s.Balance)
	}
	if s.NumberOfFeeItems != 2 {
		t.Errorf("fee items: expected 2 payment entries, got %d", s.NumberOfFeeItems)
	}
}

func TestResolveSummary_InvoicesTakePrecedence(t *testing.T) {
	// GIVEN: A student summary reporting non-zero values AND one invoice
	fallback := &fees.FeeSummary{
		TotalOwed: ksh(99999),
		TotalPaid: ksh(500),
		Balance:   ksh(99499),
	}
	invoices := []fees.Invoice{invoiceFor("stu-1", 35000, 0, 0)}

	// WHEN: Resolving
	s := fees.ResolveSummary("stu-1", invoices, fallback)

	// THEN: Invoice data wins, even though the fallback disagrees
	if !s.TotalOwed.Equal(ksh(35000)) {
		t.Errorf("expected invoice-derived 35000, got %s", s.TotalOwed)
	}
	if !s.Balance.Equal(ksh(35000)) {
		t.Errorf("expected invoice-derived balance 35000, got %s", s.Balance)
	}
}

func TestResolveSummary_FallsBackWithoutInvoices(t *testing.T) {
	fallback := &fees.FeeSummary{
		TotalOwed: ksh(12000),
		TotalPaid: ksh(2000),
		Balance:   ksh(10000),
	}

	s := fees.ResolveSummary("stu-1", nil, fallback)
	if !s.TotalOwed.Equal(ksh(12000)) || !s.Balance.Equal(ksh(10000)) {
		t.Errorf("expected fallback summary, got %+v", s)
	}
	if s.StudentID != "stu-1" {
		t.Errorf("expected student id to be set, got %q", s.StudentID)
	}

	// No invoices, no fallback: all-zero summary
	zero := fees.ResolveSummary("stu-2", nil, nil)
	if !zero.TotalOwed.IsZero() || !zero.Balance.IsZero() || zero.NumberOfFeeItems != 0 {
		t.Errorf("expected zero summary, got %+v", zero)
	}
}
