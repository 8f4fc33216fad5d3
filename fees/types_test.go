package fees_test

import (
	"testing"
	"time"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func ksh(n int64) fees.Money {
	return fees.NewMoneyFromInt(n)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// BUCKET AND TERM TOTALS
// =============================================================================

func TestBucketTotal_ComponentsAreSourceOfTruth(t *testing.T) {
	// GIVEN: A bucket with components and a stale cached amount
	// WHEN: Computing the total
	// THEN: The component sum wins

	bucket := fees.FeeBucket{
		ID:     "bkt-tuition",
		Amount: ksh(1), // stale
		Components: []fees.FeeComponent{
			{Name: "Base tuition", Amount: ksh(30000)},
			{Name: "Library levy", Amount: ksh(5000)},
		},
	}

	if !bucket.Total().Equal(ksh(35000)) {
		t.Errorf("expected 35000, got %s", bucket.Total())
	}
}

func TestBucketTotal_FallsBackToAmountWithoutComponents(t *testing.T) {
	// Buckets built from flattened API items carry no components; the
	// bucket-level amount is authoritative then.
	bucket := fees.FeeBucket{ID: "bkt-meals", Amount: ksh(4500)}

	if !bucket.Total().Equal(ksh(4500)) {
		t.Errorf("expected 4500, got %s", bucket.Total())
	}
}

func TestBucketTotal_EmptyBucketIsZero(t *testing.T) {
	var bucket fees.FeeBucket
	if !bucket.Total().IsZero() {
		t.Errorf("expected zero, got %s", bucket.Total())
	}
}

func TestTermTotal_SumsBucketTotals(t *testing.T) {
	term := fees.TermStructure{
		Term: fees.Term1,
		Buckets: []fees.FeeBucket{
			{ID: "bkt-tuition", Amount: ksh(35000)},
			{ID: "bkt-boarding", Amount: ksh(30000)},
		},
	}
	if !term.Total().Equal(ksh(65000)) {
		t.Errorf("expected 65000, got %s", term.Total())
	}

	var empty fees.TermStructure
	if !empty.Total().IsZero() {
		t.Errorf("expected zero for empty term, got %s", empty.Total())
	}
}

// =============================================================================
// INVOICE STATUS DERIVATION
// =============================================================================

func TestInvoiceStatus_DerivedFromAmountsAndDueDate(t *testing.T) {
	now := date(2024, time.March, 1)
	due := date(2024, time.April, 1)

	cases := []struct {
		name string
		paid fees.Money
		due  time.Time
		at   time.Time
		want fees.PaymentStatus
	}{
		{"nothing paid before due date", ksh(0), due, now, fees.StatusPending},
		{"nothing paid after due date", ksh(0), due, date(2024, time.May, 1), fees.StatusOverdue},
		{"partially paid", ksh(10000), due, now, fees.StatusPartial},
		{"fully paid", ksh(35000), due, now, fees.StatusPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := fees.Invoice{
				TotalAmount: ksh(35000),
				AmountPaid:  tc.paid,
				AmountDue:   ksh(35000).Sub(tc.paid),
				DueDate:     tc.due,
			}
			if got := inv.Status(tc.at); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestApplyPayment_MaintainsAmountInvariant(t *testing.T) {
	// Invariant: AmountDue == TotalAmount - AmountPaid, tolerance-free.
	inv := fees.Invoice{
		ID:          "inv-1",
		TotalAmount: ksh(35000),
		AmountPaid:  ksh(0),
		AmountDue:   ksh(35000),
	}

	paid := inv.ApplyPayment(fees.Payment{ID: "pay-1", Amount: ksh(12000), PaidAt: date(2024, time.February, 1)})

	if !paid.AmountPaid.Equal(ksh(12000)) {
		t.Errorf("expected 12000 paid, got %s", paid.AmountPaid)
	}
	if !paid.AmountDue.Equal(paid.TotalAmount.Sub(paid.AmountPaid)) {
		t.Errorf("invariant broken: due %s, total %s, paid %s", paid.AmountDue, paid.TotalAmount, paid.AmountPaid)
	}
	if len(paid.PaymentHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(paid.PaymentHistory))
	}

	// Original invoice untouched
	if !inv.AmountPaid.IsZero() || len(inv.PaymentHistory) != 0 {
		t.Error("ApplyPayment mutated the original invoice")
	}
}
