/*
aggregate_test.go - Structure aggregation rules

Each test documents one aggregation rule:
  1. Group key: stripped base name + academic year
  2. Merge-correctness: same bucket in two records sums, never overwrites
  3. Optional flag: AND of "not mandatory" across merged items
  4. isActive OR / updatedAt max across contributing records
  5. Idempotence: re-feeding the denormalized output reproduces it
  6. Degradation: zero-term and zero-item records
*/
package fees_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shulebill/fee-engine/fees"
)

func rawRecord(id, name string, year fees.AcademicYearID, terms []fees.RawTerm, items []fees.RawItem) fees.RawStructureRecord {
	return fees.RawStructureRecord{
		ID:             id,
		Name:           name,
		AcademicYearID: year,
		Terms:          terms,
		Items:          items,
	}
}

func item(bucket fees.BucketID, amount int64, mandatory bool) fees.RawItem {
	return fees.RawItem{
		BucketID:    bucket,
		BucketName:  string(bucket),
		BucketType:  fees.BucketOther,
		Amount:      ksh(amount),
		IsMandatory: mandatory,
	}
}

func term1() []fees.RawTerm { return []fees.RawTerm{{ID: "t1", Term: fees.Term1}} }

// =============================================================================
// GROUPING
// =============================================================================

func TestBaseName_StripsTermSuffix(t *testing.T) {
	cases := map[string]string{
		"Grade 1 Fees - Term 1":  "Grade 1 Fees",
		"Grade 1 Fees - Term 12": "Grade 1 Fees",
		"Grade 1 Fees-Term 2":    "Grade 1 Fees",
		"Grade 1 Fees":           "Grade 1 Fees",
		"Termly Fees":            "Termly Fees",
	}
	for in, want := range cases {
		if got := fees.BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAggregate_GroupsByBaseNameAndYear(t *testing.T) {
	// GIVEN: Three records - two terms of one structure, one from another year
	records := []fees.RawStructureRecord{
		rawRecord("r1", "Grade 1 Fees - Term 1", "ay-2024", term1(), []fees.RawItem{item("A", 1000, true)}),
		rawRecord("r2", "Grade 1 Fees - Term 2", "ay-2024",
			[]fees.RawTerm{{ID: "t2", Term: fees.Term2}}, []fees.RawItem{item("A", 1200, true)}),
		rawRecord("r3", "Grade 1 Fees - Term 1", "ay-2025", term1(), []fees.RawItem{item("A", 1500, true)}),
	}

	// WHEN: Aggregating
	structures := fees.Aggregate(records)

	// THEN: Two logical structures, the 2024 one spanning both terms
	if len(structures) != 2 {
		t.Fatalf("expected 2 structures, got %d", len(structures))
	}
	if structures[0].Name != "Grade 1 Fees" || structures[0].AcademicYear != "ay-2024" {
		t.Errorf("unexpected first group: %s / %s", structures[0].Name, structures[0].AcademicYear)
	}
	if len(structures[0].TermStructures) != 2 {
		t.Errorf("expected 2 terms in 2024 structure, got %d", len(structures[0].TermStructures))
	}
	if len(structures[1].TermStructures) != 1 {
		t.Errorf("expected 1 term in 2025 structure, got %d", len(structures[1].TermStructures))
	}
}

// =============================================================================
// MERGE CORRECTNESS
// =============================================================================

func TestAggregate_MergesSameTermBySummingBuckets(t *testing.T) {
	// GIVEN: Two raw records for base name "Grade 1 Fees", same year, both
	// tagging Term 1 - one with [A:1000], the other with [A:500, B:200]
	records := []fees.RawStructureRecord{
		rawRecord("r1", "Grade 1 Fees - Term 1", "ay-2024", term1(), []fees.RawItem{item("A", 1000, true)}),
		rawRecord("r2", "Grade 1 Fees - Term 1", "ay-2024", term1(), []fees.RawItem{
			item("A", 500, true),
			item("B", 200, true),
		}),
	}

	// WHEN: Aggregating
	structures := fees.Aggregate(records)

	// THEN: One structure whose Term 1 buckets are {A:1500, B:200} -
	// merged by summation, not overwritten
	if len(structures) != 1 {
		t.Fatalf("expected 1 structure, got %d", len(structures))
	}
	ts, ok := structures[0].TermStructure(fees.Term1)
	if !ok {
		t.Fatal("Term 1 missing")
	}
	if len(ts.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(ts.Buckets))
	}
	a, _ := ts.Bucket("A")
	b, _ := ts.Bucket("B")
	if !a.Total().Equal(ksh(1500)) {
		t.Errorf("bucket A: expected 1500, got %s", a.Total())
	}
	if !b.Total().Equal(ksh(200)) {
		t.Errorf("bucket B: expected 200, got %s", b.Total())
	}
}

func TestAggregate_OptionalOnlyWhenEveryItemOptional(t *testing.T) {
	// A bucket is optional only if EVERY contributing item says optional.
	records := []fees.RawStructureRecord{
		rawRecord("r1", "Fees", "ay-2024", term1(), []fees.RawItem{
			item("A", 100, false), // optional
			item("B", 100, false), // optional
		}),
		rawRecord("r2", "Fees", "ay-2024", term1(), []fees.RawItem{
			item("A", 100, true), // mandatory -> A becomes mandatory
			item("B", 100, false),
		}),
	}

	ts, _ := fees.Aggregate(records)[0].TermStructure(fees.Term1)
	a, _ := ts.Bucket("A")
	b, _ := ts.Bucket("B")
	if a.IsOptional {
		t.Error("bucket A should be mandatory: one contributing item was mandatory")
	}
	if !b.IsOptional {
		t.Error("bucket B should stay optional: every contributing item was optional")
	}
}

// =============================================================================
// RECORD-LEVEL FIELDS
// =============================================================================

func TestAggregate_ActiveOrAndUpdatedAtMax(t *testing.T) {
	early := date(2024, time.January, 1)
	late := date(2024, time.June, 1)

	r1 := rawRecord("r1", "Fees - Term 1", "ay-2024", term1(), nil)
	r1.IsActive = false
	r1.UpdatedAt = late
	r2 := rawRecord("r2", "Fees - Term 2", "ay-2024", []fees.RawTerm{{ID: "t2", Term: fees.Term2}}, nil)
	r2.IsActive = true
	r2.UpdatedAt = early

	s := fees.Aggregate([]fees.RawStructureRecord{r1, r2})[0]
	if !s.IsActive {
		t.Error("structure with any active term-record is active")
	}
	if !s.UpdatedAt.Equal(late) {
		t.Errorf("expected max updatedAt %v, got %v", late, s.UpdatedAt)
	}
}

func TestAggregate_GradeRefsUnionSurvivesZeroTermRecords(t *testing.T) {
	// A record with zero terms contributes nothing to the term map but
	// still contributes its grade-level references.
	r1 := rawRecord("r1", "Fees", "ay-2024", nil, []fees.RawItem{item("A", 100, true)})
	r1.GradeRefs = []fees.GradeRef{{ID: "g1", Name: "Grade 1"}}
	r2 := rawRecord("r2", "Fees", "ay-2024", term1(), nil)
	r2.GradeRefs = []fees.GradeRef{{ID: "g1", Name: "Grade 1"}, {ID: "g2", Name: "Grade 2"}}

	s := fees.Aggregate([]fees.RawStructureRecord{r1, r2})[0]

	if len(s.GradeRefs) != 2 {
		t.Fatalf("expected 2 de-duplicated grade refs, got %d", len(s.GradeRefs))
	}
	ts, ok := s.TermStructure(fees.Term1)
	if !ok {
		t.Fatal("Term 1 missing")
	}
	// r2 carried the term but no items
	if len(ts.Buckets) != 0 {
		t.Errorf("expected no buckets for itemless term record, got %d", len(ts.Buckets))
	}
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestAggregate_Idempotent(t *testing.T) {
	// GIVEN: A merged structure
	records := []fees.RawStructureRecord{
		rawRecord("r1", "Grade 1 Fees - Term 1", "ay-2024", term1(), []fees.RawItem{item("A", 1000, true)}),
		rawRecord("r2", "Grade 1 Fees - Term 1", "ay-2024", term1(), []fees.RawItem{item("A", 500, true), item("B", 200, false)}),
	}
	once := fees.Aggregate(records)

	// WHEN: Denormalizing and re-aggregating
	twice := fees.Aggregate(fees.Denormalize(once[0]))

	// THEN: Same structures come out
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("aggregation not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}

	// Re-running on identical input also yields identical output
	again := fees.Aggregate(records)
	if !reflect.DeepEqual(once, again) {
		t.Error("aggregation not deterministic across runs")
	}
}

// =============================================================================
// STRICT MODE
// =============================================================================

func TestAggregateStrict_RejectsUndeclaredBucketRefs(t *testing.T) {
	bad := rawRecord("r1", "Fees", "ay-2024", term1(), []fees.RawItem{
		{BucketID: "mystery", Amount: ksh(100), IsMandatory: true}, // no name, no type
	})

	_, err := fees.AggregateStrict([]fees.RawStructureRecord{bad})
	if err == nil {
		t.Fatal("expected error for undeclared bucket reference")
	}
	if !errors.Is(err, fees.ErrAggregationInputMalformed) {
		t.Fatalf("expected ErrAggregationInputMalformed, got %v", err)
	}
	var malformed *fees.MalformedItemError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedItemError, got %T: %v", err, err)
	}

	// Lenient mode degrades instead of failing
	structures := fees.Aggregate([]fees.RawStructureRecord{bad})
	if len(structures) != 1 {
		t.Fatal("lenient aggregation should still produce a structure")
	}
}
