/*
handlers_test.go - End-to-end API tests over an in-memory SQLite store

Walks the full flow the admin UI drives: load demo data, bulk-generate
invoices, record a payment, read summaries, and delete a structure with
cascade unassignment.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shulebill/fee-engine/fees"
	"github.com/shulebill/fee-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewRouter(NewHandler(store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func loadScenario(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	status := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: id}, nil)
	if status != http.StatusOK {
		t.Fatalf("load scenario %s: status %d", id, status)
	}
}

// =============================================================================
// END-TO-END GENERATION
// =============================================================================

func TestEndToEnd_Form2BoardingGeneratesSixtyInvoices(t *testing.T) {
	// GIVEN: "Form 2 Boarding" for 2024, Term 1 with Tuition=35000 and
	// Boarding=30000, assigned to a grade of 30 students
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "form2-boarding")

	// WHEN: Generating invoices for both buckets
	// Due date far in the future so the derived status stays pending
	var result GenerateResultDTO
	status := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/generate", GenerateRequest{
		FeeStructureID:  "fs-form2-boarding",
		Term:            "Term 1",
		GradeIDs:        []string{"grade-form2-east"},
		SelectedBuckets: []string{"bkt-tuition", "bkt-boarding"},
		GenerateDate:    "2024-01-15",
		DueDate:         "2099-12-31",
	}, &result)

	// THEN: 60 invoices totalling 30 x (35000+30000) = 1,950,000
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if result.InvoiceCount != 60 {
		t.Errorf("expected 60 invoices, got %d", result.InvoiceCount)
	}
	if result.StudentCount != 30 {
		t.Errorf("expected 30 students, got %d", result.StudentCount)
	}
	if !result.TotalBilled.Equal(fees.NewMoneyFromInt(1950000)) {
		t.Errorf("expected 1950000 billed, got %s", result.TotalBilled)
	}

	// Each student carries one invoice per bucket
	studentID := fees.PlaceholderStudentID("grade-form2-east", 1)
	var invoices []InvoiceDTO
	doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/students/%s/invoices", srv.URL, studentID), nil, &invoices)
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices for first student, got %d", len(invoices))
	}
	for _, inv := range invoices {
		if inv.PaymentStatus != "pending" {
			t.Errorf("expected pending, got %s", inv.PaymentStatus)
		}
		if !inv.AmountDue.Equal(inv.TotalAmount) {
			t.Errorf("amountDue %s != totalAmount %s", inv.AmountDue, inv.TotalAmount)
		}
	}
}

func TestGenerate_APIRejectsMissingDueDate(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "form2-boarding")

	var errResp ErrorResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/invoices/generate", GenerateRequest{
		FeeStructureID:  "fs-form2-boarding",
		Term:            "Term 1",
		GradeIDs:        []string{"grade-form2-east"},
		SelectedBuckets: []string{"bkt-tuition"},
		GenerateDate:    "2024-01-15",
		// DueDate absent
	}, &errResp)

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if errResp.Error == "" {
		t.Error("expected a human-readable error message")
	}
}

// =============================================================================
// PAYMENTS AND SUMMARIES
// =============================================================================

func TestPaymentsFlowIntoStudentSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "form2-boarding")

	var result GenerateResultDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/invoices/generate", GenerateRequest{
		FeeStructureID:  "fs-form2-boarding",
		Term:            "Term 1",
		GradeIDs:        []string{"grade-form2-east"},
		SelectedBuckets: []string{"bkt-tuition"},
		GenerateDate:    "2024-01-15",
		DueDate:         "2024-02-15",
	}, &result)

	studentID := fees.PlaceholderStudentID("grade-form2-east", 1)
	var invoices []InvoiceDTO
	doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/students/%s/invoices", srv.URL, studentID), nil, &invoices)
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}

	var updated InvoiceDTO
	status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/payments", srv.URL, invoices[0].ID),
		RecordPaymentRequest{Amount: fees.NewMoneyFromInt(15000), Method: "mpesa", Reference: "TX-001"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if updated.PaymentStatus != "partial" {
		t.Errorf("expected partial after payment, got %s", updated.PaymentStatus)
	}
	if !updated.AmountDue.Equal(fees.NewMoneyFromInt(20000)) {
		t.Errorf("expected 20000 due, got %s", updated.AmountDue)
	}
	if len(updated.PaymentHistory) != 1 {
		t.Errorf("expected 1 payment in history, got %d", len(updated.PaymentHistory))
	}

	// Invoice-derived summary wins over the query-supplied student summary
	var summary SummaryDTO
	doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/students/%s/summary?total_owed=999&total_paid=1&balance=998", srv.URL, studentID),
		nil, &summary)
	if summary.Source != "invoices" {
		t.Errorf("expected invoice precedence, got source %q", summary.Source)
	}
	if !summary.TotalOwed.Equal(fees.NewMoneyFromInt(35000)) {
		t.Errorf("expected 35000 owed from invoices, got %s", summary.TotalOwed)
	}
	if !summary.Balance.Equal(fees.NewMoneyFromInt(20000)) {
		t.Errorf("expected 20000 balance, got %s", summary.Balance)
	}
	if summary.NumberOfFeeItems != 1 {
		t.Errorf("expected 1 fee item (payment entries), got %d", summary.NumberOfFeeItems)
	}

	// A student with no invoices falls back to the supplied summary
	doJSON(t, http.MethodGet,
		srv.URL+"/api/students/stu-unknown/summary?total_owed=12000&total_paid=2000&balance=10000",
		nil, &summary)
	if summary.Source != "student_summary" {
		t.Errorf("expected fallback source, got %q", summary.Source)
	}
	if !summary.TotalOwed.Equal(fees.NewMoneyFromInt(12000)) {
		t.Errorf("expected fallback 12000 owed, got %s", summary.TotalOwed)
	}
}

// =============================================================================
// STRUCTURE LIFECYCLE
// =============================================================================

func TestDeleteStructure_CascadeUnassignsGrades(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "form2-boarding")

	status := doJSON(t, http.MethodDelete, srv.URL+"/api/structures/fs-form2-boarding", nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}

	var unassigned []GradeDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/grades?unassigned=true", nil, &unassigned)
	found := false
	for _, g := range unassigned {
		if g.ID == "grade-form2-east" {
			found = true
		}
	}
	if !found {
		t.Error("grade-form2-east should be unassigned after structure deletion")
	}
}

func TestCreateStructures_AggregatesSplitRecords(t *testing.T) {
	srv, _ := newTestServer(t)

	// Two raw records for the same logical structure, both tagging Term 1
	raw := json.RawMessage(`[
		{
			"id": "r1", "name": "Grade 1 Fees - Term 1", "grade": "Grade 1",
			"academic_year": {"id": "ay-2024"}, "is_active": true,
			"terms": [{"id": "t1", "name": "Term 1"}],
			"items": [{"fee_bucket": {"id": "A", "name": "Tuition"}, "amount": 1000, "is_mandatory": true}]
		},
		{
			"id": "r2", "name": "Grade 1 Fees - Term 1", "grade": {"name": "Grade 1"},
			"academic_year": {"id": "ay-2024"}, "is_active": true,
			"terms": [{"id": "t1", "name": "Term 1"}],
			"items": [
				{"fee_bucket": {"id": "A", "name": "Tuition"}, "amount": 500, "is_mandatory": true},
				{"fee_bucket": {"id": "B", "name": "Meals"}, "amount": 200, "is_mandatory": true}
			]
		}
	]`)

	var created []StructureDTO
	status := doJSON(t, http.MethodPost, srv.URL+"/api/structures", raw, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 normalized structure, got %d", len(created))
	}
	if !created[0].TotalAmount.Equal(fees.NewMoneyFromInt(1700)) {
		t.Errorf("expected merged total 1700, got %s", created[0].TotalAmount)
	}

	term := created[0].Terms[0]
	if len(term.Buckets) != 2 {
		t.Fatalf("expected merged buckets {A:1500, B:200}, got %d buckets", len(term.Buckets))
	}
}
