/*
handlers.go - HTTP API handlers for the fee engine

PURPOSE:
  Exposes the fee structure and invoice generation engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Structures:
    GET    /api/structures                 List normalized structures
    POST   /api/structures                 Ingest raw records, aggregate, save
    GET    /api/structures/{id}            Get one structure
    PUT    /api/structures/{id}            Update name/terms
    DELETE /api/structures/{id}            Delete + cascade unassign grades
    GET    /api/structures/{id}/grades     Grades assigned to the structure

  Grades:
    GET    /api/grades                     List grades (?unassigned=true)
    POST   /api/grades                     Create grade
    POST   /api/grades/{id}/assign         Assign a structure
    POST   /api/grades/{id}/unassign       Clear the assignment

  Invoices:
    POST   /api/invoices/generate          Bulk generation
    GET    /api/students/{id}/invoices     Invoices per student
    GET    /api/students/{id}/summary      Fee summary (invoice precedence)
    POST   /api/invoices/{id}/payments     Record a payment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors
  The response is always a human-readable message, never a stack trace.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shulebill/fee-engine/fees"
	"github.com/shulebill/fee-engine/ingest"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Storage bundles the persistence interfaces the handlers need. Both the
// SQLite store and the in-memory store satisfy it.
type Storage interface {
	fees.StructureStore
	fees.GradeStore
	fees.InvoiceStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Storage
	Resolver  *fees.Resolver
	Generator *fees.Generator

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Storage) *Handler {
	return &Handler{
		Store:     store,
		Resolver:  fees.NewResolver(store, store),
		Generator: fees.NewGenerator(store, store, store),
	}
}

// =============================================================================
// STRUCTURE HANDLERS
// =============================================================================

// ListStructures returns all normalized structures.
func (h *Handler) ListStructures(w http.ResponseWriter, r *http.Request) {
	structures, err := h.Store.ListStructures(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list structures", err)
		return
	}
	dtos := make([]StructureDTO, 0, len(structures))
	for _, s := range structures {
		dtos = append(dtos, toStructureDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStructures accepts a JSON array of raw origin records, aggregates
// them into normalized structures, and saves the result. The response
// reports the structures actually created (fewer than the records when the
// origin split one structure across terms).
func (h *Handler) CreateStructures(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	records, err := ingest.DecodeRecords(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid raw structure records", err)
		return
	}

	structures := fees.Aggregate(records)
	dtos := make([]StructureDTO, 0, len(structures))
	for _, s := range structures {
		if err := h.Store.SaveStructure(r.Context(), s); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save structure", err)
			return
		}
		dtos = append(dtos, toStructureDTO(s))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// GetStructure returns a single structure.
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id := fees.StructureID(chi.URLParam(r, "id"))
	s, err := h.Store.GetStructure(r.Context(), id)
	if err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Structure not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get structure", err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(s))
}

// UpdateStructure replaces a structure's name and term catalogue.
func (h *Handler) UpdateStructure(w http.ResponseWriter, r *http.Request) {
	id := fees.StructureID(chi.URLParam(r, "id"))

	var req UpdateStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.Store.GetStructure(r.Context(), id)
	if err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Structure not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get structure", err)
		return
	}

	if req.Name != "" {
		s.Name = req.Name
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if req.Terms != nil {
		s.TermStructures = nil
		for _, t := range req.Terms {
			s.TermStructures = append(s.TermStructures, fromTermDTO(t))
		}
	}
	s.UpdatedAt = time.Now().UTC()

	if err := h.Store.SaveStructure(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save structure", err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(s))
}

// DeleteStructure removes a structure and clears the back-reference on every
// grade that pointed at it. Invoices already generated survive.
func (h *Handler) DeleteStructure(w http.ResponseWriter, r *http.Request) {
	id := fees.StructureID(chi.URLParam(r, "id"))
	if err := h.Resolver.DeleteStructure(r.Context(), id); err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Structure not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete structure", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAssignedGrades returns the grades assigned to a structure plus the
// total student count, for the assignment and generation screens.
func (h *Handler) GetAssignedGrades(w http.ResponseWriter, r *http.Request) {
	id := fees.StructureID(chi.URLParam(r, "id"))
	grades, err := h.Resolver.AssignedGrades(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve grades", err)
		return
	}
	totalStudents := 0
	dtos := make([]GradeDTO, 0, len(grades))
	for _, g := range grades {
		totalStudents += g.StudentCount
		dtos = append(dtos, toGradeDTO(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"grades":         dtos,
		"total_students": totalStudents,
	})
}

// =============================================================================
// GRADE HANDLERS
// =============================================================================

// ListGrades returns all grades; ?unassigned=true filters to grades with no
// structure reference.
func (h *Handler) ListGrades(w http.ResponseWriter, r *http.Request) {
	var (
		grades []fees.Grade
		err    error
	)
	if r.URL.Query().Get("unassigned") == "true" {
		grades, err = h.Resolver.UnassignedGrades(r.Context())
	} else {
		grades, err = h.Store.ListGrades(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list grades", err)
		return
	}
	dtos := make([]GradeDTO, 0, len(grades))
	for _, g := range grades {
		dtos = append(dtos, toGradeDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGrade creates a grade record.
func (h *Handler) CreateGrade(w http.ResponseWriter, r *http.Request) {
	var req CreateGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Grade name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	g := fees.Grade{
		ID:           fees.GradeID(req.ID),
		Name:         req.Name,
		Section:      req.Section,
		BoardingType: fees.BoardingType(req.BoardingType),
		StudentCount: req.StudentCount,
		IsActive:     true,
	}
	if err := h.Store.SaveGrade(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save grade", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGradeDTO(g))
}

// AssignGrade sets the grade's structure back-reference.
func (h *Handler) AssignGrade(w http.ResponseWriter, r *http.Request) {
	gradeID := fees.GradeID(chi.URLParam(r, "id"))

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FeeStructureID == "" {
		writeError(w, http.StatusBadRequest, "fee_structure_id is required", nil)
		return
	}

	err := h.Resolver.Assign(r.Context(), gradeID, fees.StructureID(req.FeeStructureID))
	if err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Grade or structure not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to assign structure", err)
		return
	}

	g, err := h.Store.GetGrade(r.Context(), gradeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load grade", err)
		return
	}
	writeJSON(w, http.StatusOK, toGradeDTO(g))
}

// UnassignGrade clears the grade's structure back-reference.
func (h *Handler) UnassignGrade(w http.ResponseWriter, r *http.Request) {
	gradeID := fees.GradeID(chi.URLParam(r, "id"))
	if err := h.Resolver.Unassign(r.Context(), gradeID); err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Grade not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to unassign grade", err)
		return
	}
	g, err := h.Store.GetGrade(r.Context(), gradeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load grade", err)
		return
	}
	writeJSON(w, http.StatusOK, toGradeDTO(g))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// GenerateInvoices runs a bulk generation batch.
func (h *Handler) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	genReq := fees.GenerationRequest{
		FeeStructureID:      fees.StructureID(req.FeeStructureID),
		Term:                fees.Term(req.Term),
		IncludeOptionalFees: req.IncludeOptionalFees,
		CustomMessage:       req.CustomMessage,
	}
	for _, id := range req.GradeIDs {
		genReq.GradeIDs = append(genReq.GradeIDs, fees.GradeID(id))
	}
	for _, id := range req.SelectedBuckets {
		genReq.SelectedBuckets = append(genReq.SelectedBuckets, fees.BucketID(id))
	}
	genReq.GenerateDate = parseDateOr(req.GenerateDate, time.Now().UTC())
	genReq.DueDate = parseDateOr(req.DueDate, time.Time{})

	result, err := h.Generator.Generate(r.Context(), genReq)
	if err != nil {
		switch {
		case fees.IsValidationError(err):
			writeError(w, http.StatusBadRequest, "Generation rejected", err)
		default:
			writeError(w, http.StatusInternalServerError, "Generation failed", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, GenerateResultDTO{
		BatchID:      result.BatchID,
		InvoiceCount: result.InvoiceCount,
		StudentCount: result.StudentCount,
		TotalBilled:  result.TotalBilled,
	})
}

// ListStudentInvoices returns all invoices for one student.
func (h *Handler) ListStudentInvoices(w http.ResponseWriter, r *http.Request) {
	studentID := fees.StudentID(chi.URLParam(r, "id"))
	invoices, err := h.Store.ListByStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	now := time.Now().UTC()
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, toInvoiceDTO(inv, now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudentSummary returns the student's fee summary. Invoice data takes
// precedence; when the student has no invoices, the optional query
// parameters total_owed / total_paid / balance (the separately fetched
// student summary) are used as the fallback.
func (h *Handler) GetStudentSummary(w http.ResponseWriter, r *http.Request) {
	studentID := fees.StudentID(chi.URLParam(r, "id"))
	invoices, err := h.Store.ListByStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	var fallback *fees.FeeSummary
	q := r.URL.Query()
	if q.Get("total_owed") != "" || q.Get("total_paid") != "" || q.Get("balance") != "" {
		fallback = &fees.FeeSummary{
			TotalOwed: fees.ParseMoney(q.Get("total_owed")),
			TotalPaid: fees.ParseMoney(q.Get("total_paid")),
			Balance:   fees.ParseMoney(q.Get("balance")),
		}
	}

	summary := fees.ResolveSummary(studentID, invoices, fallback)
	source := "student_summary"
	if len(invoices) > 0 {
		source = "invoices"
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		StudentID:        string(summary.StudentID),
		TotalOwed:        summary.TotalOwed,
		TotalPaid:        summary.TotalPaid,
		Balance:          summary.Balance,
		NumberOfFeeItems: summary.NumberOfFeeItems,
		Source:           source,
	})
}

// RecordPayment appends a payment to an invoice.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := fees.InvoiceID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Payment amount must be positive", nil)
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, req.PaidAt); err == nil {
			paidAt = t
		}
	}

	updated, err := h.Store.AppendPayment(r.Context(), id, fees.Payment{
		ID:        uuid.NewString(),
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    paidAt,
	})
	if err != nil {
		if fees.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Invoice not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(updated, time.Now().UTC()))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func parseDateOr(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return fallback
}
