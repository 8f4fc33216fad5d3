/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Structures:
    StructureDTO, TermDTO, BucketDTO, ComponentDTO, UpdateStructureRequest

  Grades:
    GradeDTO, CreateGradeRequest, AssignRequest

  Generation:
    GenerateRequest, GenerateResultDTO

  Invoices:
    InvoiceDTO, PaymentDTO, RecordPaymentRequest, SummaryDTO

VALIDATION:
  Handlers translate DTOs into engine requests; the engine's own validation
  (validator tags + domain checks) is authoritative. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - fees/generate.go: GenerationRequest the engine validates
*/
package api

import (
	"time"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// STRUCTURE TYPES
// =============================================================================

type ComponentDTO struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Amount      fees.Money `json:"amount"`
	Category    string     `json:"category,omitempty"`
}

type BucketDTO struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Amount      fees.Money     `json:"amount"`
	IsOptional  bool           `json:"is_optional"`
	Components  []ComponentDTO `json:"components,omitempty"`
}

type TermDTO struct {
	ID          string      `json:"id"`
	Term        string      `json:"term"`
	Buckets     []BucketDTO `json:"buckets"`
	TotalAmount fees.Money  `json:"total_amount"`
	DueDate     string      `json:"due_date,omitempty"`
}

type StructureDTO struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Grade        string     `json:"grade,omitempty"`
	BoardingType string     `json:"boarding_type,omitempty"`
	AcademicYear string     `json:"academic_year"`
	IsActive     bool       `json:"is_active"`
	Terms        []TermDTO  `json:"terms"`
	TotalAmount  fees.Money `json:"total_amount"`
	UpdatedAt    string     `json:"updated_at,omitempty"`
}

// UpdateStructureRequest replaces a structure's name and term catalogue.
type UpdateStructureRequest struct {
	Name     string    `json:"name"`
	IsActive *bool     `json:"is_active,omitempty"`
	Terms    []TermDTO `json:"terms,omitempty"`
}

// =============================================================================
// GRADE TYPES
// =============================================================================

type GradeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Section        string `json:"section,omitempty"`
	BoardingType   string `json:"boarding_type,omitempty"`
	FeeStructureID string `json:"fee_structure_id,omitempty"`
	StudentCount   int    `json:"student_count"`
	IsActive       bool   `json:"is_active"`
}

type CreateGradeRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Section      string `json:"section"`
	BoardingType string `json:"boarding_type"`
	StudentCount int    `json:"student_count"`
}

type AssignRequest struct {
	FeeStructureID string `json:"fee_structure_id"`
}

// =============================================================================
// GENERATION TYPES
// =============================================================================

type GenerateRequest struct {
	FeeStructureID      string   `json:"fee_structure_id"`
	Term                string   `json:"term"`
	GradeIDs            []string `json:"grade_ids"`
	SelectedBuckets     []string `json:"selected_buckets"`
	GenerateDate        string   `json:"generate_date"` // 2006-01-02, defaults to today
	DueDate             string   `json:"due_date"`      // 2006-01-02, required
	IncludeOptionalFees bool     `json:"include_optional_fees"`
	CustomMessage       string   `json:"custom_message,omitempty"`
}

type GenerateResultDTO struct {
	BatchID      string     `json:"batch_id"`
	InvoiceCount int        `json:"invoice_count"`
	StudentCount int        `json:"student_count"`
	TotalBilled  fees.Money `json:"total_billed"`
}

// =============================================================================
// INVOICE TYPES
// =============================================================================

type PaymentDTO struct {
	ID        string     `json:"id"`
	Amount    fees.Money `json:"amount"`
	Method    string     `json:"method,omitempty"`
	Reference string     `json:"reference,omitempty"`
	PaidAt    string     `json:"paid_at"`
}

type InvoiceDTO struct {
	ID             string       `json:"id"`
	BatchID        string       `json:"batch_id,omitempty"`
	StudentID      string       `json:"student_id"`
	GradeID        string       `json:"grade_id,omitempty"`
	FeeType        string       `json:"fee_type"`
	BucketName     string       `json:"bucket_name,omitempty"`
	TotalAmount    fees.Money   `json:"total_amount"`
	AmountPaid     fees.Money   `json:"amount_paid"`
	AmountDue      fees.Money   `json:"amount_due"`
	PaymentStatus  string       `json:"payment_status"`
	GenerateDate   string       `json:"generate_date"`
	DueDate        string       `json:"due_date"`
	Term           string       `json:"term"`
	AcademicYear   string       `json:"academic_year"`
	Message        string       `json:"message,omitempty"`
	PaymentHistory []PaymentDTO `json:"payment_history"`
}

type RecordPaymentRequest struct {
	Amount    fees.Money `json:"amount"`
	Method    string     `json:"method"`
	Reference string     `json:"reference"`
	PaidAt    string     `json:"paid_at,omitempty"` // RFC3339, defaults to now
}

type SummaryDTO struct {
	StudentID        string     `json:"student_id"`
	TotalOwed        fees.Money `json:"total_owed"`
	TotalPaid        fees.Money `json:"total_paid"`
	Balance          fees.Money `json:"balance"`
	NumberOfFeeItems int        `json:"number_of_fee_items"`
	Source           string     `json:"source"` // "invoices" or "student_summary"
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStructureDTO(s fees.FeeStructure) StructureDTO {
	dto := StructureDTO{
		ID:           string(s.ID),
		Name:         s.Name,
		Grade:        s.Grade,
		BoardingType: string(s.BoardingType),
		AcademicYear: string(s.AcademicYear),
		IsActive:     s.IsActive,
		TotalAmount:  fees.StructureTotal(s),
		Terms:        make([]TermDTO, 0, len(s.TermStructures)),
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	for _, t := range s.TermStructures {
		dto.Terms = append(dto.Terms, toTermDTO(t))
	}
	return dto
}

func toTermDTO(t fees.TermStructure) TermDTO {
	dto := TermDTO{
		ID:          string(t.ID),
		Term:        string(t.Term),
		TotalAmount: t.Total(),
		Buckets:     make([]BucketDTO, 0, len(t.Buckets)),
	}
	if !t.DueDate.IsZero() {
		dto.DueDate = t.DueDate.Format("2006-01-02")
	}
	for _, b := range t.Buckets {
		dto.Buckets = append(dto.Buckets, toBucketDTO(b))
	}
	return dto
}

func toBucketDTO(b fees.FeeBucket) BucketDTO {
	dto := BucketDTO{
		ID:          string(b.ID),
		Type:        string(b.Type),
		Name:        b.Name,
		Description: b.Description,
		Amount:      b.Total(),
		IsOptional:  b.IsOptional,
	}
	for _, c := range b.Components {
		dto.Components = append(dto.Components, ComponentDTO{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Amount:      c.Amount,
			Category:    c.Category,
		})
	}
	return dto
}

func fromTermDTO(dto TermDTO) fees.TermStructure {
	t := fees.TermStructure{
		ID:   fees.TermID(dto.ID),
		Term: fees.Term(dto.Term),
	}
	if dto.DueDate != "" {
		if d, err := time.Parse("2006-01-02", dto.DueDate); err == nil {
			t.DueDate = d
		}
	}
	for _, b := range dto.Buckets {
		bucket := fees.FeeBucket{
			ID:          fees.BucketID(b.ID),
			Type:        fees.BucketType(b.Type),
			Name:        b.Name,
			Description: b.Description,
			Amount:      b.Amount,
			IsOptional:  b.IsOptional,
		}
		for _, c := range b.Components {
			bucket.Components = append(bucket.Components, fees.FeeComponent{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Amount:      c.Amount,
				Category:    c.Category,
			})
		}
		t.Buckets = append(t.Buckets, bucket)
	}
	return t
}

func toGradeDTO(g fees.Grade) GradeDTO {
	return GradeDTO{
		ID:             string(g.ID),
		Name:           g.Name,
		Section:        g.Section,
		BoardingType:   string(g.BoardingType),
		FeeStructureID: string(g.FeeStructureID),
		StudentCount:   g.StudentCount,
		IsActive:       g.IsActive,
	}
}

func toInvoiceDTO(inv fees.Invoice, now time.Time) InvoiceDTO {
	dto := InvoiceDTO{
		ID:             string(inv.ID),
		BatchID:        inv.BatchID,
		StudentID:      string(inv.StudentID),
		GradeID:        string(inv.GradeID),
		FeeType:        string(inv.FeeType),
		BucketName:     inv.BucketName,
		TotalAmount:    inv.TotalAmount,
		AmountPaid:     inv.AmountPaid,
		AmountDue:      inv.AmountDue,
		PaymentStatus:  string(inv.Status(now)),
		GenerateDate:   inv.GenerateDate.Format("2006-01-02"),
		DueDate:        inv.DueDate.Format("2006-01-02"),
		Term:           string(inv.Term),
		AcademicYear:   string(inv.AcademicYear),
		Message:        inv.Message,
		PaymentHistory: make([]PaymentDTO, 0, len(inv.PaymentHistory)),
	}
	for _, p := range inv.PaymentHistory {
		dto.PaymentHistory = append(dto.PaymentHistory, PaymentDTO{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt.Format(time.RFC3339),
		})
	}
	return dto
}
