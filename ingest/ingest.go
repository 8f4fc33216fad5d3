/*
Package ingest decodes raw upstream fee-structure JSON into engine records.

PURPOSE:
  The origin API's payloads are loosely shaped: the "grade" field is
  sometimes a plain string and sometimes an object with a nested name,
  amounts arrive as numbers or strings, and terms/items may be null. This
  package normalizes all of that at the boundary so the engine's data model
  never carries ambiguous union types.

JSON SCHEMA (one raw record):
  {
    "id": "fs-101",
    "name": "Grade 1 Fees - Term 1",
    "grade": "Grade 1"            // or {"id": "g-1", "name": "Grade 1"}
    "boarding_type": "day",
    "academic_year": {"id": "ay-2024", "name": "2024"},
    "is_active": true,
    "updated_at": "2024-01-15T08:00:00Z",
    "terms": [{"id": "t-1", "name": "Term 1"}],
    "items": [
      {
        "fee_bucket": {"id": "bkt-1", "name": "Tuition", "type": "tuition"},
        "amount": 35000,           // or "35000"
        "is_mandatory": true
      }
    ],
    "grade_levels": [{"id": "g-1", "name": "Grade 1"}]
  }

DEGRADATION:
  Missing or null collections decode to empty; malformed amounts decode to
  zero. The engine's aggregator is defensive by design, so ingestion never
  rejects a record outright - the UI must still render something from
  partial data.

SEE ALSO:
  - fees/aggregate.go: Consumes the decoded records
*/
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// FLEXIBLE FIELD TYPES
// =============================================================================

// NameRef decodes either a bare string or an object carrying id/name.
type NameRef struct {
	ID   string
	Name string
}

func (n *NameRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Name = s
		return nil
	}
	var obj struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("name reference is neither string nor object: %w", err)
	}
	n.ID = obj.ID
	n.Name = obj.Name
	return nil
}

// FlexAmount decodes a JSON number or numeric string into Money; anything
// else degrades to zero.
type FlexAmount struct {
	Money fees.Money
}

func (a *FlexAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Money = fees.ParseMoney(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err == nil {
		a.Money = fees.ParseMoney(f.String())
		return nil
	}
	a.Money = fees.ZeroMoney()
	return nil
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type rawTermJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rawItemJSON struct {
	FeeBucket   NameRef    `json:"fee_bucket"`
	BucketType  string     `json:"bucket_type"`
	Description string     `json:"description"`
	Amount      FlexAmount `json:"amount"`
	IsMandatory bool       `json:"is_mandatory"`
}

type rawRecordJSON struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Grade        NameRef       `json:"grade"`
	BoardingType string        `json:"boarding_type"`
	AcademicYear NameRef       `json:"academic_year"`
	IsActive     bool          `json:"is_active"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Terms        []rawTermJSON `json:"terms"`
	Items        []rawItemJSON `json:"items"`
	GradeLevels  []NameRef     `json:"grade_levels"`
}

// =============================================================================
// DECODING
// =============================================================================

// DecodeRecords parses a JSON array of raw structure records.
func DecodeRecords(data []byte) ([]fees.RawStructureRecord, error) {
	var wire []rawRecordJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode raw structure records: %w", err)
	}
	records := make([]fees.RawStructureRecord, 0, len(wire))
	for _, w := range wire {
		records = append(records, toRecord(w))
	}
	return records, nil
}

// DecodeRecord parses a single raw structure record.
func DecodeRecord(data []byte) (fees.RawStructureRecord, error) {
	var w rawRecordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fees.RawStructureRecord{}, fmt.Errorf("decode raw structure record: %w", err)
	}
	return toRecord(w), nil
}

func toRecord(w rawRecordJSON) fees.RawStructureRecord {
	rec := fees.RawStructureRecord{
		ID:             w.ID,
		Name:           w.Name,
		Grade:          w.Grade.Name,
		BoardingType:   fees.BoardingType(w.BoardingType),
		AcademicYearID: academicYearID(w.AcademicYear),
		IsActive:       w.IsActive,
		UpdatedAt:      w.UpdatedAt,
	}
	for _, t := range w.Terms {
		rec.Terms = append(rec.Terms, fees.RawTerm{
			ID:   fees.TermID(t.ID),
			Term: fees.Term(t.Name),
		})
	}
	for _, it := range w.Items {
		rec.Items = append(rec.Items, fees.RawItem{
			BucketID:    fees.BucketID(it.FeeBucket.ID),
			BucketName:  it.FeeBucket.Name,
			BucketType:  bucketType(it.BucketType, it.FeeBucket.Name),
			Description: it.Description,
			Amount:      it.Amount.Money,
			IsMandatory: it.IsMandatory,
		})
	}
	for _, ref := range w.GradeLevels {
		rec.GradeRefs = append(rec.GradeRefs, fees.GradeRef{
			ID:   fees.GradeID(ref.ID),
			Name: ref.Name,
		})
	}
	return rec
}

func academicYearID(ref NameRef) fees.AcademicYearID {
	if ref.ID != "" {
		return fees.AcademicYearID(ref.ID)
	}
	return fees.AcademicYearID(ref.Name)
}

// bucketType falls back to matching on the bucket name when the upstream
// record omits an explicit type.
func bucketType(explicit, name string) fees.BucketType {
	if explicit != "" {
		return fees.BucketType(explicit)
	}
	switch name {
	case "Tuition":
		return fees.BucketTuition
	case "Transport":
		return fees.BucketTransport
	case "Meals":
		return fees.BucketMeals
	case "Boarding":
		return fees.BucketBoarding
	}
	return fees.BucketOther
}
