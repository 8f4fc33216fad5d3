/*
aggregate.go - Merging raw term-fragmented records into fee structures

PURPOSE:
  The origin system stores one fee structure as N records, typically one per
  term, each named "<base> - Term K" and carrying a flat list of billing items.
  This file re-merges those records into one normalized FeeStructure per
  (base name, academic year) pair, with a term -> buckets map built by summing
  item amounts per bucket.

KEY RULES:
  - Group key: name with any trailing "- Term <number>" suffix stripped,
    paired with the academic year id. A structure belongs to one year.
  - Items sharing a bucket id within a term are summed, never overwritten.
    Two records both tagging Term 1 merge their bucket maps the same way,
    so double-counting is surfaced rather than silently dropped.
  - A bucket is optional only if EVERY contributing item says optional
    (logical AND of "not mandatory" across merges).
  - isActive is the OR across contributing records; updatedAt is the max.
  - Term and grade-ref unions are de-duplicated by id, order as first seen.

GUARANTEES:
  Aggregation is a pure function of its input: no I/O, deterministic output
  order, and idempotent - re-feeding its output (as single-record groups)
  yields the same structures.

DEGRADATION:
  Upstream data is occasionally incomplete. A record with zero terms still
  contributes its grade refs; zero items produce no buckets; missing amounts
  count as zero. Strict validation (undeclared bucket references) is opt-in
  via AggregateStrict.

SEE ALSO:
  - types.go: FeeStructure and friends
  - ingest: decoding raw upstream JSON into RawStructureRecord
*/
package fees

import (
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// RAW RECORDS - the shape the origin API returns
// =============================================================================

// RawItem is one flat billing line on a raw record: a bucket reference, an
// amount, and whether the charge is mandatory.
type RawItem struct {
	BucketID    BucketID
	BucketName  string
	BucketType  BucketType
	Description string
	Amount      Money
	IsMandatory bool
}

// RawTerm is a term tag attached to a raw record.
type RawTerm struct {
	ID   TermID
	Term Term
}

// RawStructureRecord is one record as returned by the origin API. Logically
// one structure may arrive as several of these.
type RawStructureRecord struct {
	ID             string
	Name           string
	Grade          string
	BoardingType   BoardingType
	AcademicYearID AcademicYearID
	Terms          []RawTerm
	Items          []RawItem
	GradeRefs      []GradeRef
	IsActive       bool
	UpdatedAt      time.Time
}

var termSuffixRe = regexp.MustCompile(`\s*-\s*Term\s+\d+\s*$`)

// BaseName strips a trailing "- Term <number>" suffix from a record name.
func BaseName(name string) string {
	return strings.TrimSpace(termSuffixRe.ReplaceAllString(name, ""))
}

// =============================================================================
// AGGREGATION
// =============================================================================

type groupKey struct {
	baseName string
	year     AcademicYearID
}

// Aggregate merges raw records into normalized fee structures, one per
// (base name, academic year) group. Output order follows first appearance of
// each group in the input.
func Aggregate(records []RawStructureRecord) []FeeStructure {
	structures, _ := aggregate(records, false)
	return structures
}

// AggregateStrict behaves like Aggregate but fails on items referencing a
// bucket id with no name or type declared anywhere in the group.
func AggregateStrict(records []RawStructureRecord) ([]FeeStructure, error) {
	return aggregate(records, true)
}

type bucketAccum struct {
	bucket FeeBucket
	// optional stays true only while every contributing item is optional
	optional bool
}

type termAccum struct {
	id      TermID
	term    Term
	buckets map[BucketID]*bucketAccum
	order   []BucketID
}

type structureAccum struct {
	key       groupKey
	firstID   string
	grade     string
	boarding  BoardingType
	isActive  bool
	updatedAt time.Time
	terms     map[TermID]*termAccum
	termOrder []TermID
	gradeRefs map[GradeID]GradeRef
	refOrder  []GradeID
}

func aggregate(records []RawStructureRecord, strict bool) ([]FeeStructure, error) {
	groups := make(map[groupKey]*structureAccum)
	var order []groupKey

	for _, rec := range records {
		key := groupKey{baseName: BaseName(rec.Name), year: rec.AcademicYearID}
		acc, ok := groups[key]
		if !ok {
			acc = &structureAccum{
				key:       key,
				firstID:   rec.ID,
				grade:     rec.Grade,
				boarding:  rec.BoardingType,
				terms:     make(map[TermID]*termAccum),
				gradeRefs: make(map[GradeID]GradeRef),
			}
			groups[key] = acc
			order = append(order, key)
		}

		acc.isActive = acc.isActive || rec.IsActive
		if rec.UpdatedAt.After(acc.updatedAt) {
			acc.updatedAt = rec.UpdatedAt
		}
		if acc.grade == "" {
			acc.grade = rec.Grade
		}
		if acc.boarding == "" {
			acc.boarding = rec.BoardingType
		}

		// Grade refs contribute even when the record carries no terms.
		for _, ref := range rec.GradeRefs {
			if _, seen := acc.gradeRefs[ref.ID]; !seen {
				acc.gradeRefs[ref.ID] = ref
				acc.refOrder = append(acc.refOrder, ref.ID)
			}
		}

		for _, rt := range rec.Terms {
			ta, ok := acc.terms[rt.ID]
			if !ok {
				ta = &termAccum{id: rt.ID, term: rt.Term, buckets: make(map[BucketID]*bucketAccum)}
				acc.terms[rt.ID] = ta
				acc.termOrder = append(acc.termOrder, rt.ID)
			}
			for _, item := range rec.Items {
				if strict && item.BucketName == "" && item.BucketType == "" {
					return nil, &MalformedItemError{RecordID: rec.ID, BucketID: item.BucketID}
				}
				ba, ok := ta.buckets[item.BucketID]
				if !ok {
					ba = &bucketAccum{
						bucket: FeeBucket{
							ID:          item.BucketID,
							Type:        item.BucketType,
							Name:        item.BucketName,
							Description: item.Description,
							Amount:      ZeroMoney(),
						},
						optional: true,
					}
					ta.buckets[item.BucketID] = ba
					ta.order = append(ta.order, item.BucketID)
				}
				ba.bucket.Amount = ba.bucket.Amount.Add(item.Amount)
				ba.optional = ba.optional && !item.IsMandatory
				if ba.bucket.Name == "" {
					ba.bucket.Name = item.BucketName
				}
				if ba.bucket.Type == "" {
					ba.bucket.Type = item.BucketType
				}
			}
		}
	}

	structures := make([]FeeStructure, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		s := FeeStructure{
			ID:           StructureID(acc.firstID),
			Name:         key.baseName,
			Grade:        acc.grade,
			BoardingType: acc.boarding,
			AcademicYear: key.year,
			IsActive:     acc.isActive,
			UpdatedAt:    acc.updatedAt,
		}
		for _, id := range acc.refOrder {
			s.GradeRefs = append(s.GradeRefs, acc.gradeRefs[id])
		}
		for _, tid := range acc.termOrder {
			ta := acc.terms[tid]
			ts := TermStructure{ID: ta.id, Term: ta.term}
			for _, bid := range ta.order {
				ba := ta.buckets[bid]
				b := ba.bucket
				b.IsOptional = ba.optional
				ts.Buckets = append(ts.Buckets, b)
			}
			s.TermStructures = append(s.TermStructures, ts)
		}
		structures = append(structures, s)
	}
	return structures, nil
}

// Denormalize converts a normalized structure back into raw records, one per
// term, in the shape Aggregate consumes. Feeding the result back through
// Aggregate reproduces the structure; this backs the idempotence guarantee
// and is used when forwarding edits to the origin system.
func Denormalize(s FeeStructure) []RawStructureRecord {
	if len(s.TermStructures) == 0 {
		return []RawStructureRecord{{
			ID:             string(s.ID),
			Name:           s.Name,
			Grade:          s.Grade,
			BoardingType:   s.BoardingType,
			AcademicYearID: s.AcademicYear,
			GradeRefs:      s.GradeRefs,
			IsActive:       s.IsActive,
			UpdatedAt:      s.UpdatedAt,
		}}
	}
	records := make([]RawStructureRecord, 0, len(s.TermStructures))
	for _, ts := range s.TermStructures {
		rec := RawStructureRecord{
			ID:             string(s.ID),
			Name:           s.Name,
			Grade:          s.Grade,
			BoardingType:   s.BoardingType,
			AcademicYearID: s.AcademicYear,
			Terms:          []RawTerm{{ID: ts.ID, Term: ts.Term}},
			GradeRefs:      s.GradeRefs,
			IsActive:       s.IsActive,
			UpdatedAt:      s.UpdatedAt,
		}
		for _, b := range ts.Buckets {
			rec.Items = append(rec.Items, RawItem{
				BucketID:    b.ID,
				BucketName:  b.Name,
				BucketType:  b.Type,
				Description: b.Description,
				Amount:      b.Total(),
				IsMandatory: !b.IsOptional,
			})
		}
		records = append(records, rec)
	}
	return records
}
