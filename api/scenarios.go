/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates fee structures,
	grades, and assignments that demonstrate specific features.

AVAILABLE SCENARIOS:

	form2-boarding:   One boarding structure (Tuition + Boarding), one grade
	                  of 30 students assigned, ready for bulk generation
	split-records:    "Grade 1 Fees" arriving as three per-term records,
	                  demonstrating aggregation
	mixed-optional:   Structure with optional transport and meals buckets

HOW SCENARIOS WORK:
 1. Build raw records the way the origin API would return them
 2. Aggregate them into normalized structures
 3. Save structures and grades, assign grades

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "form2-boarding"}

NOTE:

	Scenarios add data on top of whatever the store holds. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
  - fees/aggregate.go: Aggregation the split-records scenario exercises
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "form2-boarding",
		Name:        "Form 2 Boarding",
		Description: "Boarding structure with tuition and boarding buckets, 30-student grade assigned",
	},
	{
		ID:          "split-records",
		Name:        "Split Term Records",
		Description: "Grade 1 Fees arriving as three per-term records, merged by the aggregator",
	},
	{
		ID:          "mixed-optional",
		Name:        "Mixed Optional Fees",
		Description: "Day structure with optional transport and meals buckets",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario populates the store with the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "form2-boarding":
		err = loadForm2BoardingScenario(ctx, h)
	case "split-records":
		err = loadSplitRecordsScenario(ctx, h)
	case "mixed-optional":
		err = loadMixedOptionalScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadForm2BoardingScenario(ctx context.Context, h *Handler) error {
	records := []fees.RawStructureRecord{
		{
			ID:             "fs-form2-boarding",
			Name:           "Form 2 Boarding - Term 1",
			Grade:          "Form 2",
			BoardingType:   fees.BoardingFull,
			AcademicYearID: "ay-2024",
			IsActive:       true,
			UpdatedAt:      time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
			Terms:          []fees.RawTerm{{ID: "t1-2024", Term: fees.Term1}},
			Items: []fees.RawItem{
				{BucketID: "bkt-tuition", BucketName: "Tuition", BucketType: fees.BucketTuition, Amount: fees.NewMoneyFromInt(35000), IsMandatory: true},
				{BucketID: "bkt-boarding", BucketName: "Boarding", BucketType: fees.BucketBoarding, Amount: fees.NewMoneyFromInt(30000), IsMandatory: true},
			},
			GradeRefs: []fees.GradeRef{{ID: "grade-form2-east", Name: "Form 2 East"}},
		},
	}

	for _, s := range fees.Aggregate(records) {
		if err := h.Store.SaveStructure(ctx, s); err != nil {
			return err
		}
	}

	grade := fees.Grade{
		ID:             "grade-form2-east",
		Name:           "Form 2",
		Section:        "East",
		BoardingType:   fees.BoardingFull,
		FeeStructureID: "fs-form2-boarding",
		StudentCount:   30,
		IsActive:       true,
	}
	return h.Store.SaveGrade(ctx, grade)
}

func loadSplitRecordsScenario(ctx context.Context, h *Handler) error {
	year := fees.AcademicYearID("ay-2024")
	updated := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	var records []fees.RawStructureRecord
	for i, term := range []fees.Term{fees.Term1, fees.Term2, fees.Term3} {
		records = append(records, fees.RawStructureRecord{
			ID:             fmt.Sprintf("fs-grade1-%d", i+1),
			Name:           fmt.Sprintf("Grade 1 Fees - Term %d", i+1),
			Grade:          "Grade 1",
			BoardingType:   fees.BoardingDay,
			AcademicYearID: year,
			IsActive:       i == 0,
			UpdatedAt:      updated.AddDate(0, i, 0),
			Terms:          []fees.RawTerm{{ID: fees.TermID(fmt.Sprintf("t%d-2024", i+1)), Term: term}},
			Items: []fees.RawItem{
				{BucketID: "bkt-tuition", BucketName: "Tuition", BucketType: fees.BucketTuition, Amount: fees.NewMoneyFromInt(15000), IsMandatory: true},
				{BucketID: "bkt-meals", BucketName: "Meals", BucketType: fees.BucketMeals, Amount: fees.NewMoneyFromInt(4500), IsMandatory: true},
			},
			GradeRefs: []fees.GradeRef{{ID: "grade-1-north", Name: "Grade 1 North"}},
		})
	}

	for _, s := range fees.Aggregate(records) {
		if err := h.Store.SaveStructure(ctx, s); err != nil {
			return err
		}
	}

	return h.Store.SaveGrade(ctx, fees.Grade{
		ID:           "grade-1-north",
		Name:         "Grade 1",
		Section:      "North",
		BoardingType: fees.BoardingDay,
		StudentCount: 25,
		IsActive:     true,
	})
}

func loadMixedOptionalScenario(ctx context.Context, h *Handler) error {
	records := []fees.RawStructureRecord{
		{
			ID:             "fs-grade4-day",
			Name:           "Grade 4 Day - Term 1",
			Grade:          "Grade 4",
			BoardingType:   fees.BoardingDay,
			AcademicYearID: "ay-2024",
			IsActive:       true,
			UpdatedAt:      time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
			Terms:          []fees.RawTerm{{ID: "t1-2024", Term: fees.Term1}},
			Items: []fees.RawItem{
				{BucketID: "bkt-tuition", BucketName: "Tuition", BucketType: fees.BucketTuition, Amount: fees.NewMoneyFromInt(18000), IsMandatory: true},
				{BucketID: "bkt-transport", BucketName: "Transport", BucketType: fees.BucketTransport, Amount: fees.NewMoneyFromInt(6000), IsMandatory: false},
				{BucketID: "bkt-meals", BucketName: "Meals", BucketType: fees.BucketMeals, Amount: fees.NewMoneyFromInt(4500), IsMandatory: false},
			},
			GradeRefs: []fees.GradeRef{{ID: "grade-4-west", Name: "Grade 4 West"}},
		},
	}

	for _, s := range fees.Aggregate(records) {
		if err := h.Store.SaveStructure(ctx, s); err != nil {
			return err
		}
	}

	return h.Store.SaveGrade(ctx, fees.Grade{
		ID:             "grade-4-west",
		Name:           "Grade 4",
		Section:        "West",
		BoardingType:   fees.BoardingDay,
		FeeStructureID: "fs-grade4-day",
		StudentCount:   28,
		IsActive:       true,
	})
}
