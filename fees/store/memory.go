// Package store provides in-memory implementations of the fee engine's
// persistence interfaces, used by tests and dev mode.
package store

import (
	"context"
	"sync"

	"github.com/shulebill/fee-engine/fees"
)

// =============================================================================
// MEMORY STORE - implements StructureStore, GradeStore, InvoiceStore
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	structures map[fees.StructureID]fees.FeeStructure
	structIDs  []fees.StructureID
	grades     map[fees.GradeID]fees.Grade
	gradeIDs   []fees.GradeID
	invoices   map[fees.InvoiceID]fees.Invoice
	invoiceIDs []fees.InvoiceID

	// FailAppend, when set, makes AppendBatch fail without committing.
	// Lets tests exercise the no-partial-batch contract.
	FailAppend error
}

func NewMemory() *Memory {
	return &Memory{
		structures: make(map[fees.StructureID]fees.FeeStructure),
		grades:     make(map[fees.GradeID]fees.Grade),
		invoices:   make(map[fees.InvoiceID]fees.Invoice),
	}
}

// -----------------------------------------------------------------------------
// StructureStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveStructure(_ context.Context, s fees.FeeStructure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.structures[s.ID]; !ok {
		m.structIDs = append(m.structIDs, s.ID)
	}
	m.structures[s.ID] = s
	return nil
}

func (m *Memory) GetStructure(_ context.Context, id fees.StructureID) (fees.FeeStructure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.structures[id]
	if !ok {
		return fees.FeeStructure{}, fees.ErrStructureNotFound
	}
	return s, nil
}

func (m *Memory) ListStructures(_ context.Context) ([]fees.FeeStructure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fees.FeeStructure, 0, len(m.structIDs))
	for _, id := range m.structIDs {
		if s, ok := m.structures[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) DeleteStructure(_ context.Context, id fees.StructureID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.structures[id]; !ok {
		return fees.ErrStructureNotFound
	}
	delete(m.structures, id)
	for i, sid := range m.structIDs {
		if sid == id {
			m.structIDs = append(m.structIDs[:i], m.structIDs[i+1:]...)
			break
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// GradeStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveGrade(_ context.Context, g fees.Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grades[g.ID]; !ok {
		m.gradeIDs = append(m.gradeIDs, g.ID)
	}
	m.grades[g.ID] = g
	return nil
}

func (m *Memory) GetGrade(_ context.Context, id fees.GradeID) (fees.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grades[id]
	if !ok {
		return fees.Grade{}, fees.ErrGradeNotFound
	}
	return g, nil
}

func (m *Memory) ListGrades(_ context.Context) ([]fees.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fees.Grade, 0, len(m.gradeIDs))
	for _, id := range m.gradeIDs {
		if g, ok := m.grades[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *Memory) SetAssignment(_ context.Context, gradeID fees.GradeID, structureID fees.StructureID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grades[gradeID]
	if !ok {
		return fees.ErrGradeNotFound
	}
	g.FeeStructureID = structureID
	m.grades[gradeID] = g
	return nil
}

// -----------------------------------------------------------------------------
// InvoiceStore
// -----------------------------------------------------------------------------

// AppendBatch commits all invoices or none. The check-then-write split under
// one lock gives the atomic contract; FailAppend simulates a store outage.
func (m *Memory) AppendBatch(_ context.Context, invoices []fees.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return m.FailAppend
	}
	for _, inv := range invoices {
		if _, exists := m.invoices[inv.ID]; exists {
			return fees.ErrPersistenceFailure
		}
	}
	for _, inv := range invoices {
		m.invoices[inv.ID] = inv
		m.invoiceIDs = append(m.invoiceIDs, inv.ID)
	}
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id fees.InvoiceID) (fees.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return fees.Invoice{}, fees.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *Memory) ListByStudent(_ context.Context, studentID fees.StudentID) ([]fees.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fees.Invoice
	for _, id := range m.invoiceIDs {
		if inv := m.invoices[id]; inv.StudentID == studentID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *Memory) ListByBatch(_ context.Context, batchID string) ([]fees.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fees.Invoice
	for _, id := range m.invoiceIDs {
		if inv := m.invoices[id]; inv.BatchID == batchID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *Memory) AppendPayment(_ context.Context, id fees.InvoiceID, p fees.Payment) (fees.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return fees.Invoice{}, fees.ErrInvoiceNotFound
	}
	updated := inv.ApplyPayment(p)
	m.invoices[id] = updated
	return updated, nil
}
