/*
assignment.go - Grade-to-structure assignment and cascade rules

PURPOSE:
  Grades carry a weak back-reference to the fee structure that applies to
  them. Many grades may reference one structure; a grade may reference none.
  This file provides the lookups the assignment and generation screens need
  and the two mutations that maintain the back-reference:

  AssignedGrades(id):   grades whose FeeStructureID == id
  UnassignedGrades():   grades with an empty FeeStructureID
  TotalStudents(id):    summed StudentCount over AssignedGrades(id)
  Assign / Unassign:    set / clear the back-reference
  DeleteStructure:      delete + cascade-clear every referencing grade

CASCADE:
  Deleting a structure unassigns every grade that referenced it and no
  others. Invoices already generated from the structure are never touched;
  invoice lifecycle is independent of the catalogue that produced it.

SEE ALSO:
  - types.go: Grade and the weak FeeStructureID field
  - store.go: GradeStore.SetAssignment
*/
package fees

import "context"

// Resolver answers assignment queries and owns the assign/unassign mutations.
type Resolver struct {
	Structures StructureStore
	Grades     GradeStore
}

func NewResolver(structures StructureStore, grades GradeStore) *Resolver {
	return &Resolver{Structures: structures, Grades: grades}
}

// AssignedGrades returns every grade referencing the given structure.
func (r *Resolver) AssignedGrades(ctx context.Context, structureID StructureID) ([]Grade, error) {
	grades, err := r.Grades.ListGrades(ctx)
	if err != nil {
		return nil, err
	}
	var out []Grade
	for _, g := range grades {
		if g.FeeStructureID == structureID {
			out = append(out, g)
		}
	}
	return out, nil
}

// UnassignedGrades returns every grade with no structure reference. These
// are the grades "available" on assignment screens.
func (r *Resolver) UnassignedGrades(ctx context.Context) ([]Grade, error) {
	grades, err := r.Grades.ListGrades(ctx)
	if err != nil {
		return nil, err
	}
	var out []Grade
	for _, g := range grades {
		if !g.IsAssigned() {
			out = append(out, g)
		}
	}
	return out, nil
}

// TotalStudents sums the student counts of all grades assigned to the
// structure.
func (r *Resolver) TotalStudents(ctx context.Context, structureID StructureID) (int, error) {
	grades, err := r.AssignedGrades(ctx, structureID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, g := range grades {
		total += g.StudentCount
	}
	return total, nil
}

// Assign sets the grade's back-reference. The structure must exist.
func (r *Resolver) Assign(ctx context.Context, gradeID GradeID, structureID StructureID) error {
	if _, err := r.Structures.GetStructure(ctx, structureID); err != nil {
		return err
	}
	if _, err := r.Grades.GetGrade(ctx, gradeID); err != nil {
		return err
	}
	return r.Grades.SetAssignment(ctx, gradeID, structureID)
}

// Unassign clears the grade's back-reference.
func (r *Resolver) Unassign(ctx context.Context, gradeID GradeID) error {
	if _, err := r.Grades.GetGrade(ctx, gradeID); err != nil {
		return err
	}
	return r.Grades.SetAssignment(ctx, gradeID, "")
}

// DeleteStructure removes the structure and clears the back-reference on
// every grade that pointed at it. Generated invoices survive.
func (r *Resolver) DeleteStructure(ctx context.Context, structureID StructureID) error {
	if _, err := r.Structures.GetStructure(ctx, structureID); err != nil {
		return err
	}
	assigned, err := r.AssignedGrades(ctx, structureID)
	if err != nil {
		return err
	}
	if err := r.Structures.DeleteStructure(ctx, structureID); err != nil {
		return err
	}
	for _, g := range assigned {
		if err := r.Grades.SetAssignment(ctx, g.ID, ""); err != nil {
			return err
		}
	}
	return nil
}
