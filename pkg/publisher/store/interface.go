package store

// RunStore persists run records.
type RunStore interface {
	// Get retrieves a run by id, returning whether it exists
	Get(id string) (RunRecord, bool)

	// List returns all runs, newest first
	List() []RunRecord

	// Create stores a new run record
	Create(record RunRecord) error

	// Update replaces an existing run record
	Update(record RunRecord) error

	// Delete removes a run record
	Delete(id string) error
}

// Ensure *Runs implements RunStore interface
var _ RunStore = (*Runs)(nil)
