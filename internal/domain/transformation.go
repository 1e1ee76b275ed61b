package domain

import "time"

// Transformation records one successful before/after generation. Records are
// immutable and AfterURL always points at durable storage.
type Transformation struct {
	ID        string
	ClinicID  string
	BeforeURL string
	AfterURL  string
	CreatedAt time.Time
}
