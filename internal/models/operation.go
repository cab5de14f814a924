package models

import "time"

// OperationKind is the workflow an operation ran.
type OperationKind string

const (
	OperationResolve  OperationKind = "resolve"
	OperationDiffEdit OperationKind = "diffedit"
)

// OperationStatus is the outcome of an operation.
type OperationStatus string

const (
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

// Operation records one run of an external merge tool or diff editor.
type Operation struct {
	ID         string
	Kind       OperationKind
	Path       string // conflicted path; empty for diff edits
	InputTree  string
	OutputTree string // empty unless the operation succeeded
	Tool       string
	Status     OperationStatus
	Error      string
	CreatedAt  time.Time
}
