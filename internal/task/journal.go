package task

import (
	"context"
	"time"
)

// StepStatus represents the state of a journaled step.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
)

// Step is a single journaled step of a multi-step operation.
type Step struct {
	ID        string
	Owner     string
	Operation string
	Sequence  int
	Name      string
	Status    StepStatus
	Error     string
	CreatedAt time.Time
	// FinishedAt is zero while the step is pending.
	FinishedAt time.Time
}

// JournalProgress represents the completion state of an operation.
type JournalProgress struct {
	Done   int
	Failed int
	Total  int
}

// Journal records the steps of multi-step operations, so a run interrupted by a crash
// can be detected on the next start.
type Journal interface {
	// AddSteps adds multiple steps to an operation in order.
	AddSteps(ctx context.Context, owner, operation string, names []string) error

	// NextStep returns the next pending step for an operation, or nil if all done.
	NextStep(ctx context.Context, owner, operation string) (*Step, error)

	// Steps returns every step of an operation in order.
	Steps(ctx context.Context, owner, operation string) ([]Step, error)

	// CompleteStep marks a step as completed.
	CompleteStep(ctx context.Context, stepID string) error

	// FailStep marks a step as failed with an error message.
	FailStep(ctx context.Context, stepID string, err error) error

	// Progress returns the completion progress for an operation.
	Progress(ctx context.Context, owner, operation string) (*JournalProgress, error)

	// HasPendingOperation checks if an owner has any pending operations.
	// Returns the operation name and true if found, empty string and false otherwise.
	HasPendingOperation(ctx context.Context, owner string) (operation string, hasPending bool, err error)

	// ClearOperation removes all steps for an operation.
	ClearOperation(ctx context.Context, owner, operation string) error
}

// NoopJournal is a journal that doesn't record anything.
var NoopJournal Journal = noopJournal{}

type noopJournal struct{}

func (noopJournal) AddSteps(context.Context, string, string, []string) error { return nil }
func (noopJournal) NextStep(context.Context, string, string) (*Step, error)  { return nil, nil }
func (noopJournal) Steps(context.Context, string, string) ([]Step, error)    { return nil, nil }
func (noopJournal) CompleteStep(context.Context, string) error               { return nil }
func (noopJournal) FailStep(context.Context, string, error) error            { return nil }
func (noopJournal) ClearOperation(context.Context, string, string) error     { return nil }
func (noopJournal) HasPendingOperation(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (noopJournal) Progress(context.Context, string, string) (*JournalProgress, error) {
	return &JournalProgress{}, nil
}
