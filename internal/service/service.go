// Package service holds business logic orchestration across repositories and handlers.
// Kept intentionally lean: only use-case coordination, validation and domain error shaping.
package service

import (
	"context"
	"errors"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
)

// ErrInvalidInput is the marker error for aggregated validation failures (maps to HTTP 400).
// Field-level details are retrieved via FieldErrors(err).
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes a single invalid field in a client request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// invalidInputError aggregates multiple FieldError instances and unwraps to ErrInvalidInput.
type invalidInputError struct {
	fields []FieldError
}

func (e *invalidInputError) Error() string        { return ErrInvalidInput.Error() }
func (e *invalidInputError) Unwrap() error        { return ErrInvalidInput }
func (e *invalidInputError) Fields() []FieldError { return e.fields }

func newInvalidInput(fe []FieldError) error {
	if len(fe) == 0 {
		return nil
	}
	return &invalidInputError{fields: fe}
}

// FieldErrors extracts field errors from an aggregated validation error.
func FieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	type feIface interface{ Fields() []FieldError }
	var v feIface
	if errors.As(err, &v) && errors.Is(err, ErrInvalidInput) {
		return v.Fields()
	}
	return nil
}

// CreateExperimentInput is what a client submits; the service assigns id and status.
type CreateExperimentInput struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Framework string            `json:"framework"`
	Cmd       string            `json:"cmd"`
	EnvVars   map[string]string `json:"envVars"`
}

// ExperimentService defines experiment use cases.
type ExperimentService interface {
	CreateExperiment(ctx context.Context, in CreateExperimentInput) (model.Experiment, error)
	GetExperiment(ctx context.Context, experimentID string) (model.Experiment, error)
	ListExperiments(ctx context.Context, f model.ListFilter, page pagination.Request) (pagination.PageResult[model.Experiment], error)
	UpdateStatus(ctx context.Context, experimentID, status string) (model.Experiment, error)
	DeleteExperiment(ctx context.Context, experimentID string) error
}
