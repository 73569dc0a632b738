// Package model contains domain entities and DTOs used across layers.
// I keep it lean and focused on data shapes without behavior.
package model

import "time"

// Experiment statuses as reported by the training cluster.
const (
	StatusAccepted  = "Accepted"
	StatusCreated   = "Created"
	StatusRunning   = "Running"
	StatusSucceeded = "Succeeded"
	StatusFailed    = "Failed"
)

// Supported training frameworks.
const (
	FrameworkTensorFlow = "TensorFlow"
	FrameworkPyTorch    = "PyTorch"
	FrameworkXGBoost    = "XGBoost"
)

// Experiment represents a submitted training job.
type Experiment struct {
	ID           int64             `json:"-"`
	ExperimentID string            `json:"experimentId"`
	Name         string            `json:"name"`
	Namespace    string            `json:"namespace"`
	Framework    string            `json:"framework"`
	Cmd          string            `json:"cmd,omitempty"`
	EnvVars      map[string]string `json:"envVars,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"createdTime"`
	UpdatedAt    time.Time         `json:"updatedTime"`
}

// ListFilter narrows an experiment listing. Empty fields are ignored.
type ListFilter struct {
	Status    string
	Namespace string
	Name      string // substring match
}
