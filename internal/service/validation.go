package service

import (
	"regexp"
	"strings"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
)

const defaultNamespace = "default"

var (
	// experiments become cluster resources, so names follow DNS-1123 labels
	dnsLabel  = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
	envVarKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// status progression; Failed may be reached from any non-terminal state
var statusRank = map[string]int{
	model.StatusAccepted:  0,
	model.StatusCreated:   1,
	model.StatusRunning:   2,
	model.StatusSucceeded: 3,
	model.StatusFailed:    3,
}

func normalizePage(p pagination.Request) pagination.Request {
	return p.Normalize(pagination.DefaultPageSize, pagination.MaxPageSize)
}

func isValidName(s string) bool {
	return len(s) <= 63 && dnsLabel.MatchString(s)
}

// normalizeStatus maps any casing to the canonical status; unknown values come back unchanged.
func normalizeStatus(status string) string {
	s := strings.TrimSpace(status)
	for canonical := range statusRank {
		if strings.EqualFold(s, canonical) {
			return canonical
		}
	}
	return s
}

func isValidStatus(status string) bool {
	_, ok := statusRank[status]
	return ok
}

func isTerminal(status string) bool {
	return status == model.StatusSucceeded || status == model.StatusFailed
}

// canTransition reports whether an experiment may move from one status to another.
func canTransition(from, to string) bool {
	if isTerminal(from) {
		return false
	}
	if to == model.StatusFailed {
		return true
	}
	return statusRank[to] > statusRank[from]
}

func normalizeFramework(fw string) (string, bool) {
	s := strings.TrimSpace(fw)
	for _, known := range []string{model.FrameworkTensorFlow, model.FrameworkPyTorch, model.FrameworkXGBoost} {
		if strings.EqualFold(s, known) {
			return known, true
		}
	}
	return s, false
}
