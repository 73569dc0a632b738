package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/repository"
)

// experimentService holds experiment use-case logic: validation + orchestration, no transport / SQL details.
type experimentService struct {
	repo  repository.ExperimentRepository
	tx    repository.TxManager
	log   zerolog.Logger
	newID func() string
}

func NewExperimentService(repo repository.ExperimentRepository, tx repository.TxManager, logger zerolog.Logger) ExperimentService {
	l := logger.With().Str("module", "service").Str("component", "experiment").Logger()
	return &experimentService{
		repo:  repo,
		tx:    tx,
		log:   l,
		newID: func() string { return "experiment-" + uuid.NewString() },
	}
}

func (s *experimentService) CreateExperiment(ctx context.Context, in CreateExperimentInput) (model.Experiment, error) {
	start := time.Now()
	name := strings.TrimSpace(in.Name)
	namespace := strings.TrimSpace(in.Namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	framework, fwOK := normalizeFramework(in.Framework)

	var ferrs []FieldError
	if name == "" {
		ferrs = append(ferrs, FieldError{Field: "name", Message: "must not be empty"})
	} else if !isValidName(name) {
		ferrs = append(ferrs, FieldError{Field: "name", Message: "must be a lowercase DNS label of at most 63 characters"})
	}
	if !isValidName(namespace) {
		ferrs = append(ferrs, FieldError{Field: "namespace", Message: "must be a lowercase DNS label of at most 63 characters"})
	}
	if !fwOK {
		ferrs = append(ferrs, FieldError{Field: "framework", Message: "must be one of TensorFlow|PyTorch|XGBoost"})
	}
	for k := range in.EnvVars {
		if !envVarKey.MatchString(k) {
			ferrs = append(ferrs, FieldError{Field: "envVars." + k, Message: "invalid environment variable name"})
		}
	}
	if err := newInvalidInput(ferrs); err != nil {
		s.log.Debug().Str("name_raw", in.Name).Interface("field_errors", ferrs).Msg("experiment validation failed")
		return model.Experiment{}, err
	}

	out, err := s.repo.Create(ctx, model.Experiment{
		ExperimentID: s.newID(),
		Name:         name,
		Namespace:    namespace,
		Framework:    framework,
		Cmd:          strings.TrimSpace(in.Cmd),
		EnvVars:      in.EnvVars,
		Status:       model.StatusAccepted,
	})
	if err != nil {
		// Repository surfaces domain-level errors already, do not wrap.
		s.log.Error().Err(err).Str("name", name).Str("namespace", namespace).Msg("create experiment failed")
		return model.Experiment{}, err
	}
	s.log.Info().Dur("took", time.Since(start)).Str("experiment_id", out.ExperimentID).Msg("experiment created")
	return out, nil
}

func (s *experimentService) GetExperiment(ctx context.Context, experimentID string) (model.Experiment, error) {
	id := strings.TrimSpace(experimentID)
	if id == "" {
		return model.Experiment{}, newInvalidInput([]FieldError{{Field: "id", Message: "must not be empty"}})
	}
	return s.repo.GetByExperimentID(ctx, id)
}

func (s *experimentService) ListExperiments(ctx context.Context, f model.ListFilter, page pagination.Request) (pagination.PageResult[model.Experiment], error) {
	f.Status = normalizeStatus(f.Status)
	f.Namespace = strings.TrimSpace(f.Namespace)
	f.Name = strings.TrimSpace(f.Name)
	if f.Status != "" && !isValidStatus(f.Status) {
		return pagination.PageResult[model.Experiment]{}, newInvalidInput([]FieldError{
			{Field: "status", Message: "must be one of Accepted|Created|Running|Succeeded|Failed"},
		})
	}

	p := normalizePage(page)
	if err := p.Validate(); err != nil {
		return pagination.PageResult[model.Experiment]{}, err
	}
	res, err := s.repo.List(ctx, f, p)
	if err != nil {
		s.log.Error().Err(err).Int("page_num", p.PageNum).Int("page_size", p.PageSize).Msg("list experiments failed")
		return pagination.PageResult[model.Experiment]{}, err
	}
	return res, nil
}

// UpdateStatus moves an experiment forward through its lifecycle. Finished experiments are frozen.
func (s *experimentService) UpdateStatus(ctx context.Context, experimentID, status string) (model.Experiment, error) {
	id := strings.TrimSpace(experimentID)
	to := normalizeStatus(status)

	var ferrs []FieldError
	if id == "" {
		ferrs = append(ferrs, FieldError{Field: "id", Message: "must not be empty"})
	}
	if !isValidStatus(to) {
		ferrs = append(ferrs, FieldError{Field: "status", Message: "must be one of Accepted|Created|Running|Succeeded|Failed"})
	}
	if err := newInvalidInput(ferrs); err != nil {
		return model.Experiment{}, err
	}

	var out model.Experiment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByExperimentID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(current.Status, to) {
			return repository.ErrConflict
		}
		out, err = s.repo.UpdateStatus(ctx, id, current.Status, to)
		return err
	})
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrConflict) {
			s.log.Error().Err(err).Str("experiment_id", id).Str("status", to).Msg("update experiment status failed")
		}
		return model.Experiment{}, err
	}
	s.log.Info().Str("experiment_id", id).Str("status", to).Msg("experiment status updated")
	return out, nil
}

func (s *experimentService) DeleteExperiment(ctx context.Context, experimentID string) error {
	id := strings.TrimSpace(experimentID)
	if id == "" {
		return newInvalidInput([]FieldError{{Field: "id", Message: "must not be empty"}})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("experiment_id", id).Msg("delete experiment failed")
		}
		return err
	}
	s.log.Info().Str("experiment_id", id).Msg("experiment deleted")
	return nil
}
