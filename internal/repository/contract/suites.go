// Package contract holds behavior suites every ExperimentRepository implementation must pass.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/repository"
)

type ExperimentFactory func(t *testing.T) (repository.ExperimentRepository, func())

type TxFactory func(t *testing.T) (tx repository.TxManager, repo repository.ExperimentRepository, cleanup func())

func newExperiment(i int) model.Experiment {
	return model.Experiment{
		ExperimentID: fmt.Sprintf("experiment-contract-%03d", i),
		Name:         fmt.Sprintf("mnist-%03d", i),
		Namespace:    "default",
		Framework:    model.FrameworkTensorFlow,
		Cmd:          "python train.py",
		EnvVars:      map[string]string{"ENV_1": "ENV1"},
		Status:       model.StatusAccepted,
	}
}

func RunExperimentRepositoryContract(t *testing.T, makeRepo ExperimentFactory) {
	t.Helper()

	t.Run("create_and_get", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		created, err := repo.Create(ctx, newExperiment(1))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		got, err := repo.GetByExperimentID(ctx, created.ExperimentID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ID != created.ID || got.Name != created.Name || got.EnvVars["ENV_1"] != "ENV1" {
			t.Fatalf("mismatch: %+v", got)
		}
	})

	t.Run("get_not_found", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		_, err := repo.GetByExperimentID(context.Background(), "experiment-missing")
		if err != repository.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate_name_in_namespace", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		if _, err := repo.Create(ctx, newExperiment(1)); err != nil {
			t.Fatalf("seed: %v", err)
		}
		dup := newExperiment(2)
		dup.Name = newExperiment(1).Name
		if _, err := repo.Create(ctx, dup); err != repository.ErrAlreadyExists {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("list_pages_and_total", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		for i := 0; i < 7; i++ {
			if _, err := repo.Create(ctx, newExperiment(i)); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		first, err := repo.List(ctx, model.ListFilter{}, pagination.Request{PageNum: 1, PageSize: 3})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if first.Len() != 3 || first.Total() != 7 || first.PageNum() != 1 || first.PageSize() != 3 {
			t.Fatalf("unexpected page: len=%d total=%d", first.Len(), first.Total())
		}
		last, err := repo.List(ctx, model.ListFilter{}, pagination.Request{PageNum: 3, PageSize: 3})
		if err != nil {
			t.Fatalf("list last: %v", err)
		}
		if last.Len() != 1 || last.Total() != 7 {
			t.Fatalf("unexpected last page: len=%d total=%d", last.Len(), last.Total())
		}
		beyond, err := repo.List(ctx, model.ListFilter{}, pagination.Request{PageNum: 9, PageSize: 3})
		if err != nil {
			t.Fatalf("list beyond: %v", err)
		}
		if beyond.Len() != 0 || beyond.Total() != 7 {
			t.Fatalf("unexpected page past end: len=%d total=%d", beyond.Len(), beyond.Total())
		}
		seen := map[string]bool{}
		for _, p := range []int{1, 2, 3} {
			page, err := repo.List(ctx, model.ListFilter{}, pagination.Request{PageNum: p, PageSize: 3})
			if err != nil {
				t.Fatalf("list page %d: %v", p, err)
			}
			for _, e := range page.List() {
				if seen[e.ExperimentID] {
					t.Fatalf("experiment %s returned on two pages", e.ExperimentID)
				}
				seen[e.ExperimentID] = true
			}
		}
		if len(seen) != 7 {
			t.Fatalf("expected 7 distinct experiments across pages, got %d", len(seen))
		}
	})

	t.Run("list_filter_status", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		for i := 0; i < 4; i++ {
			e := newExperiment(i)
			if i%2 == 0 {
				e.Status = model.StatusRunning
			}
			if _, err := repo.Create(ctx, e); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		res, err := repo.List(ctx, model.ListFilter{Status: model.StatusRunning}, pagination.Request{PageNum: 1, PageSize: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if res.Total() != 2 || res.Len() != 2 {
			t.Fatalf("expected 2 running, got len=%d total=%d", res.Len(), res.Total())
		}
	})

	t.Run("update_status_and_terminal_conflict", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		created, err := repo.Create(ctx, newExperiment(1))
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		updated, err := repo.UpdateStatus(ctx, created.ExperimentID, model.StatusAccepted, model.StatusSucceeded)
		if err != nil || updated.Status != model.StatusSucceeded {
			t.Fatalf("update: %v %+v", err, updated)
		}
		if _, err := repo.UpdateStatus(ctx, created.ExperimentID, model.StatusSucceeded, model.StatusRunning); err != repository.ErrConflict {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if _, err := repo.UpdateStatus(ctx, "experiment-missing", model.StatusAccepted, model.StatusRunning); err != repository.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update_status_stale_read_conflict", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		created, err := repo.Create(ctx, newExperiment(1))
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		// two writers both read Accepted; the first one wins
		if _, err := repo.UpdateStatus(ctx, created.ExperimentID, model.StatusAccepted, model.StatusRunning); err != nil {
			t.Fatalf("first writer: %v", err)
		}
		if _, err := repo.UpdateStatus(ctx, created.ExperimentID, model.StatusAccepted, model.StatusCreated); err != repository.ErrConflict {
			t.Fatalf("expected ErrConflict for stale writer, got %v", err)
		}
		got, err := repo.GetByExperimentID(ctx, created.ExperimentID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != model.StatusRunning {
			t.Fatalf("status moved backwards to %q", got.Status)
		}
	})

	t.Run("list_rejects_offset_overflow", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		_, err := repo.List(context.Background(), model.ListFilter{}, pagination.Request{PageNum: math.MaxInt / 5, PageSize: 10})
		if !errors.Is(err, pagination.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		created, err := repo.Create(ctx, newExperiment(1))
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := repo.Delete(ctx, created.ExperimentID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := repo.Delete(ctx, created.ExperimentID); err != repository.ErrNotFound {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func RunTxManagerContract(t *testing.T, makeTx TxFactory) {
	t.Helper()

	t.Run("rollback_on_error", func(t *testing.T) {
		tx, repo, cleanup := makeTx(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := repo.Create(ctx, newExperiment(1)); err != nil {
				return err
			}
			return boom
		})
		if err != boom {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.GetByExperimentID(ctx, newExperiment(1).ExperimentID); err != repository.ErrNotFound {
			t.Fatalf("expected rollback, got %v", err)
		}
	})

	t.Run("commit_on_success", func(t *testing.T) {
		tx, repo, cleanup := makeTx(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := repo.Create(ctx, newExperiment(2))
			return err
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
		if _, err := repo.GetByExperimentID(ctx, newExperiment(2).ExperimentID); err != nil {
			t.Fatalf("expected committed row, got %v", err)
		}
	})
}
