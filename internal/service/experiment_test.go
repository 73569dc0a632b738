package service_test

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/repository"
	"github.com/maxviazov/experiment-service/internal/service"
)

type fakeExperimentRepo struct {
	nextID     int64
	items      map[string]model.Experiment
	createErr  error
	lastPage   pagination.Request // capture last page for pagination normalization tests
	lastFilter model.ListFilter
	listCalls  int
	// beforeUpdate runs ahead of the status compare-and-set, standing in for a concurrent writer.
	beforeUpdate func()
}

func newFakeExperimentRepo() *fakeExperimentRepo {
	return &fakeExperimentRepo{nextID: 1, items: map[string]model.Experiment{}}
}

func (f *fakeExperimentRepo) Create(_ context.Context, e model.Experiment) (model.Experiment, error) {
	if f.createErr != nil {
		return model.Experiment{}, f.createErr
	}
	e.ID = f.nextID
	f.nextID++
	f.items[e.ExperimentID] = e
	return e, nil
}

func (f *fakeExperimentRepo) GetByExperimentID(_ context.Context, id string) (model.Experiment, error) {
	it, ok := f.items[id]
	if !ok {
		return model.Experiment{}, repository.ErrNotFound
	}
	return it, nil
}

func (f *fakeExperimentRepo) List(_ context.Context, fl model.ListFilter, p pagination.Request) (pagination.PageResult[model.Experiment], error) {
	f.listCalls++
	f.lastPage = p
	f.lastFilter = fl
	var all []model.Experiment
	for _, v := range f.items {
		if fl.Status == "" || v.Status == fl.Status {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	lo := min(p.Offset(), len(all))
	hi := min(lo+p.Limit(), len(all))
	return pagination.New(p.PageNum, p.PageSize, int64(len(all)), all[lo:hi])
}

func (f *fakeExperimentRepo) UpdateStatus(_ context.Context, id, from, to string) (model.Experiment, error) {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	it, ok := f.items[id]
	if !ok {
		return model.Experiment{}, repository.ErrNotFound
	}
	if it.Status != from || it.Status == model.StatusSucceeded || it.Status == model.StatusFailed {
		return model.Experiment{}, repository.ErrConflict
	}
	it.Status = to
	f.items[id] = it
	return it, nil
}

func (f *fakeExperimentRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

var _ repository.ExperimentRepository = (*fakeExperimentRepo)(nil)

// passTx runs fn inline; transactional semantics are covered by the Postgres contract suite.
type passTx struct{ calls int }

func (p *passTx) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	p.calls++
	return fn(ctx)
}

func newSvc(repo *fakeExperimentRepo) (service.ExperimentService, *passTx) {
	tx := &passTx{}
	return service.NewExperimentService(repo, tx, zerolog.New(io.Discard)), tx
}

func hasField(err error, field string) bool {
	for _, f := range service.FieldErrors(err) {
		if f.Field == field {
			return true
		}
	}
	return false
}

func TestExperimentService_CreateExperiment_Validation(t *testing.T) {
	svc, _ := newSvc(newFakeExperimentRepo())

	cases := []struct {
		name      string
		in        service.CreateExperimentInput
		wantField string
	}{
		{"empty name", service.CreateExperimentInput{Name: "  ", Framework: "TensorFlow"}, "name"},
		{"uppercase name", service.CreateExperimentInput{Name: "Mnist", Framework: "TensorFlow"}, "name"},
		{"too long name", service.CreateExperimentInput{Name: strings.Repeat("a", 64), Framework: "TensorFlow"}, "name"},
		{"bad namespace", service.CreateExperimentInput{Name: "mnist", Namespace: "Team_A", Framework: "TensorFlow"}, "namespace"},
		{"unknown framework", service.CreateExperimentInput{Name: "mnist", Framework: "Caffe"}, "framework"},
		{"bad env key", service.CreateExperimentInput{Name: "mnist", Framework: "PyTorch", EnvVars: map[string]string{"1BAD": "x"}}, "envVars.1BAD"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateExperiment(context.Background(), tc.in)
			require.ErrorIs(t, err, service.ErrInvalidInput)
			assert.True(t, hasField(err, tc.wantField), "expected field error for %s, got %+v", tc.wantField, service.FieldErrors(err))
		})
	}
}

func TestExperimentService_CreateExperiment_OK(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)

	got, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{
		Name:      " mnist-example ",
		Framework: "tensorflow",
		Cmd:       "python /var/tf_mnist/mnist_with_summaries.py",
		EnvVars:   map[string]string{"ENV_1": "ENV1"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.ExperimentID, "experiment-"))
	assert.Equal(t, "mnist-example", got.Name)
	assert.Equal(t, "default", got.Namespace)
	assert.Equal(t, model.FrameworkTensorFlow, got.Framework)
	assert.Equal(t, model.StatusAccepted, got.Status)
	assert.Contains(t, repo.items, got.ExperimentID)
}

func TestExperimentService_CreateExperiment_DuplicatePropagates(t *testing.T) {
	repo := newFakeExperimentRepo()
	repo.createErr = repository.ErrAlreadyExists
	svc, _ := newSvc(repo)
	_, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: "mnist", Framework: "PyTorch"})
	assert.Equal(t, repository.ErrAlreadyExists, err)
}

func TestExperimentService_GetExperiment(t *testing.T) {
	svc, _ := newSvc(newFakeExperimentRepo())

	_, err := svc.GetExperiment(context.Background(), " ")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.GetExperiment(context.Background(), "experiment-nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExperimentService_ListExperiments_PaginationNormalization(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)
	for _, n := range []string{"a1", "a2", "a3"} {
		_, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: n, Framework: "XGBoost"})
		require.NoError(t, err)
	}

	res, err := svc.ListExperiments(context.Background(), model.ListFilter{}, pagination.Request{PageNum: -1, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, pagination.Request{PageNum: 1, PageSize: pagination.MaxPageSize}, repo.lastPage)
	assert.Equal(t, int64(3), res.Total())
	assert.Equal(t, 3, res.Len())
	assert.Equal(t, 1, res.PageNum())
}

func TestExperimentService_ListExperiments_PartialLastPage(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)
	for i := 0; i < 25; i++ {
		_, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: "exp-" + string(rune('a'+i)), Framework: "PyTorch"})
		require.NoError(t, err)
	}

	res, err := svc.ListExperiments(context.Background(), model.ListFilter{}, pagination.Request{PageNum: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageNum())
	assert.Equal(t, 10, res.PageSize())
	assert.Equal(t, int64(25), res.Total())
	assert.Equal(t, 5, res.Len())
	assert.Equal(t, "exp-u", res.List()[0].Name)
}

func TestExperimentService_ListExperiments_StatusFilter(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)

	_, err := svc.ListExperiments(context.Background(), model.ListFilter{Status: "running"}, pagination.Request{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, repo.lastFilter.Status)

	_, err = svc.ListExperiments(context.Background(), model.ListFilter{Status: "Paused"}, pagination.Request{})
	require.ErrorIs(t, err, service.ErrInvalidInput)
	assert.True(t, hasField(err, "status"))
}

func TestExperimentService_UpdateStatus(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, tx := newSvc(repo)
	created, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: "mnist", Framework: "TensorFlow"})
	require.NoError(t, err)

	got, err := svc.UpdateStatus(context.Background(), created.ExperimentID, "running")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, 1, tx.calls)

	_, err = svc.UpdateStatus(context.Background(), created.ExperimentID, model.StatusCreated)
	assert.ErrorIs(t, err, repository.ErrConflict, "status must not move backwards")

	_, err = svc.UpdateStatus(context.Background(), created.ExperimentID, model.StatusFailed)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), created.ExperimentID, model.StatusSucceeded)
	assert.ErrorIs(t, err, repository.ErrConflict, "finished experiments are frozen")

	_, err = svc.UpdateStatus(context.Background(), "experiment-nope", model.StatusRunning)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.UpdateStatus(context.Background(), created.ExperimentID, "Paused")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestExperimentService_UpdateStatus_ConcurrentWriterWins(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)
	created, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: "mnist", Framework: "TensorFlow"})
	require.NoError(t, err)

	// Both writers read Accepted; the other one commits Running first.
	repo.beforeUpdate = func() {
		it := repo.items[created.ExperimentID]
		it.Status = model.StatusRunning
		repo.items[created.ExperimentID] = it
		repo.beforeUpdate = nil
	}
	_, err = svc.UpdateStatus(context.Background(), created.ExperimentID, model.StatusCreated)
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := svc.GetExperiment(context.Background(), created.ExperimentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status, "status must not move backwards")
}

func TestExperimentService_ListExperiments_HugePageNum(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)

	_, err := svc.ListExperiments(context.Background(), model.ListFilter{}, pagination.Request{PageNum: math.MaxInt64 / 5, PageSize: 10})
	require.ErrorIs(t, err, pagination.ErrInvalidArgument)
	assert.Zero(t, repo.listCalls, "an out-of-range page never reaches storage")
}

func TestExperimentService_DeleteExperiment(t *testing.T) {
	repo := newFakeExperimentRepo()
	svc, _ := newSvc(repo)
	created, err := svc.CreateExperiment(context.Background(), service.CreateExperimentInput{Name: "mnist", Framework: "TensorFlow"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExperiment(context.Background(), created.ExperimentID))
	assert.ErrorIs(t, svc.DeleteExperiment(context.Background(), created.ExperimentID), repository.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteExperiment(context.Background(), ""), service.ErrInvalidInput)
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	assert.Nil(t, service.FieldErrors(nil))
	assert.Nil(t, service.FieldErrors(errors.New("plain")))
}
