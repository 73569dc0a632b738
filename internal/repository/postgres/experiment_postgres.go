package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
	"github.com/maxviazov/experiment-service/internal/repository"
)

const experimentColumns = `id, experiment_id, name, namespace, framework, cmd, env_vars, status, created_at, updated_at`

type experimentRepository struct{ pool *pgxpool.Pool }

func NewExperimentRepository(pool *pgxpool.Pool) repository.ExperimentRepository {
	return &experimentRepository{pool: pool}
}

func scanExperiment(row pgx.Row, extra ...any) (model.Experiment, error) {
	var e model.Experiment
	dest := []any{&e.ID, &e.ExperimentID, &e.Name, &e.Namespace, &e.Framework, &e.Cmd, &e.EnvVars, &e.Status, &e.CreatedAt, &e.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Experiment{}, err
	}
	return e, nil
}

func (r *experimentRepository) Create(ctx context.Context, e model.Experiment) (model.Experiment, error) {
	if err := ensurePool(r.pool); err != nil {
		return model.Experiment{}, err
	}
	env := e.EnvVars
	if env == nil {
		env = map[string]string{}
	}
	exec := getQ(ctx, r.pool)
	row := exec.QueryRow(ctx,
		`INSERT INTO experiments (experiment_id, name, namespace, framework, cmd, env_vars, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+experimentColumns,
		e.ExperimentID, e.Name, e.Namespace, e.Framework, e.Cmd, env, e.Status,
	)
	out, err := scanExperiment(row)
	if err != nil {
		return model.Experiment{}, repository.MapPgError(err)
	}
	return out, nil
}

func (r *experimentRepository) GetByExperimentID(ctx context.Context, experimentID string) (model.Experiment, error) {
	if err := ensurePool(r.pool); err != nil {
		return model.Experiment{}, err
	}
	exec := getQ(ctx, r.pool)
	row := exec.QueryRow(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE experiment_id = $1`, experimentID,
	)
	out, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Experiment{}, repository.ErrNotFound
		}
		return model.Experiment{}, repository.MapPgError(err)
	}
	return out, nil
}

// buildWhere turns the filter into a WHERE clause with positional args starting at $1.
func buildWhere(f model.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Namespace != "" {
		args = append(args, f.Namespace)
		conds = append(conds, fmt.Sprintf("namespace = $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, "%"+escapeLike(f.Name)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// List pages with LIMIT/OFFSET and takes the total from COUNT(*) OVER(). A window past
// the end yields no rows, so the total then comes from a separate count.
func (r *experimentRepository) List(ctx context.Context, f model.ListFilter, p pagination.Request) (pagination.PageResult[model.Experiment], error) {
	if err := ensurePool(r.pool); err != nil {
		return pagination.PageResult[model.Experiment]{}, err
	}
	p = p.Normalize(pagination.DefaultPageSize, pagination.MaxPageSize)
	if err := p.Validate(); err != nil {
		return pagination.PageResult[model.Experiment]{}, err
	}
	where, args := buildWhere(f)
	n := len(args)
	exec := getQ(ctx, r.pool)

	rows, err := exec.Query(ctx,
		`SELECT `+experimentColumns+`, COUNT(*) OVER() AS total
		 FROM experiments`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $`+fmt.Sprint(n+1)+` OFFSET $`+fmt.Sprint(n+2),
		append(args, p.Limit(), p.Offset())...,
	)
	if err != nil {
		return pagination.PageResult[model.Experiment]{}, repository.MapPgError(err)
	}
	defer rows.Close()

	items := make([]model.Experiment, 0, p.Limit())
	var total int64
	for rows.Next() {
		e, err := scanExperiment(rows, &total)
		if err != nil {
			return pagination.PageResult[model.Experiment]{}, repository.MapPgError(err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return pagination.PageResult[model.Experiment]{}, repository.MapPgError(err)
	}

	if len(items) == 0 {
		if p.Offset() == 0 {
			return pagination.Empty[model.Experiment](p.PageNum, p.PageSize), nil
		}
		if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM experiments`+where, args...).Scan(&total); err != nil {
			return pagination.PageResult[model.Experiment]{}, repository.MapPgError(err)
		}
	}
	return pagination.New(p.PageNum, p.PageSize, total, items)
}

// updateStatusSQL is a compare-and-set: the row moves only if it still holds the status the
// caller read. A concurrent writer re-checks the WHERE against the committed row and misses.
const updateStatusSQL = `UPDATE experiments SET status = $3, updated_at = now()
	 WHERE experiment_id = $1 AND status = $2 AND status NOT IN ('Succeeded', 'Failed')
	 RETURNING ` + experimentColumns

// UpdateStatus only touches experiments that haven't finished and still hold `from`;
// anything else yields ErrConflict.
func (r *experimentRepository) UpdateStatus(ctx context.Context, experimentID, from, to string) (model.Experiment, error) {
	if err := ensurePool(r.pool); err != nil {
		return model.Experiment{}, err
	}
	exec := getQ(ctx, r.pool)
	row := exec.QueryRow(ctx, updateStatusSQL, experimentID, from, to)
	out, err := scanExperiment(row)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Experiment{}, repository.MapPgError(err)
	}
	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM experiments WHERE experiment_id = $1)`, experimentID).Scan(&exists); err != nil {
		return model.Experiment{}, repository.MapPgError(err)
	}
	if exists {
		return model.Experiment{}, repository.ErrConflict
	}
	return model.Experiment{}, repository.ErrNotFound
}

func (r *experimentRepository) Delete(ctx context.Context, experimentID string) error {
	if err := ensurePool(r.pool); err != nil {
		return err
	}
	exec := getQ(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM experiments WHERE experiment_id = $1`, experimentID)
	if err != nil {
		return repository.MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ExperimentRepository = (*experimentRepository)(nil)
