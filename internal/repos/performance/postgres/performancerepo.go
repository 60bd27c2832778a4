// Package postgres provides a performance repository that stores its data inside a PostgreSQL database using pgx
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

const (
	performanceFields = `id::text, title, description, cover_image, start_date, end_date, tagged_users, created_by,
        drive_folder_id, created_at, updated_at`
)

// DBTX is the part of a pgx connection the repository needs. It is satisfied by *pgxpool.Pool, pgx.Tx and the
// pgxmock pool used in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PerformanceRepo is a repository that stores performances inside a PostgreSQL database
type PerformanceRepo struct {
	db      DBTX
	logger  *logrus.Entry
	nowFunc func() time.Time
}

// New creates a new performance repository instance working on the given connection
func New(db DBTX, logger *logrus.Entry) *PerformanceRepo {
	return &PerformanceRepo{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (r *PerformanceRepo) withClock(now func() time.Time) {
	if now != nil {
		r.nowFunc = now
	}
}

func (r *PerformanceRepo) now() time.Time {
	return r.nowFunc().UTC()
}

func scanPerformance(row pgx.Row) (*models.Performance, error) {
	var (
		p     models.Performance
		users []string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.CoverImage, &p.StartDate, &p.EndDate, &users, &p.CreatedBy,
		&p.DriveFolderID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TaggedUsers = models.UserIDs(users)
	return &p, nil
}

// validID checks if the given ID can be a row ID at all - the column is of type UUID and PostgreSQL would reject
// the query otherwise
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// List returns all performances, newest first
func (r *PerformanceRepo) List(ctx context.Context) ([]models.Performance, error) {
	r.logger.Debug("Listing performances")
	query := fmt.Sprintf("SELECT %s FROM performances ORDER BY created_at DESC, id DESC", performanceFields)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "List: Failed to query performances")
	}
	defer rows.Close()
	ret := []models.Performance{}
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, errors.Wrap(err, "List: Failed to read performance")
		}
		ret = append(ret, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "List: Failed to iterate performances")
	}
	return ret, nil
}

// GetByID returns the performance with the given ID
func (r *PerformanceRepo) GetByID(ctx context.Context, id string) (*models.Performance, error) {
	r.logger.WithField(log.FldID, id).Debug("Loading performance")
	if !validID(id) {
		return nil, repos.ErrEntityNotExisting
	}
	query := fmt.Sprintf("SELECT %s FROM performances WHERE id = $1", performanceFields)
	p, err := scanPerformance(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrapf(err, "GetByID: Failed to load performance '%s'", id)
	}
	return p, nil
}

// Create stores a new performance and fills in its ID and timestamps. The ID is generated by the database.
func (r *PerformanceRepo) Create(ctx context.Context, p *models.Performance) error {
	r.logger.WithField(log.FldTitle, p.Title).Debug("Adding new performance")
	now := r.now()
	users := models.UserIDs(p.TaggedUsers)
	query := `INSERT INTO performances(title, description, cover_image, start_date, end_date, tagged_users, created_by,
        drive_folder_id, created_at, updated_at) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id::text`
	var id string
	err := r.db.QueryRow(ctx, query,
		p.Title, p.Description, p.CoverImage, p.StartDate, p.EndDate, users, p.CreatedBy, p.DriveFolderID, now, now,
	).Scan(&id)
	if err != nil {
		return errors.Wrap(err, "Create: Failed to insert performance")
	}
	p.ID = id
	p.TaggedUsers = users
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update writes the fields set in the patch and returns the updated performance
func (r *PerformanceRepo) Update(ctx context.Context, patch *models.PerformancePatch) (*models.Performance, error) {
	r.logger.WithField(log.FldID, patch.ID).Debug("Updating performance")
	if !validID(patch.ID) {
		return nil, repos.ErrEntityNotExisting
	}
	if patch.Empty() {
		return r.GetByID(ctx, patch.ID)
	}
	var (
		columns []string
		args    []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		columns = append(columns, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title.Set && patch.Title.Value != nil {
		set("title", *patch.Title.Value)
	}
	if patch.Description.Set {
		set("description", patch.Description.Value)
	}
	if patch.CoverImage.Set {
		set("cover_image", patch.CoverImage.Value)
	}
	if patch.StartDate.Set {
		set("start_date", patch.StartDate.Value)
	}
	if patch.EndDate.Set {
		set("end_date", patch.EndDate.Value)
	}
	if patch.TaggedUsers != nil {
		set("tagged_users", models.UserIDs(*patch.TaggedUsers))
	}
	set("updated_at", r.now())
	args = append(args, patch.ID)
	query := fmt.Sprintf(
		"UPDATE performances SET %s WHERE id = $%d RETURNING %s",
		strings.Join(columns, ", "), len(args), performanceFields,
	)
	p, err := scanPerformance(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrapf(err, "Update: Failed to update performance '%s'", patch.ID)
	}
	return p, nil
}

// Delete removes the performance with the given ID
func (r *PerformanceRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting performance")
	if !validID(id) {
		return repos.ErrEntityNotExisting
	}
	tag, err := r.db.Exec(ctx, "DELETE FROM performances WHERE id = $1", id)
	if err != nil {
		return errors.Wrapf(err, "Delete: Failed to delete performance '%s'", id)
	}
	if tag.RowsAffected() == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}
