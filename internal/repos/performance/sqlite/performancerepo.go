// Package sqlite provides a performance repository that stores its data inside a SQLite database
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

const (
	performanceFields = `id, title, description, cover_image, start_date, end_date, tagged_users, created_by,
        drive_folder_id, created_at, updated_at`
)

// userIDList stores the tagged users as JSON array inside a text column
type userIDList []string

// Value implements driver.Valuer
func (l userIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *userIDList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = userIDList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("Scan: Cannot read tagged users from %T", src)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

// performanceRow is a single row of the performances table
type performanceRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Description   sql.NullString `db:"description"`
	CoverImage    sql.NullString `db:"cover_image"`
	StartDate     sql.NullString `db:"start_date"`
	EndDate       sql.NullString `db:"end_date"`
	TaggedUsers   userIDList     `db:"tagged_users"`
	CreatedBy     string         `db:"created_by"`
	DriveFolderID sql.NullString `db:"drive_folder_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *performanceRow) model() *models.Performance {
	return &models.Performance{
		ID:            r.ID,
		Title:         r.Title,
		Description:   fromNull(r.Description),
		CoverImage:    fromNull(r.CoverImage),
		StartDate:     fromNull(r.StartDate),
		EndDate:       fromNull(r.EndDate),
		TaggedUsers:   models.UserIDs(r.TaggedUsers),
		CreatedBy:     r.CreatedBy,
		DriveFolderID: fromNull(r.DriveFolderID),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// PerformanceRepo is a repository that stores performances inside a SQLite database
type PerformanceRepo struct {
	db      *sqlx.DB
	logger  *logrus.Entry
	nowFunc func() time.Time
}

// New creates a new performance repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *PerformanceRepo {
	return &PerformanceRepo{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// withClock replaces the clock used for the creation and update timestamps
func (r *PerformanceRepo) withClock(now func() time.Time) *PerformanceRepo {
	if now != nil {
		r.nowFunc = now
	}
	return r
}

func (r *PerformanceRepo) now() time.Time {
	return r.nowFunc().UTC()
}

// List returns all performances, newest first
func (r *PerformanceRepo) List(ctx context.Context) ([]models.Performance, error) {
	r.logger.Debug("Listing performances")
	query := fmt.Sprintf("SELECT %s FROM performances ORDER BY created_at DESC, rowid DESC", performanceFields)
	var rows []performanceRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "List: Failed to query performances")
	}
	ret := make([]models.Performance, 0, len(rows))
	for i := range rows {
		ret = append(ret, *rows[i].model())
	}
	return ret, nil
}

// GetByID returns the performance with the given ID
func (r *PerformanceRepo) GetByID(ctx context.Context, id string) (*models.Performance, error) {
	r.logger.WithField(log.FldID, id).Debug("Loading performance")
	return r.get(ctx, r.db, id)
}

func (r *PerformanceRepo) get(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Performance, error) {
	query := fmt.Sprintf("SELECT %s FROM performances WHERE id = ?", performanceFields)
	var row performanceRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrapf(err, "GetByID: Failed to load performance '%s'", id)
	}
	return row.model(), nil
}

// Create stores a new performance and fills in its ID and timestamps
func (r *PerformanceRepo) Create(ctx context.Context, p *models.Performance) error {
	r.logger.WithField(log.FldTitle, p.Title).Debug("Adding new performance")
	now := r.now()
	row := performanceRow{
		ID:            uuid.NewString(),
		Title:         p.Title,
		Description:   toNull(p.Description),
		CoverImage:    toNull(p.CoverImage),
		StartDate:     toNull(p.StartDate),
		EndDate:       toNull(p.EndDate),
		TaggedUsers:   userIDList(models.UserIDs(p.TaggedUsers)),
		CreatedBy:     p.CreatedBy,
		DriveFolderID: toNull(p.DriveFolderID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	query := `INSERT INTO performances(` + performanceFields + `) VALUES(
        :id, :title, :description, :cover_image, :start_date, :end_date, :tagged_users, :created_by,
        :drive_folder_id, :created_at, :updated_at
    )`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		return errors.Wrap(err, "Create: Failed to insert performance")
	}
	p.ID = row.ID
	p.TaggedUsers = []string(row.TaggedUsers)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update writes the fields set in the patch and returns the updated performance
func (r *PerformanceRepo) Update(ctx context.Context, patch *models.PerformancePatch) (*models.Performance, error) {
	r.logger.WithField(log.FldID, patch.ID).Debug("Updating performance")
	if patch.Empty() {
		return r.get(ctx, r.db, patch.ID)
	}
	var (
		columns []string
		args    []interface{}
	)
	set := func(column string, value interface{}) {
		columns = append(columns, column+" = ?")
		args = append(args, value)
	}
	if patch.Title.Set && patch.Title.Value != nil {
		set("title", *patch.Title.Value)
	}
	if patch.Description.Set {
		set("description", toNull(patch.Description.Value))
	}
	if patch.CoverImage.Set {
		set("cover_image", toNull(patch.CoverImage.Value))
	}
	if patch.StartDate.Set {
		set("start_date", toNull(patch.StartDate.Value))
	}
	if patch.EndDate.Set {
		set("end_date", toNull(patch.EndDate.Value))
	}
	if patch.TaggedUsers != nil {
		set("tagged_users", userIDList(models.UserIDs(*patch.TaggedUsers)))
	}
	set("updated_at", r.now())
	args = append(args, patch.ID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Update: Failed to start transaction")
	}
	query := fmt.Sprintf("UPDATE performances SET %s WHERE id = ?", strings.Join(columns, ", "))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, repos.DoRollback(tx, errors.Wrap(err, "Update: Failed to update performance"))
	}
	if num, err := res.RowsAffected(); err != nil || num == 0 {
		if err != nil {
			return nil, repos.DoRollback(tx, errors.Wrap(err, "Update: Failed to get number of updated rows"))
		}
		return nil, repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	p, err := r.get(ctx, tx, patch.ID)
	if err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "Update: Failed to commit transaction")
	}
	return p, nil
}

// Delete removes the performance with the given ID
func (r *PerformanceRepo) Delete(ctx context.Context, id string) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting performance")
	res, err := r.db.ExecContext(ctx, "DELETE FROM performances WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "Delete: Failed to delete performance '%s'", id)
	}
	if num, err := res.RowsAffected(); err != nil || num == 0 {
		if err != nil {
			return err
		}
		return repos.ErrEntityNotExisting
	}
	return nil
}
