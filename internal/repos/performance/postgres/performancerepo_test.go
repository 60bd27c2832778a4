package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

const testID = "11111111-1111-1111-1111-111111111111"

var columns = []string{
	"id", "title", "description", "cover_image", "start_date", "end_date", "tagged_users", "created_by",
	"drive_folder_id", "created_at", "updated_at",
}

func ptr[T any](t T) *T {
	return &t
}

func newMockRepo(t *testing.T) (*PerformanceRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.MatchExpectationsInOrder(true)
	logger, _ := test.NewNullLogger()
	return New(mock, logrus.NewEntry(logger)), mock
}

func TestGetByIDWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

	mock.ExpectQuery(`^SELECT id::text, title, .* FROM performances WHERE id = \$1$`).
		WithArgs(testID).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			testID, "Winter Concert", ptr("Annual show"), (*string)(nil), (*string)(nil), (*string)(nil),
			[]string{"u1", "u2"}, "u1", ptr("fld_1"), fixed, fixed,
		))

	p, err := repo.GetByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, testID, p.ID)
	assert.Equal(t, "Winter Concert", p.Title)
	assert.Equal(t, ptr("Annual show"), p.Description)
	assert.Nil(t, p.CoverImage)
	assert.Equal(t, []string{"u1", "u2"}, p.TaggedUsers)
	assert.Equal(t, ptr("fld_1"), p.DriveFolderID)
	assert.Equal(t, fixed, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFoundWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`^SELECT .* FROM performances WHERE id = \$1$`).
		WithArgs(testID).
		WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByID(context.Background(), testID)
	assert.Nil(t, p)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidIDDoesNotQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	p, err := repo.GetByID(ctx, "missing-id")
	assert.Nil(t, p)
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	p, err = repo.Update(ctx, &models.PerformancePatch{ID: "missing-id", Title: models.Some("X")})
	assert.Nil(t, p)
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(ctx, "missing-id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM performances ORDER BY created_at DESC, id DESC")).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(
				"22222222-2222-2222-2222-222222222222", "Newer", (*string)(nil), (*string)(nil), (*string)(nil),
				(*string)(nil), []string{}, "u1", (*string)(nil), newer, newer,
			).
			AddRow(
				testID, "Older", (*string)(nil), (*string)(nil), (*string)(nil),
				(*string)(nil), []string{"u2"}, "u2", ptr("fld_1"), older, older,
			))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Newer", list[0].Title)
	assert.NotNil(t, list[0].TaggedUsers)
	assert.Equal(t, "Older", list[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmptyWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`^SELECT .* FROM performances ORDER BY`).WillReturnRows(pgxmock.NewRows(columns))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	repo.withClock(func() time.Time { return fixed })

	p := &models.Performance{
		Title:         "Winter Concert",
		Description:   ptr("Annual show"),
		CreatedBy:     "u1",
		DriveFolderID: ptr("fld_1"),
	}
	mock.ExpectQuery(`^INSERT INTO performances\(title, .*RETURNING id::text$`).
		WithArgs(
			"Winter Concert", ptr("Annual show"), (*string)(nil), (*string)(nil), (*string)(nil), []string{}, "u1",
			ptr("fld_1"), fixed, fixed,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testID))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, testID, p.ID)
	assert.Equal(t, fixed, p.CreatedAt)
	assert.Equal(t, fixed, p.UpdatedAt)
	assert.NotNil(t, p.TaggedUsers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	updated := created.Add(time.Hour)
	repo.withClock(func() time.Time { return updated })

	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE performances SET title = $1, cover_image = $2, updated_at = $3 WHERE id = $4 RETURNING id::text",
	)).
		WithArgs("Spring Concert", (*string)(nil), updated, testID).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			testID, "Spring Concert", ptr("Annual show"), (*string)(nil), (*string)(nil), (*string)(nil),
			[]string{"u1"}, "u1", ptr("fld_1"), created, updated,
		))

	p, err := repo.Update(context.Background(), &models.PerformancePatch{
		ID:         testID,
		Title:      models.Some("Spring Concert"),
		CoverImage: models.Null(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring Concert", p.Title)
	assert.Equal(t, updated, p.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotFoundWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`^UPDATE performances SET`).
		WithArgs("X", pgxmock.AnyArg(), testID).
		WillReturnError(pgx.ErrNoRows)

	p, err := repo.Update(context.Background(), &models.PerformancePatch{ID: testID, Title: models.Some("X")})
	assert.Nil(t, p)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithMockPool(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performances WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performances WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(ctx, testID))
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(ctx, testID))
	require.NoError(t, mock.ExpectationsWereMet())
}
