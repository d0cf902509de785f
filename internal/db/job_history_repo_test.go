package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trackdesk/internal/types"
)

// Note: mockDBTX and mockRow are defined in task_repo_test.go and
// slaconfig_repo_test.go and reused here.

func TestJobHistoryRepository_Start_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 42
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			return len(args) == 2 &&
				args[0] == string(types.JobScanSLA) &&
				args[1] == string(types.JobStatusRunning)
		}),
	).Return(row)

	id, err := repo.Start(context.Background(), types.JobScanSLA)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	db.AssertExpectations(t)
}

func TestJobHistoryRepository_Start_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.Start(context.Background(), types.JobScanSLA)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

func TestJobHistoryRepository_Finish_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			if len(args) != 4 {
				return false
			}
			// A clean run records a NULL error message.
			errMsg, ok := args[3].(*string)
			return args[0] == int64(42) &&
				args[1] == string(types.JobStatusSuccess) &&
				args[2] == 7 &&
				ok && errMsg == nil
		}),
	).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.Finish(context.Background(), 42, types.JobStatusSuccess, 7, nil)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestJobHistoryRepository_Finish_WithJobError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			if len(args) != 4 {
				return false
			}
			errMsg, ok := args[3].(*string)
			return args[1] == string(types.JobStatusFailed) &&
				ok && errMsg != nil && *errMsg == "database down"
		}),
	).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.Finish(context.Background(), 42, types.JobStatusFailed, 0, errors.New("database down"))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestJobHistoryRepository_Finish_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewJobHistoryRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Finish(context.Background(), 42, types.JobStatusSuccess, 1, nil)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}
