package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trackdesk/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Rows for Query ---

// mockRows implements pgx.Rows for testing Query results. Nil cells scan
// into nil pointers, mirroring NULL columns.
type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		case *bool:
			*v = row[i].(bool)
		case *time.Time:
			*v = row[i].(time.Time)
		case *types.Priority:
			*v = row[i].(types.Priority)
		case *types.TaskStatus:
			*v = row[i].(types.TaskStatus)
		case *types.AssignmentStatus:
			*v = row[i].(types.AssignmentStatus)
		case **time.Time:
			if row[i] == nil {
				*v = nil
			} else {
				t := row[i].(time.Time)
				*v = &t
			}
		case **string:
			if row[i] == nil {
				*v = nil
			} else {
				s := row[i].(string)
				*v = &s
			}
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- TaskRepository Tests ---

func TestTaskRepository_ListSLATracked_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := created.Add(4 * time.Hour)

	rows := newMockRows([][]any{
		{"task-1", "renew TLS certificates", types.PriorityCritical, types.TaskStatusOpen,
			types.AssignmentActive, created, deadline,
			"user-1", "assignee@example.com", "user-2", "creator@example.com"},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	tasks, err := repo.ListSLATracked(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, types.PriorityCritical, task.Priority)
	require.NotNil(t, task.SLADeadline)
	assert.Equal(t, deadline, *task.SLADeadline)
	require.NotNil(t, task.AssigneeID)
	assert.Equal(t, "user-1", *task.AssigneeID)
	assert.Equal(t, "assignee@example.com", task.AssigneeEmail)
	assert.True(t, task.HasAssignee())
	db.AssertExpectations(t)
}

func TestTaskRepository_ListSLATracked_FiltersInQuery(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	// The eligibility criteria live in the SQL: open statuses, ACTIVE
	// assignment, non-null deadline. Verify the query and its bind args
	// carry all three, since no caller re-checks them.
	db.On("Query", mock.Anything,
		mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, "t.status = ANY($1)") &&
				strings.Contains(sql, "t.assignment_status = $2") &&
				strings.Contains(sql, "t.sla_deadline IS NOT NULL")
		}),
		mock.MatchedBy(func(args []any) bool {
			if len(args) != 2 {
				return false
			}
			statuses, ok := args[0].([]string)
			if !ok || len(statuses) != len(types.OpenStatuses) {
				return false
			}
			return args[1] == string(types.AssignmentActive)
		}),
	).Return(newMockRows(nil), nil)

	tasks, err := repo.ListSLATracked(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
	db.AssertExpectations(t)
}

func TestTaskRepository_ListSLATracked_MissingAssigneeRow(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// A dangling assignee reference comes back with a COALESCEd empty
	// email; the scanner skips such tasks via HasAssignee.
	rows := newMockRows([][]any{
		{"task-1", "orphaned task", types.PriorityHigh, types.TaskStatusOpen,
			types.AssignmentActive, created, created.Add(8 * time.Hour),
			nil, "", "user-2", "creator@example.com"},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	tasks, err := repo.ListSLATracked(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].AssigneeID)
	assert.Empty(t, tasks[0].AssigneeEmail)
	assert.False(t, tasks[0].HasAssignee())
	db.AssertExpectations(t)
}

func TestTaskRepository_ListSLATracked_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListSLATracked(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}

func TestTaskRepository_CreateTask_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := now.Add(8 * time.Hour)

	// Generated tasks always start open with an ACTIVE assignment.
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			return len(args) == 11 &&
				args[4] == string(types.TaskStatusOpen) &&
				args[5] == string(types.AssignmentActive) &&
				args[10] == "tpl-1"
		}),
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.CreateTask(context.Background(), types.NewTask{
		ID:          "task-1",
		Title:       "weekly compliance review",
		Priority:    types.PriorityHigh,
		CreatorID:   "user-2",
		CreatedAt:   now,
		SLADeadline: &deadline,
		TemplateID:  "tpl-1",
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTaskRepository_CreateTask_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewTaskRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("unique violation"))

	err := repo.CreateTask(context.Background(), types.NewTask{ID: "task-1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	db.AssertExpectations(t)
}
