package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackdesk/internal/sla"
	"trackdesk/internal/types"
)

// --- Mocks ---

type mockTemplateStore struct {
	due     []types.RecurringTemplate
	listErr error

	updateCalls  []updateGenCall
	updateErr    error
	disableCalls []disableCall
}

type updateGenCall struct {
	ID   string
	Next time.Time
}

type disableCall struct {
	ID     string
	Reason string
}

func (m *mockTemplateStore) ListDue(_ context.Context, _ time.Time, _ int) ([]types.RecurringTemplate, error) {
	return m.due, m.listErr
}

func (m *mockTemplateStore) UpdateNextGeneration(_ context.Context, id string, next time.Time) error {
	m.updateCalls = append(m.updateCalls, updateGenCall{ID: id, Next: next})
	return m.updateErr
}

func (m *mockTemplateStore) Disable(_ context.Context, id string, reason string) error {
	m.disableCalls = append(m.disableCalls, disableCall{ID: id, Reason: reason})
	return nil
}

type mockTaskWriter struct {
	created []types.NewTask
	err     error
}

func (m *mockTaskWriter) CreateTask(_ context.Context, task types.NewTask) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, task)
	return nil
}

func dailyTemplate(id string) types.RecurringTemplate {
	return types.RecurringTemplate{
		ID:        id,
		Title:     "weekly compliance review",
		Priority:  types.PriorityHigh,
		CronExpr:  "0 9 * * *",
		Enabled:   true,
		CreatorID: "user-2",
	}
}

func newTestGenerator(store *mockTemplateStore, writer *mockTaskWriter, cfg *types.SLAConfig) *RecurringGenerator {
	return NewRecurringGenerator(RecurringGeneratorConfig{
		Templates: store,
		Tasks:     writer,
		Deadlines: sla.NewCalculator(&mockConfigSource{cfg: cfg}, nil),
		Location:  time.UTC,
	})
}

// --- Tests ---

func TestRecurringGenerator_MaterializesDueTemplate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &mockTemplateStore{due: []types.RecurringTemplate{dailyTemplate("tpl-1")}}
	writer := &mockTaskWriter{}
	gen := newTestGenerator(store, writer, &types.SLAConfig{HighHours: intPtr(8)})

	generated, err := gen.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if generated != 1 {
		t.Fatalf("generated = %d, want 1", generated)
	}
	if len(writer.created) != 1 {
		t.Fatalf("expected 1 created task, got %d", len(writer.created))
	}

	task := writer.created[0]
	if task.ID == "" {
		t.Error("materialized task must get a fresh ID")
	}
	if task.Title != "weekly compliance review" || task.Priority != types.PriorityHigh {
		t.Errorf("template fields not copied: %+v", task)
	}
	if task.TemplateID != "tpl-1" {
		t.Errorf("TemplateID = %q, want tpl-1", task.TemplateID)
	}
	if !task.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want tick time %v", task.CreatedAt, now)
	}

	// High is tracked at 8h, so the deadline is stamped at creation.
	if task.SLADeadline == nil {
		t.Fatal("tracked priority must get an SLA deadline")
	}
	if want := now.Add(8 * time.Hour); !task.SLADeadline.Equal(want) {
		t.Errorf("SLADeadline = %v, want %v", task.SLADeadline, want)
	}
}

func TestRecurringGenerator_UntrackedPriorityGetsNilDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &mockTemplateStore{due: []types.RecurringTemplate{dailyTemplate("tpl-1")}}
	writer := &mockTaskWriter{}
	gen := newTestGenerator(store, writer, &types.SLAConfig{})

	if _, err := gen.Run(context.Background(), now); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(writer.created) != 1 {
		t.Fatalf("expected 1 created task, got %d", len(writer.created))
	}
	if writer.created[0].SLADeadline != nil {
		t.Error("untracked priority must materialize with a nil deadline")
	}
}

func TestRecurringGenerator_AdvancesSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store := &mockTemplateStore{due: []types.RecurringTemplate{dailyTemplate("tpl-1")}}
	gen := newTestGenerator(store, &mockTaskWriter{}, &types.SLAConfig{})

	if _, err := gen.Run(context.Background(), now); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.updateCalls) != 1 {
		t.Fatalf("expected 1 schedule update, got %d", len(store.updateCalls))
	}

	next := store.updateCalls[0].Next
	if !next.After(now) {
		t.Errorf("next generation %v must be strictly after now %v", next, now)
	}
	// "0 9 * * *" at 09:30 rolls to 09:00 the next day.
	if want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestRecurringGenerator_InvalidCronDisablesTemplate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	broken := dailyTemplate("tpl-bad")
	broken.CronExpr = "not a schedule"
	store := &mockTemplateStore{due: []types.RecurringTemplate{broken, dailyTemplate("tpl-ok")}}
	writer := &mockTaskWriter{}
	gen := newTestGenerator(store, writer, &types.SLAConfig{})

	generated, err := gen.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The broken template is disabled and skipped; the healthy one still
	// generates.
	if generated != 1 {
		t.Errorf("generated = %d, want 1", generated)
	}
	if len(store.disableCalls) != 1 || store.disableCalls[0].ID != "tpl-bad" {
		t.Fatalf("expected tpl-bad disabled, got %v", store.disableCalls)
	}
	if len(writer.created) != 1 || writer.created[0].TemplateID != "tpl-ok" {
		t.Errorf("only tpl-ok should materialize, got %v", writer.created)
	}
}

func TestRecurringGenerator_InsertFailureLeavesScheduleUntouched(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &mockTemplateStore{due: []types.RecurringTemplate{dailyTemplate("tpl-1")}}
	writer := &mockTaskWriter{err: errors.New("insert failed")}
	gen := newTestGenerator(store, writer, &types.SLAConfig{})

	generated, err := gen.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("per-template failures must not fail the run: %v", err)
	}
	if generated != 0 {
		t.Errorf("generated = %d, want 0", generated)
	}
	// next_generation_at untouched, so the template is due again next tick.
	if len(store.updateCalls) != 0 {
		t.Errorf("schedule must not advance after a failed insert, got %v", store.updateCalls)
	}
}

func TestRecurringGenerator_ListFailure(t *testing.T) {
	store := &mockTemplateStore{listErr: errors.New("query timeout")}
	gen := newTestGenerator(store, &mockTaskWriter{}, &types.SLAConfig{})

	if _, err := gen.Run(context.Background(), time.Now()); err == nil {
		t.Fatal("list failure must surface as a run error")
	}
}
