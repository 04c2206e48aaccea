package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/repo/sqlite"
	"github.com/shaiso/Reel/internal/tasks"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// Полный цикл на настоящем хранилище: падение, resume, завершение.
func TestOrchestrator_SQLiteStore(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	fail := true
	shout := &stepHandler{typ: "shout", fn: func(_ context.Context, req *tasks.Request) (map[string]any, error) {
		req.Progress(50)
		if fail {
			fail = false
			return nil, context.DeadlineExceeded
		}
		return map[string]any{"loud": "HELLO"}, nil
	}}

	registry := tasks.NewRegistry()
	registry.Register(writeHandler())
	registry.Register(shout)
	catalog, err := workflow.NewCatalog(testFields, registry, twoSteps()...)
	if err != nil {
		t.Fatal(err)
	}

	dispatcher := &recordingDispatcher{}
	orch := New(Config{
		Jobs:       store,
		Tasks:      store,
		Workflows:  catalog,
		Dispatcher: dispatcher,
		Logger:     telemetry.Discard(),
	})
	ctx := context.Background()

	view, err := orch.StartJob(ctx, StartRequest{WorkflowType: "pair", UserID: "u1", Input: map[string]any{"prompt": "db"}})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	id := view.Job.ID

	if err := orch.Advance(ctx, id); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	status, _ := orch.GetStatus(ctx, id)
	if status.Job.Status != domain.JobStatusFailed || status.Tasks[1].Error != status.Job.Error {
		t.Fatalf("after failure: job=%+v task=%+v", status.Job, status.Tasks[1])
	}
	if status.Tasks[1].Progress != 50 {
		t.Errorf("progress = %d, want 50", status.Tasks[1].Progress)
	}

	if _, err := orch.ResumeJob(ctx, id, "u1"); err != nil {
		t.Fatalf("ResumeJob: %v", err)
	}
	if err := orch.Advance(ctx, id); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	status, _ = orch.GetStatus(ctx, id)
	if status.Job.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s, want completed", status.Job.Status)
	}
	if status.Tasks[0].ResultData["text"] != "hello db" || status.Tasks[1].ResultData["loud"] != "HELLO" {
		t.Errorf("results = %v / %v", status.Tasks[0].ResultData, status.Tasks[1].ResultData)
	}
	if status.Job.StartedAt == nil || status.Job.CompletedAt == nil {
		t.Error("timestamps not persisted")
	}

	ok, err := orch.MarkConsumed(ctx, id, "u1")
	if err != nil || !ok {
		t.Fatalf("MarkConsumed: ok=%v err=%v", ok, err)
	}
}
