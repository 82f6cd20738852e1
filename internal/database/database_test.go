package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCheckpointLifecycle(t *testing.T) {
	ctx := context.Background()
	d := New()
	if err := d.Open(ctx, filepath.Join(t.TempDir(), "checkpoints.db")); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	done, err := d.Done(ctx, "run-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("batch must not be done before marking")
	}

	if err := d.MarkDone(ctx, "run-1", 0, 300); err != nil {
		t.Fatal(err)
	}
	if err := d.MarkDone(ctx, "run-1", 0, 300); err != nil {
		t.Fatal("second mark must be a no-op, got", err)
	}
	if err := d.MarkDone(ctx, "run-1", 1, 120); err != nil {
		t.Fatal(err)
	}

	done, err = d.Done(ctx, "run-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("marked batch must be done")
	}

	if n, err := d.CompletedBatches(ctx, "run-1"); err != nil || n != 2 {
		t.Fatalf("expected 2 completed batches, got %d err=%v", n, err)
	}
	if n, err := d.CompletedBatches(ctx, "run-2"); err != nil || n != 0 {
		t.Fatalf("runs must not share checkpoints, got %d err=%v", n, err)
	}

	if err := d.Reset(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if n, err := d.CompletedBatches(ctx, "run-1"); err != nil || n != 0 {
		t.Fatalf("expected reset to drop checkpoints, got %d err=%v", n, err)
	}
}
