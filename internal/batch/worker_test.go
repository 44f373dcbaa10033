package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/aquasens/internal/dtree"
	"github.com/dgallion1/aquasens/internal/encoder"
	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
	"github.com/dgallion1/aquasens/internal/recommend"
)

const csvHeader = "Soil_Type,Soil_pH,Soil_Moisture,Organic_Carbon,Temperature_C,Humidity,Rainfall_mm,Sunlight_Hours,Wind_Speed_kmh,Crop_Type,Crop_Growth_Stage,Season,Mulching_Used,Previous_Irrigation_mm,Region\n"

const (
	rowHigh     = "Clay,6.5,25.4,1.2,31,40,12,9,10,Rice,Vegetative,Kharif,No,20,North\n"
	rowLow      = "Loamy,7.0,45,1.0,22,70,80,6,5,Wheat,Sowing,Rabi,Yes,10,South\n"
	rowBadPH    = "Sandy,20,30,1.0,22,70,80,6,5,Wheat,Sowing,Rabi,Yes,10,South\n"
	rowNoRegion = "Sandy,6,30,1.0,22,70,80,6,5,Wheat,Sowing,Rabi,Yes,10,\n"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupWorker(t *testing.T) (*Worker, *history.Store) {
	t.Helper()
	enc, err := encoder.New(encoder.Spec{Columns: []encoder.Column{
		{Name: "Soil_Moisture", Source: "Soil_Moisture", Kind: encoder.Numeric},
		{Name: "Mulching_Used", Source: "Mulching_Used", Kind: encoder.Numeric},
		{Name: "Crop_Type_Rice", Source: "Crop_Type", Kind: encoder.OneHot, Category: "Rice"},
	}})
	if err != nil {
		t.Fatalf("build encoder: %v", err)
	}
	tree, err := dtree.New([]dtree.Node{
		dtree.Internal(0, 30, 1, 2),
		dtree.Internal(1, 0.5, 3, 4),
		dtree.Leaf(0),
		dtree.Leaf(2),
		dtree.Leaf(1),
	}, 3)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	p, err := predictor.New(tree, enc, nil, discardLogger())
	if err != nil {
		t.Fatalf("build predictor: %v", err)
	}
	store, err := history.Open("")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewWorker(p, store, discardLogger()), store
}

func TestWorker_AllRowsScored(t *testing.T) {
	w, store := setupWorker(t)
	job := NewJob("j1", "farmer", "field.csv", []byte(csvHeader+rowHigh+rowLow))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalRows != 2 || snap.Progress.Succeeded != 2 {
		t.Errorf("expected 2 of 2 rows scored, got %+v", snap.Progress)
	}

	list, err := store.ListByUser(context.Background(), "farmer", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 stored predictions, got %d", len(list))
	}
	levels := map[recommend.Level]bool{}
	for _, p := range list {
		levels[p.Result] = true
	}
	if !levels[recommend.High] || !levels[recommend.Low] {
		t.Errorf("expected High and Low predictions, got %v", levels)
	}
}

func TestWorker_PartialOnBadRows(t *testing.T) {
	w, _ := setupWorker(t)
	job := NewJob("j2", "farmer", "field.csv", []byte(csvHeader+rowHigh+rowBadPH+rowNoRegion))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Progress.Succeeded != 1 || snap.Progress.Failed != 2 {
		t.Errorf("expected 1 succeeded and 2 failed, got %+v", snap.Progress)
	}
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %v", snap.Progress.Errors)
	}
	if !strings.HasPrefix(snap.Progress.Errors[0], "row 2: ") || !strings.Contains(snap.Progress.Errors[0], "Soil_pH") {
		t.Errorf("expected row 2 Soil_pH error, got %q", snap.Progress.Errors[0])
	}
	if !strings.HasPrefix(snap.Progress.Errors[1], "row 3: ") || !strings.Contains(snap.Progress.Errors[1], "Region is required") {
		t.Errorf("expected row 3 Region error, got %q", snap.Progress.Errors[1])
	}
	if len(snap.PredictionIDs) != 1 {
		t.Errorf("expected 1 prediction id, got %v", snap.PredictionIDs)
	}
}

func TestWorker_AllRowsRejected(t *testing.T) {
	w, _ := setupWorker(t)
	job := NewJob("j3", "farmer", "field.csv", []byte(csvHeader+rowBadPH))

	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}
}

func TestWorker_HeaderOnly(t *testing.T) {
	w, _ := setupWorker(t)
	job := NewJob("j4", "farmer", "field.csv", []byte(csvHeader))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected a job-level error")
	}
}

func TestWorker_UnparseableNumber(t *testing.T) {
	w, _ := setupWorker(t)
	bad := "Clay,6.5,wet,1.2,31,40,12,9,10,Rice,Vegetative,Kharif,No,20,North\n"
	job := NewJob("j5", "farmer", "field.csv", []byte(csvHeader+bad))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) != 1 || !strings.HasPrefix(snap.Progress.Errors[0], "decode: ") {
		t.Errorf("expected decode error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_Cancelled(t *testing.T) {
	w, _ := setupWorker(t)
	job := NewJob("j6", "farmer", "field.csv", []byte(csvHeader+rowHigh))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if snap.Progress.Processed != 0 {
		t.Errorf("expected no rows processed, got %d", snap.Progress.Processed)
	}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	w, _ := setupWorker(t)
	o := NewOrchestrator(w, 2, 4, time.Hour, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit("farmer", "field.csv", []byte(csvHeader+rowHigh))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected submitted job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.Snapshot().Status == StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected job to complete, last status %q", job.Snapshot().Status)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	w, _ := setupWorker(t)
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(w, 1, 1, time.Hour, discardLogger())

	if _, err := o.Submit("farmer", "a.csv", []byte(csvHeader+rowHigh)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job, err := o.Submit("farmer", "b.csv", []byte(csvHeader+rowHigh))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
