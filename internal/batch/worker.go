package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gocarina/gocsv"

	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
)

// Worker scores the rows of a single batch job.
type Worker struct {
	predictor *predictor.Predictor
	history   *history.Store
	log       *slog.Logger
}

func NewWorker(p *predictor.Predictor, h *history.Store, log *slog.Logger) *Worker {
	return &Worker{
		predictor: p,
		history:   h,
		log:       log,
	}
}

// Process decodes the job's CSV and predicts, explains and stores every row.
// A bad row is recorded on the job and does not stop the rest.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID)

	job.SetStatus(StatusDecoding, "decoding")
	var rows []*predictor.Input
	if err := gocsv.UnmarshalBytes(job.takeData(), &rows); err != nil {
		log.Error("decode failed", "error", err)
		job.AddError(fmt.Sprintf("decode: %s", err))
		job.SetStatus(StatusFailed, "decoding")
		return
	}
	if len(rows) == 0 {
		job.AddError("csv has no data rows")
		job.SetStatus(StatusFailed, "decoding")
		return
	}
	job.SetTotalRows(len(rows))

	job.SetStatus(StatusScoring, "scoring")
	for i, in := range rows {
		if err := ctx.Err(); err != nil {
			log.Warn("batch cancelled", "rows_left", len(rows)-i)
			job.AddError("cancelled")
			job.SetStatus(StatusFailed, "scoring")
			return
		}
		id, err := w.scoreRow(ctx, job.UserID, in)
		if err != nil {
			job.RowFailed(fmt.Sprintf("row %d: %s", i+1, err))
			continue
		}
		job.RowSucceeded(id)
	}

	snap := job.Snapshot()
	switch {
	case snap.Progress.Failed == 0:
		job.SetStatus(StatusCompleted, "done")
	case snap.Progress.Succeeded == 0:
		job.SetStatus(StatusFailed, "scoring")
	default:
		job.SetStatus(StatusPartial, "done")
	}
	log.Info("batch finished",
		"rows", snap.Progress.TotalRows,
		"succeeded", snap.Progress.Succeeded,
		"failed", snap.Progress.Failed,
	)
}

func (w *Worker) scoreRow(ctx context.Context, userID string, in *predictor.Input) (string, error) {
	if in == nil {
		return "", fmt.Errorf("empty row")
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	features := in.Features()
	res, err := w.predictor.Predict(ctx, features)
	if err != nil {
		return "", err
	}
	p := &history.Prediction{
		UserID:         userID,
		Input:          features,
		Result:         res.Prediction,
		DecisionPath:   res.DecisionPath,
		Recommendation: res.Recommendation,
	}
	if err := w.history.Save(ctx, p); err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	return p.ID, nil
}
