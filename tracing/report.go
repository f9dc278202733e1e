package tracing

import (
	"context"

	"github.com/sarchlab/gsreplay/datarecording"
)

// SlowestFrames returns the longest frames recorded in the trace, slowest
// first, and the number of frames in the trace. An empty runID selects all
// runs.
func SlowestFrames(
	ctx context.Context,
	r datarecording.DataReader,
	runID string,
	limit int,
) ([]FrameEntry, int, error) {
	r.MapTable(FrameTable, FrameEntry{})

	params := datarecording.QueryParams{
		OrderBy: "Duration DESC",
		Limit:   limit,
	}

	if runID != "" {
		params.Where = "RunID = ?"
		params.Args = []any{runID}
	}

	rows, total, err := r.Query(ctx, FrameTable, params)
	if err != nil {
		return nil, 0, err
	}

	frames := make([]FrameEntry, 0, len(rows))
	for _, row := range rows {
		frames = append(frames, *row.(*FrameEntry))
	}

	return frames, total, nil
}

// Runs returns every run recorded in the trace in the order they were
// written.
func Runs(ctx context.Context, r datarecording.DataReader) ([]RunEntry, error) {
	r.MapTable(RunTable, RunEntry{})

	rows, _, err := r.Query(ctx, RunTable, datarecording.QueryParams{
		OrderBy: "rowid",
	})
	if err != nil {
		return nil, err
	}

	runs := make([]RunEntry, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, *row.(*RunEntry))
	}

	return runs, nil
}
