package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/gsreplay/hooking"
	"github.com/sarchlab/gsreplay/replay"
)

// A ProgressBar tracks how many frames of a replay are done.
type ProgressBar struct {
	lock sync.Mutex

	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds amount to the finished count.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.Finished += amount
}

// Percent returns the finished share. A bar without a total is never done.
func (b *ProgressBar) Percent() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.Total == 0 {
		return 0
	}

	return 100 * float64(b.Finished) / float64(b.Total)
}

func (b *ProgressBar) snapshot() progressRsp {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

// FrameProgress advances a progress bar on every replayed frame and removes
// it from the monitor when the replay ends.
type FrameProgress struct {
	monitor *Monitor
	bar     *ProgressBar
}

// NewFrameProgress creates a bar on m. total is the number of frames the
// replay is expected to issue, or zero when it loops forever.
func NewFrameProgress(m *Monitor, name string, total uint64) *FrameProgress {
	return &FrameProgress{
		monitor: m,
		bar:     m.CreateProgressBar(name, total),
	}
}

// Bar returns the tracked bar.
func (p *FrameProgress) Bar() *ProgressBar {
	return p.bar
}

// Func implements hooking.Hook.
func (p *FrameProgress) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case replay.HookPosFrame:
		p.bar.IncrementFinished(1)
	case replay.HookPosReplayEnd:
		p.monitor.CompleteProgressBar(p.bar)
	}
}
