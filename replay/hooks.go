package replay

import (
	"log"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
)

// Hook positions fired by the Driver.
var (
	// HookPosBeforeTransaction fires before a transaction is issued. Item is
	// the *gs.Transaction, Detail its index in the log.
	HookPosBeforeTransaction = &hooking.HookPos{Name: "BeforeTransaction"}

	// HookPosAfterTransaction fires after the renderer accepted a
	// transaction.
	HookPosAfterTransaction = &hooking.HookPos{Name: "AfterTransaction"}

	// HookPosFrame fires after each VSync. Item is a FrameInfo.
	HookPosFrame = &hooking.HookPos{Name: "Frame"}

	// HookPosPassEnd fires when the end of the log is reached. Item is the
	// number of completed passes.
	HookPosPassEnd = &hooking.HookPos{Name: "PassEnd"}

	// HookPosReplayEnd fires once when the driver finishes or aborts. Item
	// is the final Stats, Detail the error if the replay aborted.
	HookPosReplayEnd = &hooking.HookPos{Name: "ReplayEnd"}
)

// FrameInfo describes a frame that just ended.
type FrameInfo struct {
	Pass  uint64
	Frame uint64
	Field uint8
}

// TransactionLogger prints every replayed transaction.
type TransactionLogger struct {
	*log.Logger
}

// NewTransactionLogger creates a TransactionLogger writing to logger.
func NewTransactionLogger(logger *log.Logger) *TransactionLogger {
	return &TransactionLogger{Logger: logger}
}

// Func logs the transaction about to be issued.
func (h *TransactionLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeTransaction:
		t, ok := ctx.Item.(*gs.Transaction)
		if !ok {
			return
		}

		h.Printf("#%v %s", ctx.Detail, t)
	case HookPosReplayEnd:
		if ctx.Detail != nil {
			h.Printf("replay aborted: %v", ctx.Detail)
		}
	}
}
