package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
	"github.com/sarchlab/gsreplay/txlog"
)

type activityFunc func() bool

func (f activityFunc) Active() bool { return f() }

func newLog(crc uint32, txs ...*gs.Transaction) *txlog.Log {
	h, err := gs.NewHeader(crc, nil, make([]byte, gs.RegisterBankSize))
	Expect(err).NotTo(HaveOccurred())

	l := txlog.New(h)
	for _, t := range txs {
		l.Append(t)
	}

	return l
}

func mustTransfer(path gs.Path, payload []byte) *gs.Transaction {
	t, err := gs.NewTransfer(path, payload)
	Expect(err).NotTo(HaveOccurred())

	return t
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}

	return b
}

// callRecorder is a renderer that remembers every call with copies of its
// arguments.
type callRecorder struct {
	calls []string
}

func (r *callRecorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *callRecorder) SetGameCRC(crc uint32, options int) { r.add("crc %x %d", crc, options) }
func (r *callRecorder) Freeze() ([]byte, error)            { return nil, nil }
func (r *callRecorder) Defrost(s []byte) error             { r.add("defrost %x", s); return nil }
func (r *callRecorder) RestoreRegisters(b []byte) error    { r.add("regs %x", b); return nil }
func (r *callRecorder) VSync(f uint8) error                { r.add("vsync %d", f); return nil }
func (r *callRecorder) ReadFIFO(d []byte) error            { r.add("fifo %d", len(d)); return nil }
func (r *callRecorder) Transfer(p gs.Path, d []byte) error {
	r.add("transfer %s %x", p, d)
	return nil
}

var _ = Describe("Driver", func() {
	var (
		mockCtrl *gomock.Controller
		renderer *MockRenderer
		regs     []byte
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		renderer = NewMockRenderer(mockCtrl)
		regs = make([]byte, gs.RegisterBankSize)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(p LoopPolicy) *Driver {
		return MakeBuilder().
			WithRenderer(renderer).
			WithLoopPolicy(p).
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build()
	}

	// expectPrime returns the last priming call so that later expectations
	// can be ordered after it.
	expectPrime := func(crc uint32) *gomock.Call {
		last := renderer.EXPECT().VSync(uint8(1)).Return(nil)
		gomock.InOrder(
			renderer.EXPECT().SetGameCRC(crc, 0),
			renderer.EXPECT().Defrost([]byte{}).Return(nil),
			renderer.EXPECT().RestoreRegisters(regs).Return(nil),
			last,
		)

		return last
	}

	It("should replay the reference scenario once and finish", func() {
		payload := sequence(16)
		d := build(Bounded(1))
		Expect(d.State()).To(Equal(StateIdle))
		Expect(d.Load(newLog(0x1234ABCD,
			gs.NewVSync(0),
			mustTransfer(gs.Path2, payload),
		))).To(Succeed())
		Expect(d.State()).To(Equal(StateLoaded))

		prime := expectPrime(0x1234ABCD)
		gomock.InOrder(
			prime,
			renderer.EXPECT().VSync(uint8(0)).Return(nil),
			renderer.EXPECT().Transfer(gs.Path2, payload).Return(nil),
		)

		stats, err := d.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(d.State()).To(Equal(StateFinished))
		Expect(stats.Passes).To(Equal(uint64(1)))
		Expect(stats.Frames).To(Equal(uint64(1)))
		Expect(stats.Transactions).To(Equal(uint64(2)))
		Expect(stats.TransferBytes).To(Equal(uint64(16)))
	})

	It("should hand path 1 transfers the right aligned tail", func() {
		d := build(Bounded(1))
		Expect(d.Load(newLog(1, mustTransfer(gs.Path1, []byte{1, 2, 3, 4})))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().
			Transfer(gs.Path1, gomock.Any()).
			DoAndReturn(func(_ gs.Path, data []byte) error {
				Expect(data).To(Equal([]byte{1, 2, 3, 4}))
				Expect(cap(data)).To(Equal(4))
				return nil
			})

		_, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reuse a scratch buffer for readbacks", func() {
		d := build(Bounded(1))
		Expect(d.Load(newLog(1, gs.NewFIFORead(64), gs.NewFIFORead(16)))).To(Succeed())

		var first []byte
		expectPrime(1)
		gomock.InOrder(
			renderer.EXPECT().ReadFIFO(gomock.Any()).
				DoAndReturn(func(dst []byte) error {
					Expect(dst).To(HaveLen(64))
					first = dst
					return nil
				}),
			renderer.EXPECT().ReadFIFO(gomock.Any()).
				DoAndReturn(func(dst []byte) error {
					Expect(dst).To(HaveLen(16))
					Expect(&dst[0]).To(BeIdenticalTo(&first[0]))
					return nil
				}),
		)

		stats, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.FIFOBytes).To(Equal(uint64(80)))
	})

	It("should restore register blocks", func() {
		bank := sequence(gs.RegisterBankSize)
		restore, err := gs.NewRegisterBlockRestore(bank)
		Expect(err).NotTo(HaveOccurred())

		d := build(Bounded(1))
		Expect(d.Load(newLog(1, restore))).To(Succeed())

		gomock.InOrder(
			expectPrime(1),
			renderer.EXPECT().RestoreRegisters(bank).Return(nil),
		)

		_, err = d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should abort when the renderer rejects a call", func() {
		d := build(Bounded(5))
		Expect(d.Load(newLog(1,
			gs.NewVSync(0),
			mustTransfer(gs.Path3, sequence(32)),
			gs.NewVSync(1),
		))).To(Succeed())

		var endErr any
		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosReplayEnd {
				endErr = ctx.Detail
			}
		}))

		deviceLost := errors.New("device lost")
		gomock.InOrder(
			expectPrime(1),
			renderer.EXPECT().VSync(uint8(0)).Return(nil),
			renderer.EXPECT().Transfer(gs.Path3, gomock.Any()).Return(deviceLost),
		)

		stats, err := d.Run(context.Background())

		Expect(err).To(MatchError(gs.ErrRendererRejected))
		Expect(err).To(MatchError(deviceLost))
		Expect(d.State()).To(Equal(StateAborted))
		Expect(stats.Transactions).To(Equal(uint64(1)))
		Expect(endErr).To(Equal(err))
	})

	It("should abort when priming fails", func() {
		d := build(Bounded(1))
		Expect(d.Load(newLog(1, gs.NewVSync(0)))).To(Succeed())

		renderer.EXPECT().SetGameCRC(uint32(1), 0)
		renderer.EXPECT().Defrost(gomock.Any()).Return(errors.New("bad state"))

		_, err := d.Run(context.Background())

		Expect(err).To(MatchError(gs.ErrRendererRejected))
		Expect(d.State()).To(Equal(StateAborted))
	})

	It("should repeat the log in bounded mode", func() {
		d := build(Bounded(3))
		Expect(d.Load(newLog(1, gs.NewVSync(0), gs.NewFIFORead(16)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().VSync(uint8(0)).Return(nil).Times(3)
		renderer.EXPECT().ReadFIFO(gomock.Any()).Return(nil).Times(3)

		stats, err := d.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Passes).To(Equal(uint64(3)))
		Expect(stats.Frames).To(Equal(uint64(3)))
	})

	It("should finish at the VSync after the window closes", func() {
		window := NewWindow()
		d := MakeBuilder().
			WithRenderer(renderer).
			WithLoopPolicy(Continuous(0)).
			WithActivity(window).
			Build()
		Expect(d.Load(newLog(1,
			mustTransfer(gs.Path2, sequence(16)),
			gs.NewVSync(0),
			mustTransfer(gs.Path3, sequence(16)),
		))).To(Succeed())

		gomock.InOrder(
			expectPrime(1),
			renderer.EXPECT().Transfer(gs.Path2, gomock.Any()).
				DoAndReturn(func(gs.Path, []byte) error {
					window.Close()
					return nil
				}),
			renderer.EXPECT().VSync(uint8(0)).Return(nil),
		)

		stats, err := d.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(d.State()).To(Equal(StateFinished))
		Expect(stats.Transactions).To(Equal(uint64(2)))
		Expect(window.Active()).To(BeFalse())
	})

	It("should stop a continuous replay when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		d := build(Continuous(0))
		Expect(d.Load(newLog(1, gs.NewVSync(0)))).To(Succeed())

		frames := 0
		expectPrime(1)
		renderer.EXPECT().VSync(uint8(0)).
			DoAndReturn(func(uint8) error {
				frames++
				if frames == 10 {
					cancel()
				}
				return nil
			}).Times(10)

		stats, err := d.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Frames).To(Equal(uint64(10)))
		Expect(d.State()).To(Equal(StateFinished))
	})

	It("should not sleep past a cancellation between passes", func() {
		ctx, cancel := context.WithCancel(context.Background())

		d := build(Continuous(time.Hour))
		Expect(d.Load(newLog(1, gs.NewFIFORead(16)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().ReadFIFO(gomock.Any()).Return(nil)

		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosPassEnd {
				go func() {
					time.Sleep(10 * time.Millisecond)
					cancel()
				}()
			}
		}))

		stats, err := d.Run(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Passes).To(Equal(uint64(1)))
	})

	It("should hold at a VSync while paused", func() {
		d := build(Bounded(1))
		Expect(d.Load(newLog(1, gs.NewVSync(0), gs.NewFIFORead(16)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().VSync(uint8(0)).
			DoAndReturn(func(uint8) error {
				d.Pause()
				return nil
			})
		renderer.EXPECT().ReadFIFO(gomock.Any()).Return(nil)

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			close(done)
		}()

		Eventually(d.IsPaused).Should(BeTrue())
		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(d.Position()).To(Equal(1))

		d.Continue()

		Eventually(done).Should(BeClosed())
		Expect(d.State()).To(Equal(StateFinished))
	})

	It("should finish a paused replay when the window closes", func() {
		window := NewWindow()
		d := MakeBuilder().
			WithRenderer(renderer).
			WithLoopPolicy(Continuous(0)).
			WithActivity(window).
			Build()
		Expect(d.Load(newLog(1, gs.NewVSync(0)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().VSync(uint8(0)).
			DoAndReturn(func(uint8) error {
				d.Pause()
				return nil
			})

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			close(done)
		}()

		Eventually(d.IsPaused).Should(BeTrue())
		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())

		window.Close()

		Eventually(done).Should(BeClosed())
		Expect(d.State()).To(Equal(StateFinished))
		Expect(d.Stats().Frames).To(Equal(uint64(1)))
	})

	It("should notice an activity without notification going inactive while paused", func() {
		var active atomic.Bool
		active.Store(true)

		d := MakeBuilder().
			WithRenderer(renderer).
			WithLoopPolicy(Continuous(0)).
			WithActivity(activityFunc(active.Load)).
			Build()
		Expect(d.Load(newLog(1, gs.NewVSync(0)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().VSync(uint8(0)).
			DoAndReturn(func(uint8) error {
				d.Pause()
				return nil
			})

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			close(done)
		}()

		Eventually(d.IsPaused).Should(BeTrue())

		active.Store(false)

		Eventually(done).Should(BeClosed())
		Expect(d.State()).To(Equal(StateFinished))
	})

	It("should refuse to run before a log is loaded", func() {
		d := build(Bounded(1))

		_, err := d.Run(context.Background())

		Expect(err).To(MatchError(ErrNotLoaded))
		Expect(d.State()).To(Equal(StateIdle))
	})

	It("should refuse to be loaded or run twice", func() {
		d := build(Bounded(1))
		Expect(d.Load(newLog(1))).To(Succeed())
		Expect(d.Load(newLog(1))).To(MatchError(ErrAlreadyStarted))

		expectPrime(1)
		_, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		_, err = d.Run(context.Background())
		Expect(err).To(MatchError(ErrAlreadyStarted))
	})

	It("should log transactions through the logger hook", func() {
		buf := new(bytes.Buffer)
		d := MakeBuilder().
			WithRenderer(renderer).
			WithHook(NewTransactionLogger(log.New(buf, "", 0))).
			Build()
		Expect(d.Load(newLog(1, gs.NewVSync(1), gs.NewFIFORead(32)))).To(Succeed())

		expectPrime(1)
		renderer.EXPECT().VSync(uint8(1)).Return(nil)
		renderer.EXPECT().ReadFIFO(gomock.Any()).Return(nil)

		_, err := d.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("#0 VSync(1)\n#1 FIFORead(32 bytes)\n"))
	})

	It("should report each frame to hooks", func() {
		d := build(Bounded(2))
		Expect(d.Load(newLog(1, gs.NewVSync(0), gs.NewVSync(1)))).To(Succeed())

		var frames []FrameInfo
		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosFrame {
				frames = append(frames, ctx.Item.(FrameInfo))
			}
		}))

		expectPrime(1)
		renderer.EXPECT().VSync(gomock.Any()).Return(nil).Times(4)

		_, err := d.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(frames).To(Equal([]FrameInfo{
			{Pass: 0, Frame: 1, Field: 0},
			{Pass: 0, Frame: 2, Field: 1},
			{Pass: 1, Frame: 3, Field: 0},
			{Pass: 1, Frame: 4, Field: 1},
		}))
	})

	It("should issue identical calls on every replay of the same log", func() {
		restore, _ := gs.NewRegisterBlockRestore(sequence(gs.RegisterBankSize))
		l := newLog(7,
			mustTransfer(gs.Path1, sequence(48)),
			mustTransfer(gs.PathGeneric, sequence(32)),
			gs.NewFIFORead(32),
			restore,
			gs.NewVSync(1),
		)

		replayOnce := func() []string {
			r := &callRecorder{}
			d := MakeBuilder().WithRenderer(r).WithLoopPolicy(Bounded(2)).Build()
			Expect(d.Load(l)).To(Succeed())
			_, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			return r.calls
		}

		first := replayOnce()
		Expect(first).To(HaveLen(4 + 2*5))
		Expect(replayOnce()).To(Equal(first))
	})
})

var _ = Describe("LoopPolicy", func() {
	It("should describe itself", func() {
		Expect(Bounded(1).String()).To(Equal("bounded, 1 pass"))
		Expect(Bounded(3).String()).To(Equal("bounded, 3 passes"))
		Expect(Continuous(0).String()).To(Equal("continuous"))
		Expect(Continuous(time.Second).String()).
			To(Equal("continuous, 1s between passes"))
	})
})

var _ = Describe("Stats", func() {
	It("should report bandwidth per frame", func() {
		s := Stats{
			Passes: 1, Frames: 2, Transactions: 5,
			TransferBytes: 4096, FIFOBytes: 1024, RegisterBytes: 2048,
			Elapsed: time.Second,
		}
		buf := new(bytes.Buffer)

		s.WriteBandwidthReport(buf)

		Expect(buf.String()).To(ContainSubstring(
			"T: 2.000 KB/f. R: 0.500 KB/f. P: 1.000 KB/f"))
		Expect(s.FPS()).To(Equal(2.0))
	})
})
