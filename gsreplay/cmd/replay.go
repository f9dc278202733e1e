package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/gsreplay/datarecording"
	"github.com/sarchlab/gsreplay/monitoring"
	"github.com/sarchlab/gsreplay/renderer"
	"github.com/sarchlab/gsreplay/replay"
	"github.com/sarchlab/gsreplay/session"
	"github.com/sarchlab/gsreplay/tracing"
	"github.com/sarchlab/gsreplay/txlog"
)

var replayCmd = &cobra.Command{
	Use:   "replay [renderer] <dump>",
	Short: "Replay a dump into a renderer.",
	Long: `Replay a dump into a renderer. The renderer defaults to ` +
		`GSREPLAY_RENDERER. A negative --loop cuts the first -loop ` +
		`frames into <dump>_repack.gs instead of replaying.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	f := replayCmd.Flags()
	f.Int("loop", 1, "loop selector: passes, >90 continuous with pause, "+
		">=200 continuous, <0 repack")
	f.Bool("dump", false, "renderer dumps its output, replay once")
	f.Uint32("max-payload", 0, "largest payload or readback in bytes")
	f.String("trace-db", "", "record per-frame traces into this SQLite file")
	f.Int("monitor-port", 0, "serve the replay monitor on this port")
	f.Bool("monitor", false, "serve the replay monitor on a random port")
	f.Bool("open-browser", false, "open the monitor in a browser")
	f.BoolP("verbose", "v", false, "log every replayed transaction")
}

func applyReplayFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	if f.Changed("loop") {
		cfg.Loop, _ = f.GetInt("loop")
	}

	if f.Changed("dump") {
		cfg.Dump, _ = f.GetBool("dump")
	}

	if f.Changed("max-payload") {
		cfg.MaxPayload, _ = f.GetUint32("max-payload")
	}

	if f.Changed("trace-db") {
		cfg.TraceDB, _ = f.GetString("trace-db")
	}

	if f.Changed("monitor-port") {
		cfg.MonitorPort, _ = f.GetInt("monitor-port")
	}
}

// replayArgs splits "[renderer] <dump>".
func replayArgs(args []string, defaultRenderer string) (kind, dump string) {
	if len(args) == 2 {
		return args[0], args[1]
	}

	return defaultRenderer, args[0]
}

// expectedFrames is the number of frames a replay will issue, or zero when
// it does not end by itself.
func expectedFrames(l *txlog.Log, p replay.LoopPolicy) uint64 {
	if p.Continuous {
		return 0
	}

	return uint64(l.Frames()) * uint64(p.Repeat)
}

func runReplay(cmd *cobra.Command, args []string) error {
	applyReplayFlags(cmd)

	kind, dump := replayArgs(args, cfg.Renderer)

	if frames, ok := cfg.RepackFrames(); ok {
		return repack(cmd, dump, txlog.RepackPath(dump), frames)
	}

	r, err := renderer.New(kind)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "gsreplay: ", log.LstdFlags)

	sess := session.New(appFs, r, session.Options{
		CaptureEnabled: cfg.CaptureEnabled,
		Logger:         logger,
	})
	atexit.Register(sess.StopCaptureAtExit)

	window := replay.NewWindow()

	b := replay.MakeBuilder().
		WithLoopPolicy(cfg.LoopPolicy()).
		WithActivity(window).
		WithLogger(logger)

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		b = b.WithHook(replay.NewTransactionLogger(logger))
	}

	if cfg.TraceDB != "" {
		backend, err := datarecording.New(cfg.TraceDB)
		if err != nil {
			return err
		}
		defer backend.Close()

		b = b.WithHook(tracing.NewFrameTracer(backend, tracing.WallClock,
			filepath.Base(dump), kind))
	}

	d, err := sess.OpenReplay(dump, b, txlog.LoadOptions{
		MaxPayload: cfg.MaxPayload,
	})
	if err != nil {
		return err
	}

	if err := startMonitor(cmd, d, r, dump); err != nil {
		sess.CloseReplay()
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "replaying %s into %s renderer, %s\n",
		dump, kind, d.Policy())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		window.Close()
	}()

	stats, err := sess.RunReplay(ctx, d)

	stats.WriteBandwidthReport(cmd.ErrOrStderr())

	if digest, ok := r.(*renderer.Digest); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", digest)
	}

	return err
}

func startMonitor(
	cmd *cobra.Command,
	d *replay.Driver,
	r any,
	dump string,
) error {
	enabled, _ := cmd.Flags().GetBool("monitor")
	if !enabled && cfg.MonitorPort == 0 {
		return nil
	}

	m := monitoring.NewMonitor().WithPortNumber(cfg.MonitorPort)
	m.RegisterDriver(d)
	m.RegisterObject("renderer", r)
	m.RegisterObject("summary", d.Log().Summary())

	d.AcceptHook(monitoring.NewFrameProgress(m, filepath.Base(dump),
		expectedFrames(d.Log(), d.Policy())))

	url, err := m.StartServer()
	if err != nil {
		return err
	}

	if open, _ := cmd.Flags().GetBool("open-browser"); open {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cannot open browser: %v\n", err)
		}
	}

	return nil
}
