package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/seanpoyner/ollama-code/internal/agent"
	"github.com/seanpoyner/ollama-code/internal/config"
	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/display"
	"github.com/seanpoyner/ollama-code/internal/logging"
	"github.com/seanpoyner/ollama-code/internal/loop"
	"github.com/seanpoyner/ollama-code/internal/ollama"
	"github.com/seanpoyner/ollama-code/internal/planner"
	"github.com/seanpoyner/ollama-code/internal/sandbox"
	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/tui"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

var flagResume bool

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a coding request against the local model",
	Long: `Run sends a request to the configured Ollama model. Simple questions are
answered directly; multi-step requests are planned into a task batch and
executed task by task, retrying failed tasks up to the retry limit.

An interrupted batch can be picked up again with --resume.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		request := strings.Join(args, " ")
		if flagResume && request != "" {
			return fmt.Errorf("--resume does not take a request")
		}
		if !flagResume && request == "" {
			return fmt.Errorf("nothing to do: pass a request or --resume")
		}
		return runRequest(cmd, request, flagResume)
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagResume, "resume", false, "resume the interrupted task batch in this directory")
}

func runRequest(cmd *cobra.Command, request string, resume bool) error {
	dir, err := workDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	metaDir := filepath.Join(dir, config.MetaDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", metaDir, err)
	}

	cleanup, err := logging.Setup(cfg.LogLevel, cfg.EffectiveLogFile(dir))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ollama.NewClient(cfg.Host, cfg.Model)
	if !client.Available(ctx) {
		return fmt.Errorf("cannot reach Ollama at %s: start it with `ollama serve` and make sure model %q is pulled",
			cfg.Host, cfg.Model)
	}

	if !resume && !planner.IsComplex(request) {
		return runDirect(ctx, cfg, dir, client, request)
	}
	return runBatch(ctx, cfg, dir, metaDir, client, request, resume)
}

// runDirect answers a simple request in one model round, still executing
// any code the reply contains.
func runDirect(ctx context.Context, cfg *config.Config, dir string, client *ollama.Client, request string) error {
	sb := sandbox.New(dir, cfg.ExecTimeout.Std())
	ag := agent.New(client, sb, terminalConfirmer(cfg), os.Stdout)

	res, err := ag.Run(ctx, request)
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	return nil
}

// runBatch plans the request into a task batch and drives the loop,
// under the interactive monitor when stdout is a terminal.
func runBatch(ctx context.Context, cfg *config.Config, dir, metaDir string, client *ollama.Client, request string, resume bool) error {
	lock := task.NewRunLock(metaDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	store := task.NewStore(metaDir)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load task batch: %w", err)
	}

	progress := task.NewProgressLogger(metaDir)
	pl := planner.New(client)
	val := validate.New()
	sb := sandbox.New(dir, cfg.ExecTimeout.Std())

	start := func(ctx context.Context, ev loop.Events, conf confirm.Confirmer) (loop.Summary, error) {
		ag := agent.New(client, sb, conf, lineWriter{ev})
		l := loop.New(store, pl, ag, val).
			WithEvents(ev).
			WithConfirmer(conf).
			WithProgress(progress).
			WithTimeout(cfg.TaskTimeout.Std())
		if resume {
			return l.Resume(ctx)
		}
		return l.Run(ctx, request)
	}

	var summary loop.Summary
	var err error
	if interactive(cfg) {
		summary, err = tui.Run(ctx, request, start)
		if err == nil {
			printSummary(os.Stdout, summary)
		}
	} else {
		d := display.New(os.Stdout)
		d.Start()
		summary, err = start(ctx, d, terminalConfirmer(cfg))
		d.Stop()
	}
	if err != nil {
		return err
	}
	if summary.Resumable {
		// Exit non-zero so scripts notice the batch is unfinished.
		return errors.New("run interrupted; remaining tasks kept (resume with `ollama-code run --resume`)")
	}
	return nil
}

func interactive(cfg *config.Config) bool {
	return !cfg.PlainOutput && isatty.IsTerminal(os.Stdout.Fd())
}

// terminalConfirmer builds the prompt chain for non-TUI runs.
func terminalConfirmer(cfg *config.Config) confirm.Confirmer {
	if cfg.AutoApprove {
		return confirm.Auto{Decision: confirm.ApproveAll}
	}
	return confirm.NewSticky(confirm.NewTerminal(os.Stdin, os.Stderr))
}

// printSummary writes the final batch outcome after the monitor exits.
func printSummary(w io.Writer, s loop.Summary) {
	fmt.Fprintf(w, "Finished in %s: %d completed, %d abandoned, %d cancelled (of %d)\n",
		s.Duration.Round(time.Second), s.Completed, s.Abandoned, s.Cancelled, s.Total)
	for _, line := range s.Lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if s.Resumable {
		fmt.Fprintln(w, "Remaining tasks kept. Resume with `ollama-code run --resume`.")
	}
}

// lineWriter adapts execution output to loop events, one line per call.
type lineWriter struct {
	ev loop.Events
}

func (l lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) > 0 {
			l.ev.OnOutput(string(line))
		}
	}
	return len(p), nil
}
