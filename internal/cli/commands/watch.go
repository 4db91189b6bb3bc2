package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	intconfig "github.com/leapstack-labs/aliasgraph/internal/config"
	"github.com/leapstack-labs/aliasgraph/internal/loader"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check signatures whenever they change",
		Long: `Watch the signature directory and re-run the circular alias check
after every change.

Bursts of file events are coalesced (watch.debounce). After each change
the files affected through the file dependency graph are listed before the
check result. Editing aliasgraph.yaml reloads the edge policy and workers.`,
		Example: `  # Watch with the configured debounce
  aliasgraph watch

  # Without recording every check
  aliasgraph watch --record=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}

	return cmd
}

// changeBatch is one debounced set of changes.
type changeBatch struct {
	files         []string
	configChanged bool
}

// watchSession re-checks the engine as batches arrive. The apply side may
// swap cc.Engine and cc.Cfg, so the collect side only reads the values
// captured by newWatchSession.
type watchSession struct {
	cc         *CommandContext
	configFile string
	// onApplied runs after each successful reload.
	onApplied func()

	sigDir     string
	extensions []string
	debounce   time.Duration
}

// newWatchSession captures the settings a config reload never changes.
func newWatchSession(cc *CommandContext, configFile string) *watchSession {
	return &watchSession{
		cc:         cc,
		configFile: configFile,
		sigDir:     cc.Cfg.SigDir,
		extensions: slices.Clone(cc.Engine.Extensions()),
		debounce:   cc.Cfg.Watch.Debounce,
	}
}

func runWatch(cmd *cobra.Command) error {
	cmdCtx, _, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	configFile := ""
	if root := cmdCtx.Cfg.ProjectRoot; root != "" {
		configFile = intconfig.FindConfigFile(root)
	}
	// The engine is swapped when the config file changes.
	s := newWatchSession(cmdCtx, configFile)
	defer func() { _ = s.cc.Engine.Close() }()

	if _, err := discover(cmdCtx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx.Renderer.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", cmdCtx.Cfg.SigDir))
	return s.run(ctx)
}

// run checks once, then re-checks after every batch of changes until ctx is
// cancelled.
func (s *watchSession) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDir(watcher, s.sigDir); err != nil {
		return fmt.Errorf("failed to watch signature dir: %w", err)
	}
	if s.configFile != "" {
		if err := watcher.Add(filepath.Dir(s.configFile)); err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
	}

	if err := s.check(ctx); err != nil {
		s.cc.Renderer.Error(err.Error())
	}

	batches := make(chan changeBatch)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		return s.collect(gctx, watcher, batches)
	})
	g.Go(func() error {
		for batch := range batches {
			s.apply(gctx, batch)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchDir recursively adds a directory to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// collect turns file events into debounced batches until ctx is done.
func (s *watchSession) collect(ctx context.Context, watcher *fsnotify.Watcher, batches chan<- changeBatch) error {
	debounce := s.debounce
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending changeBatch
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(watcher, event, &pending) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			batch := pending
			pending = changeBatch{}
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.cc.Logger.Warn("watcher error", "error", err)
		}
	}
}

// relevant records event in pending and reports whether it needs a re-check.
func (s *watchSession) relevant(watcher *fsnotify.Watcher, event fsnotify.Event, pending *changeBatch) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if s.configFile != "" && event.Name == s.configFile {
		pending.configChanged = true
		return true
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watchDir(watcher, event.Name); err != nil {
				s.cc.Logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return false
		}
	}
	if !isUnder(event.Name, s.sigDir) || !loader.HasDeclarationExt(event.Name, s.extensions) {
		return false
	}
	if !slices.Contains(pending.files, event.Name) {
		pending.files = append(pending.files, event.Name)
	}
	s.cc.Logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	return true
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// apply reloads after a batch and re-checks. Failures are reported and
// watching continues.
func (s *watchSession) apply(ctx context.Context, batch changeBatch) {
	r := s.cc.Renderer

	if batch.configChanged {
		if err := s.reloadConfig(); err != nil {
			r.Error(fmt.Sprintf("config reload failed: %v", err))
		} else {
			r.Muted("Reloaded " + filepath.Base(s.configFile))
		}
	}

	result, err := s.cc.Engine.Reload(batch.files)
	if err != nil {
		r.Error(fmt.Sprintf("reload failed: %v", err))
		return
	}
	s.cc.Logger.Debug("reloaded", "summary", result.Discovery.Summary())

	if len(result.Affected) > 0 {
		r.Println("")
		r.Header(2, "Affected files")
		for _, f := range result.Affected {
			r.Printf("  %s\n", r.Styles().FilePath.Render(f))
		}
		r.Println("")
	}

	if err := s.check(ctx); err != nil {
		r.Error(err.Error())
	}
	if s.onApplied != nil {
		s.onApplied()
	}
}

// reloadConfig rereads the config file and swaps in an engine using its
// edge policy, workers and record settings. The watched directories and the
// state database stay as they were.
func (s *watchSession) reloadConfig() error {
	pc, err := intconfig.LoadFromDir(filepath.Dir(s.configFile))
	if err != nil {
		return err
	}
	if pc == nil {
		return nil
	}

	cfg := *s.cc.Cfg
	cfg.Workers = pc.Workers
	cfg.EdgePolicy = pc.EdgePolicy
	cfg.Record = pc.Record
	if err := cfg.Validate(); err != nil {
		return err
	}

	eng, err := createEngine(&cfg, s.cc.Logger)
	if err != nil {
		return err
	}
	_ = s.cc.Engine.Close()
	s.cc.Engine = eng
	s.cc.Cfg = &cfg
	return nil
}

func (s *watchSession) check(ctx context.Context) error {
	result, err := s.cc.Engine.Check(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	return renderCheck(s.cc.Renderer, toCheckOutput(result))
}
