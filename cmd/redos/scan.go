package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KromDaniel/redos/internal/cache"
	"github.com/KromDaniel/redos/internal/config"
	"github.com/KromDaniel/redos/pkg/redos"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

type scanOptions struct {
	jobs     int
	cacheDir string
	cacheTTL time.Duration
	watch    bool
	asJSON   bool
}

func newScanCmd(a *app) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Analyse every pattern in a file",
		Long: `scan reads one pattern per line, or a YAML configuration with a
patterns section. Entries declaring "expect" fail only when the verdict
differs; other entries fail when vulnerable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newScanner(opts)
			if err != nil {
				return &exitError{code: exitInconclusive, err: err}
			}
			defer s.close()

			path := args[0]
			if !opts.watch {
				code, err := s.scanFile(cmd.Context(), path)
				if err != nil {
					return &exitError{code: exitInconclusive, err: err}
				}
				if code != exitSafe {
					return &exitError{code: code}
				}
				return nil
			}
			return s.watch(cmd.Context(), path)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "patterns analysed in parallel")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "persist verdicts in this directory")
	f.DurationVar(&opts.cacheTTL, "cache-ttl", 0, "expire cached verdicts after this long; 0 keeps them")
	f.BoolVarP(&opts.watch, "watch", "w", false, "re-scan whenever the file changes")
	f.BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	return cmd
}

type scanner struct {
	app   *app
	opts  scanOptions
	cache *cache.Cache
}

func (a *app) newScanner(opts scanOptions) (*scanner, error) {
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	s := &scanner{app: a, opts: opts}

	dir, ttl := opts.cacheDir, opts.cacheTTL
	if dir == "" && a.file != nil {
		dir = a.file.Cache.Dir
	}
	if ttl == 0 && a.file != nil {
		ttl = a.file.Cache.TTL
	}
	if dir != "" {
		c, err := cache.Open(cache.Config{Path: dir, TTL: ttl, Logger: a.log})
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	return s, nil
}

func (s *scanner) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.app.log.Warn("Closing cache failed", "error", err)
		}
	}
}

// scanFile analyses the file's patterns and prints the results. The
// returned code is the worst verdict.
func (s *scanner) scanFile(ctx context.Context, path string) (int, error) {
	f, err := config.Load(path)
	if err != nil {
		return exitInconclusive, err
	}
	analyzer, err := s.app.analyzer(&f.Analysis)
	if err != nil {
		return exitInconclusive, err
	}

	results, err := s.scan(ctx, analyzer, f.Patterns)
	if err != nil {
		return exitInconclusive, err
	}

	p := newPrinter(s.app.out)
	if s.opts.asJSON {
		if err := p.json(results); err != nil {
			return exitInconclusive, err
		}
	} else {
		for _, r := range results {
			p.result(r)
		}
		fmt.Fprintln(s.app.out, summary(results))
	}
	return exitCode(results), nil
}

// scan fans the patterns out over opts.jobs workers. Results keep the
// order of patterns.
func (s *scanner) scan(ctx context.Context, analyzer *redos.Analyzer, patterns []config.Pattern) ([]result, error) {
	fingerprint := analyzer.Config().Fingerprint()
	results := make([]result, len(patterns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.jobs)
	for i, entry := range patterns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.analyze(ctx, analyzer, fingerprint, entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *scanner) analyze(ctx context.Context, analyzer *redos.Analyzer, fingerprint string, entry config.Pattern) result {
	if s.cache != nil {
		report, ok, err := s.cache.Get(fingerprint, entry.Pattern)
		if err != nil {
			s.app.log.Warn("Cache read failed", "pattern", entry.Pattern, "error", err)
		} else if ok {
			r := newResult(entry.Name, entry.Pattern, report, nil)
			r.Cached = true
			r.expect(entry.Expect)
			return r
		}
	}

	report, err := analyzer.Analyze(ctx, entry.Pattern)
	if err == nil && s.cache != nil {
		if err := s.cache.Put(fingerprint, report); err != nil {
			s.app.log.Warn("Cache write failed", "pattern", entry.Pattern, "error", err)
		}
	}
	r := newResult(entry.Name, entry.Pattern, report, err)
	r.expect(entry.Expect)
	return r
}

// watch scans path, then again after every change until ctx is done.
// The directory is watched because editors often replace the file.
func (s *scanner) watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	rescan := func() {
		if _, err := s.scanFile(ctx, abs); err != nil {
			s.app.log.Error("Scan failed", "path", abs, "error", err)
		}
	}
	rescan()

	timer := time.NewTimer(0)
	<-timer.C
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			s.app.log.Debug("File changed", "path", abs, "op", event.Op.String())
			timer.Reset(watchDebounce)
		case <-timer.C:
			rescan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.app.log.Warn("Watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func summary(results []result) string {
	counts := make(map[status]int)
	failed := 0
	for _, r := range results {
		counts[r.status]++
		if r.Failed {
			failed++
		}
	}
	return fmt.Sprintf("%d patterns: %d safe, %d vulnerable, %d inconclusive, %d errors; %d failed",
		len(results), counts[statusSafe], counts[statusVulnerable],
		counts[statusInconclusive], counts[statusError], failed)
}
