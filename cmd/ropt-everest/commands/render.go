package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/report"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/stores"
)

func newRenderCommand() *cobra.Command {
	var (
		outputDir  string
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "render <records.jsonl|store.db>",
		Short: "Render report tables from recorded results",
		Long: `Render report tables from recorded results.

The input is either a JSONL file with one encoded result record per line,
or a SQLite result store written by a plan's store handler. All records
are replayed through the table handler, producing the five report files
in the output directory.

With --config the table columns are labeled with the configured control,
objective and constraint names, and scaled controls are mapped back to
user space.`,
		Example: `  # Render tables from a result store
  ropt-everest render output/results.db

  # Re-render whenever the record file changes
  ropt-everest render --watch records.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()

			var (
				names     results.Names
				transform results.VariableTransform
			)
			if configPath != "" {
				cfg, err := config.NewLoader().LoadFile(ctx, configPath)
				if err != nil {
					return err
				}
				names = config.AxisNames(cfg)
				if scaler := config.NewControlScaler(cfg); scaler != nil {
					transform = scaler
				}
			}

			if err := renderTables(ctx, path, outputDir, names, transform); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndRender(ctx, path, outputDir, names, transform)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "output", "directory for the rendered tables")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file supplying axis names")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-render when the input file changes")

	return cmd
}

// renderTables replays all records from path through a fresh table handler.
// The handler carries no source tags, so every record is accepted.
func renderTables(
	ctx context.Context, path, dir string, names results.Names, transform results.VariableTransform,
) error {
	records, err := loadRecords(ctx, path)
	if err != nil {
		return err
	}

	handler, err := report.NewTableHandler(report.TableHandlerConfig{
		Dir:   dir,
		Names: names,
	})
	if err != nil {
		return err
	}

	for _, batch := range groupByBatch(records) {
		event := &engine.Event{
			Type:       engine.EventFinishedEvaluation,
			Source:     "replay",
			Results:    batch,
			Transforms: transform,
		}
		if err := handler.HandleEvent(ctx, event); err != nil {
			return err
		}
	}

	log.Info().
		Str("input", path).
		Str("output", dir).
		Int("records", len(records)).
		Msg("Tables rendered")
	return nil
}

// watchAndRender re-renders on every write to the input file until the
// context is cancelled. The parent directory is watched because editors
// and the store handler replace the file rather than appending in place.
func watchAndRender(
	ctx context.Context, path, dir string, names results.Names, transform results.VariableTransform,
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return engine.NewIOError("failed to create file watcher", err).WithComponent("render")
	}
	defer func() { _ = watcher.Close() }()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return engine.NewIOError(fmt.Sprintf("cannot resolve %q", path), err).WithComponent("render")
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return engine.NewIOError("failed to watch input directory", err).WithComponent("render")
	}

	log.Info().Str("path", path).Msg("Watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != absPath || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := renderTables(ctx, path, dir, names, transform); err != nil {
				log.Error().Err(err).Msg("Render failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// loadRecords reads result records from a SQLite store or a JSONL file,
// selected by file extension.
func loadRecords(ctx context.Context, path string) ([]results.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		store, err := stores.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.LoadRecords(ctx, stores.ListFilter{})
	default:
		return loadJSONL(path)
	}
}

// loadJSONL decodes one kind-tagged record per non-empty line.
func loadJSONL(path string) ([]results.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("cannot read records %q", path), err).WithComponent("render")
	}
	defer func() { _ = file.Close() }()

	var records []results.Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		record, err := results.DecodeJSON([]byte(text))
		if err != nil {
			return nil, engine.NewIOError(fmt.Sprintf("invalid record on line %d", line), err).WithComponent("render")
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("failed to read %q", path), err).WithComponent("render")
	}
	return records, nil
}

// groupByBatch splits records into consecutive runs sharing a batch id, so
// replay emits one event per recorded batch in the original order.
func groupByBatch(records []results.Record) [][]results.Record {
	var groups [][]results.Record
	for _, record := range records {
		n := len(groups)
		if n > 0 && groups[n-1][0].BatchID() == record.BatchID() {
			groups[n-1] = append(groups[n-1], record)
			continue
		}
		groups = append(groups, []results.Record{record})
	}
	return groups
}
