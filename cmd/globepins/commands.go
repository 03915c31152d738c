package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	service "github.com/okian/globepins/internal/app"
	"github.com/okian/globepins/internal/config"
	"github.com/okian/globepins/internal/domain/types"
	"github.com/okian/globepins/internal/ingest"
	"github.com/okian/globepins/internal/render"
	"github.com/okian/globepins/pkg/logger"
)

type command func(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error)

var commands = map[string]command{
	"watch":  watchCmd,
	"import": importCmd,
	"pin":    pinCmd(true),
	"unpin":  pinCmd(false),
	"toggle": toggleCmd,
	"brand":  brandCmd,
	"search": searchCmd,
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func watchCmd(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
	fs := newFlags("watch")
	if err := fs.Parse(args); err != nil {
		return exitUsage, err
	}
	s, stop, err := startSession(ctx, cfg, service.WithRenderOutput(stdout))
	if err != nil {
		return exitFailed, err
	}
	defer stop()

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr, s.Stats)
	}
	go startSystemMetricsUpdater(ctx)

	<-ctx.Done()
	logger.Get().Info(context.Background(), "shutting down...")
	return exitOK, nil
}

func importCmd(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
	fs := newFlags("import")
	path := fs.String("file", "", "CSV file to import")
	if err := fs.Parse(args); err != nil {
		return exitUsage, err
	}
	if *path == "" {
		return exitUsage, errors.New("import: -file is required")
	}
	content, err := os.ReadFile(*path)
	if err != nil {
		return exitFailed, err
	}

	s, stop, err := startSession(ctx, cfg, service.WithRenderSink(render.Nop{}))
	if err != nil {
		return exitFailed, err
	}
	defer stop()
	ctl, err := s.Controller()
	if err != nil {
		return exitFailed, err
	}

	log := logger.Get()
	done := make(chan ingest.Outcome, 1)
	err = ctl.Import(ctx, string(content),
		func(p ingest.Progress) {
			log.Info(ctx, "batch committed",
				logger.Int("batch", p.Batch),
				logger.Int("committed", p.Committed),
				logger.Int("total", p.Total),
			)
		},
		func(o ingest.Outcome) { done <- o },
	)
	if err != nil {
		return exitFailed, err
	}
	out := <-done
	if err := writeJSON(stdout, out); err != nil {
		return exitFailed, err
	}
	switch out.Status {
	case ingest.StatusSuccess:
		return exitOK, nil
	case ingest.StatusPaused:
		return exitPaused, nil
	default:
		return exitFailed, out.Err
	}
}

func idFlag(name string, args []string, extra func(fs *flag.FlagSet)) (string, error) {
	fs := newFlags(name)
	id := fs.String("id", "", "canonical city id")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *id == "" {
		return "", fmt.Errorf("%s: -id is required", name)
	}
	return *id, nil
}

// controllerFor starts a session and waits until the overlay is applied so
// overlay-only cities can be resolved.
func controllerFor(ctx context.Context, cfg *config.Config) (*service.Controller, func(), error) {
	s, stop, err := startSession(ctx, cfg, service.WithRenderSink(render.Nop{}))
	if err != nil {
		return nil, nil, err
	}
	views, err := s.Views()
	if err == nil {
		err = views.Flush(ctx)
	}
	if err != nil {
		stop()
		return nil, nil, err
	}
	ctl, err := s.Controller()
	if err != nil {
		stop()
		return nil, nil, err
	}
	return ctl, stop, nil
}

func pinCmd(pinned bool) command {
	name := "unpin"
	if pinned {
		name = "pin"
	}
	return func(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
		id, err := idFlag(name, args, nil)
		if err != nil {
			return exitUsage, err
		}
		ctl, stop, err := controllerFor(ctx, cfg)
		if err != nil {
			return exitFailed, err
		}
		defer stop()
		if err := ctl.SetPin(ctx, id, pinned); err != nil {
			return exitFailed, err
		}
		return exitOK, writeJSON(stdout, map[string]any{"id": id, "is_pinned": pinned})
	}
}

func toggleCmd(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
	id, err := idFlag("toggle", args, nil)
	if err != nil {
		return exitUsage, err
	}
	ctl, stop, err := controllerFor(ctx, cfg)
	if err != nil {
		return exitFailed, err
	}
	defer stop()
	pinned, err := ctl.TogglePin(ctx, id)
	if err != nil {
		return exitFailed, err
	}
	return exitOK, writeJSON(stdout, map[string]any{"id": id, "is_pinned": pinned})
}

func brandCmd(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
	var brand *string
	id, err := idFlag("brand", args, func(fs *flag.FlagSet) {
		brand = fs.String("brand", "", "academy, federation, plaza or empty to clear")
	})
	if err != nil {
		return exitUsage, err
	}
	ctl, stop, err := controllerFor(ctx, cfg)
	if err != nil {
		return exitFailed, err
	}
	defer stop()
	if err := ctl.AssignBrand(ctx, id, *brand); err != nil {
		return exitFailed, err
	}
	return exitOK, writeJSON(stdout, map[string]any{"id": id, "brand": *brand})
}

func searchCmd(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) (int, error) {
	fs := newFlags("search")
	q := fs.String("q", "", "case-insensitive label substring")
	if err := fs.Parse(args); err != nil {
		return exitUsage, err
	}
	ctl, stop, err := controllerFor(ctx, cfg)
	if err != nil {
		return exitFailed, err
	}
	defer stop()

	results := ctl.Search(ctx, *q)
	if results == nil {
		results = []types.Point{}
	}
	return exitOK, writeJSON(stdout, results)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
