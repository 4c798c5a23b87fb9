// Package inventory runs one collection: detect the platform, collect, and
// write the inventory and application documents.
package inventory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/breeze-rmm/host-inventory/internal/collectors"
	"github.com/breeze-rmm/host-inventory/internal/logging"
	"github.com/breeze-rmm/host-inventory/internal/platform"
	"github.com/breeze-rmm/host-inventory/internal/report"
	"github.com/breeze-rmm/host-inventory/internal/runner"
)

// Workflow holds everything a run depends on. Zero-valued optional fields
// fall back to the real host.
type Workflow struct {
	Runner runner.Runner
	Log    *logging.Logger

	// Collector options passed to the platform collector.
	Collector collectors.Options

	// GOOS overrides runtime.GOOS for detection.
	GOOS string
	// Stdout receives the user-facing confirmation lines.
	Stdout io.Writer
	// Now supplies the document timestamp.
	Now func() time.Time
	// Describe supplies extra host details for the detection log line.
	Describe func(context.Context) (platform.HostDetails, error)
}

// Result reports what a successful run produced.
type Result struct {
	Platform     platform.Platform
	OutputPath   string
	AppsPath     string
	Fields       int
	Applications int
}

// Run executes Start → DetectPlatform → Collect → WriteInventory →
// WriteApplications. An unsupported platform returns an error wrapping
// platform.ErrUnsupported before anything is written; an unwritable output
// returns a *report.WriteError. A cancelled ctx stops the run before the next
// write so earlier documents are left in place.
func (w *Workflow) Run(ctx context.Context, outputPath, appsPath string) (Result, error) {
	log := w.logger()
	stdout := w.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	goos := w.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	log.Info("inventory run started", "goos", goos)

	p, err := platform.Detect(goos)
	if err != nil {
		log.Error("unsupported OS", "goos", goos, logging.KeyError, err)
		fmt.Fprintln(stdout, "Unsupported OS.")
		return Result{}, err
	}
	w.logDetected(ctx, log, p)
	if !w.Collector.Elevated {
		log.Warn("not running elevated, firewall and disk encryption probes may report " + runner.NotAvailable)
	}

	r := w.Runner
	if r == nil {
		r = runner.New(w.Log.L("runner"))
	}

	collector, err := collectors.New(p, r, w.Log.L("collector"), w.Collector)
	if err != nil {
		return Result{}, err
	}

	inv, apps := collector.Collect(ctx)
	if err := interrupted(ctx, log, "inventory"); err != nil {
		return Result{}, err
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	if err := report.WriteJSON(outputPath, report.NewOutputDocument(p, now(), inv)); err != nil {
		log.Error("failed to write inventory", logging.KeyPath, outputPath, logging.KeyError, err)
		return Result{}, err
	}
	log.Info("inventory written", logging.KeyPath, outputPath, "fields", len(inv))

	if err := interrupted(ctx, log, "applications"); err != nil {
		return Result{}, err
	}

	if err := report.WriteJSON(appsPath, report.NewApplicationsDocument(apps)); err != nil {
		log.Error("failed to write applications", logging.KeyPath, appsPath, logging.KeyError, err)
		return Result{}, err
	}
	log.Info("applications written", logging.KeyPath, appsPath, "count", len(apps))

	fmt.Fprintf(stdout, "Inventory saved to %s\n", outputPath)
	fmt.Fprintf(stdout, "Applications saved to %s\n", appsPath)

	return Result{
		Platform:     p,
		OutputPath:   outputPath,
		AppsPath:     appsPath,
		Fields:       len(inv),
		Applications: len(apps),
	}, nil
}

// interrupted returns an error once ctx is done. Nothing is written after that.
func interrupted(ctx context.Context, log *slog.Logger, doc string) error {
	if ctx.Err() == nil {
		return nil
	}
	log.Warn("run interrupted, not writing "+doc, logging.KeyError, ctx.Err())
	return fmt.Errorf("interrupted before writing %s: %w", doc, ctx.Err())
}

func (w *Workflow) logger() *slog.Logger {
	if w.Log == nil {
		w.Log = logging.Discard()
	}
	return w.Log.L("inventory")
}

func (w *Workflow) logDetected(ctx context.Context, log *slog.Logger, p platform.Platform) {
	describe := w.Describe
	if describe == nil {
		describe = platform.Describe
	}

	details, err := describe(ctx)
	if err != nil {
		log.Info("detected OS", "os", string(p))
		log.Debug("host details unavailable", logging.KeyError, err)
		return
	}
	log.Info("detected OS",
		"os", string(p),
		"platform", details.Platform,
		"family", details.PlatformFamily,
		"version", details.PlatformVersion,
		"kernel", details.KernelVersion,
		"arch", details.KernelArch,
	)
}
