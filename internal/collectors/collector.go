package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/breeze-rmm/host-inventory/internal/logging"
	"github.com/breeze-rmm/host-inventory/internal/platform"
	"github.com/breeze-rmm/host-inventory/internal/runner"
)

// Inventory field names.
const (
	FieldHostname       = "hostname"
	FieldOSVersion      = "os_version"
	FieldCPU            = "cpu"
	FieldIPAddress      = "ip_address"
	FieldFirewall       = "firewall"
	FieldFileSharing    = "file_sharing"
	FieldDiskEncryption = "disk_encryption"

	// FieldApplications names the application enumeration command in
	// command overrides. It is not an inventory field.
	FieldApplications = "applications"
)

// Inventory maps field names to raw command output or runner.NotAvailable.
type Inventory map[string]string

// Applications is the application/package enumeration, one entry per line.
type Applications []string

// HostInventoryCollector gathers the inventory for one platform.
type HostInventoryCollector interface {
	Platform() platform.Platform
	// Fields lists the inventory keys Collect produces, in collection order.
	Fields() []string
	Collect(ctx context.Context) (Inventory, Applications)
}

// Options tunes the commands a collector runs.
type Options struct {
	// Elevated reports whether the process already runs as root/administrator.
	Elevated bool
	// Overrides replaces the command for a field (or FieldApplications).
	Overrides map[string]runner.Command
}

// KnownFields returns every field name accepted in Options.Overrides.
func KnownFields() []string {
	return []string{
		FieldHostname,
		FieldOSVersion,
		FieldCPU,
		FieldIPAddress,
		FieldFirewall,
		FieldFileSharing,
		FieldDiskEncryption,
		FieldApplications,
	}
}

// New returns the collector for p.
func New(p platform.Platform, r runner.Runner, log *slog.Logger, opts Options) (HostInventoryCollector, error) {
	switch p {
	case platform.MacOS:
		return NewMacOSCollector(r, log, opts), nil
	case platform.Linux:
		return NewLinuxCollector(r, log, opts), nil
	case platform.Windows:
		return NewWindowsCollector(r, log, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", platform.ErrUnsupported, p)
	}
}

// probe is one inventory field and the command that fills it.
type probe struct {
	field string
	cmd   runner.Command
}

// commandCollector runs a fixed probe list plus an application enumeration.
type commandCollector struct {
	platform platform.Platform
	runner   runner.Runner
	log      *slog.Logger
	probes   []probe
	// apps are tried in order; the first that does not fail is used.
	apps []runner.Command
}

func newCommandCollector(p platform.Platform, r runner.Runner, log *slog.Logger, probes []probe, apps []runner.Command, overrides map[string]runner.Command) *commandCollector {
	if log == nil {
		log = logging.Discard().Logger
	}

	for i, pr := range probes {
		if cmd, ok := overrides[pr.field]; ok {
			log.Info("using command override", "field", pr.field, logging.KeyCommand, cmd.String())
			probes[i].cmd = cmd
		}
	}
	if cmd, ok := overrides[FieldApplications]; ok {
		log.Info("using command override", "field", FieldApplications, logging.KeyCommand, cmd.String())
		apps = []runner.Command{cmd}
	}

	return &commandCollector{
		platform: p,
		runner:   r,
		log:      log,
		probes:   probes,
		apps:     apps,
	}
}

func (c *commandCollector) Platform() platform.Platform {
	return c.platform
}

func (c *commandCollector) Fields() []string {
	fields := make([]string, len(c.probes))
	for i, p := range c.probes {
		fields[i] = p.field
	}
	return fields
}

// Collect runs every probe in order. A failed probe yields runner.NotAvailable
// for its field and collection carries on.
func (c *commandCollector) Collect(ctx context.Context) (Inventory, Applications) {
	c.log.Info("collecting inventory", "platform", string(c.platform))

	inv := make(Inventory, len(c.probes))
	for _, p := range c.probes {
		inv[p.field] = c.runner.Run(ctx, p.cmd)
	}

	return inv, c.collectApplications(ctx)
}

func (c *commandCollector) collectApplications(ctx context.Context) Applications {
	for _, cmd := range c.apps {
		if out := c.runner.Run(ctx, cmd); out != runner.NotAvailable {
			return SplitLines(out)
		}
	}
	c.log.Warn("no application enumeration command succeeded", "platform", string(c.platform))
	return Applications{}
}

// SplitLines turns raw enumeration output into one entry per line. The
// NotAvailable sentinel and empty output give an empty, non-nil list.
func SplitLines(raw string) Applications {
	if raw == runner.NotAvailable || raw == "" {
		return Applications{}
	}

	lines := strings.Split(raw, "\n")
	apps := make(Applications, len(lines))
	for i, line := range lines {
		apps[i] = strings.TrimSuffix(line, "\r")
	}
	return apps
}
