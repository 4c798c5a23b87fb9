package collectors

import (
	"log/slog"

	"github.com/breeze-rmm/host-inventory/internal/platform"
	"github.com/breeze-rmm/host-inventory/internal/runner"
)

// NewMacOSCollector collects with scutil, sw_vers, sysctl and friends.
func NewMacOSCollector(r runner.Runner, log *slog.Logger, opts Options) HostInventoryCollector {
	probes := []probe{
		{FieldHostname, runner.Cmd("scutil", "--get", "LocalHostName")},
		{FieldOSVersion, runner.Cmd("sw_vers")},
		{FieldCPU, runner.Cmd("sysctl", "-n", "machdep.cpu.brand_string")},
		{FieldIPAddress, runner.Cmd("ipconfig", "getifaddr", "en0")},
		{FieldFirewall, runner.Cmd("/usr/libexec/ApplicationFirewall/socketfilterfw", "--getglobalstate")},
		{FieldFileSharing, runner.Cmd("sharing", "-l")},
		{FieldDiskEncryption, runner.Cmd("fdesetup", "status")},
	}
	apps := []runner.Command{
		runner.Cmd("ls", "/Applications"),
	}
	return newCommandCollector(platform.MacOS, r, log, probes, apps, opts.Overrides)
}

// NewLinuxCollector collects with hostname, lscpu, ufw, lsblk and the
// distribution package manager.
func NewLinuxCollector(r runner.Runner, log *slog.Logger, opts Options) HostInventoryCollector {
	// ufw needs root. Without it, sudo -n fails fast instead of prompting and
	// the field falls back to N/A.
	firewall := runner.Cmd("sudo", "-n", "ufw", "status")
	if opts.Elevated {
		firewall = runner.Cmd("ufw", "status")
	}

	probes := []probe{
		{FieldHostname, runner.Cmd("hostname")},
		{FieldOSVersion, runner.Cmd("cat", "/etc/os-release")},
		{FieldCPU, runner.Cmd("lscpu")},
		{FieldIPAddress, runner.Cmd("hostname", "-I")},
		{FieldFirewall, firewall},
		{FieldDiskEncryption, runner.Cmd("lsblk", "-o", "NAME,FSTYPE,MOUNTPOINT")},
	}
	apps := []runner.Command{
		runner.Cmd("dpkg", "-l"), // Debian/Ubuntu
		runner.Cmd("rpm", "-qa"), // RHEL/CentOS/Fedora
	}
	return newCommandCollector(platform.Linux, r, log, probes, apps, opts.Overrides)
}

// NewWindowsCollector collects with wmic, ipconfig, netsh and manage-bde.
func NewWindowsCollector(r runner.Runner, log *slog.Logger, opts Options) HostInventoryCollector {
	probes := []probe{
		{FieldHostname, runner.Cmd("hostname")},
		{FieldOSVersion, runner.Cmd("wmic", "os", "get", "Caption,Version", "/value")},
		{FieldCPU, runner.Cmd("wmic", "cpu", "get", "Name", "/value")},
		{FieldIPAddress, runner.Cmd("ipconfig")},
		{FieldFirewall, runner.Cmd("netsh", "advfirewall", "show", "allprofiles")},
		{FieldDiskEncryption, runner.Cmd("manage-bde", "-status")},
	}
	apps := []runner.Command{
		runner.Cmd("wmic", "product", "get", "Name,Version"),
	}
	return newCommandCollector(platform.Windows, r, log, probes, apps, opts.Overrides)
}
