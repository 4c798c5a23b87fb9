// Package platform classifies the running operating system.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Platform is one of the operating systems inventory can be collected on.
type Platform string

const (
	MacOS   Platform = "macOS"
	Linux   Platform = "Linux"
	Windows Platform = "Windows"
)

// ErrUnsupported is returned for any OS other than macOS, Linux or Windows.
var ErrUnsupported = errors.New("unsupported platform")

// Detect maps a GOOS value to a Platform.
func Detect(goos string) (Platform, error) {
	switch goos {
	case "darwin":
		return MacOS, nil
	case "linux":
		return Linux, nil
	case "windows":
		return Windows, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, goos)
	}
}

// Current detects the platform this binary is running on.
func Current() (Platform, error) {
	return Detect(runtime.GOOS)
}

// HostDetails is extra context about the host, logged next to the detected
// platform. It is never written to the inventory documents.
type HostDetails struct {
	Platform        string
	PlatformFamily  string
	PlatformVersion string
	KernelVersion   string
	KernelArch      string
}

// Describe looks up HostDetails for the running host.
func Describe(ctx context.Context) (HostDetails, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostDetails{}, err
	}
	return HostDetails{
		Platform:        info.Platform,
		PlatformFamily:  info.PlatformFamily,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
	}, nil
}
