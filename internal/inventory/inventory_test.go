package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-rmm/host-inventory/internal/logging"
	"github.com/breeze-rmm/host-inventory/internal/platform"
	"github.com/breeze-rmm/host-inventory/internal/report"
	"github.com/breeze-rmm/host-inventory/internal/runner/runnertest"
)

type outputDoc struct {
	OSDetected string            `json:"os_detected"`
	Timestamp  string            `json:"timestamp"`
	Inventory  map[string]string `json:"inventory"`
}

type appsDoc struct {
	Applications []string `json:"applications"`
}

func macOSStub() *runnertest.Stub {
	stub := runnertest.NewStub(map[string]string{})
	stub.Outputs["scutil --get LocalHostName"] = "studio"
	stub.Outputs["sw_vers"] = "ProductName:\tmacOS\nProductVersion:\t14.5\nBuildVersion:\t23F79"
	stub.Outputs["sysctl -n machdep.cpu.brand_string"] = "Apple M2 Max"
	stub.Outputs["ipconfig getifaddr en0"] = "192.168.1.20"
	stub.Outputs["/usr/libexec/ApplicationFirewall/socketfilterfw --getglobalstate"] = "Firewall is enabled. (State = 1)"
	stub.Outputs["sharing -l"] = "No share point records."
	stub.Outputs["fdesetup status"] = "FileVault is On."
	stub.Outputs["ls /Applications"] = "Safari.app\nSlack.app\nXcode.app"
	return stub
}

func noDetails(context.Context) (platform.HostDetails, error) {
	return platform.HostDetails{}, errors.New("not in tests")
}

func newWorkflow(goos string, stub *runnertest.Stub, logs, stdout *bytes.Buffer, now time.Time) *Workflow {
	return &Workflow{
		Runner:   stub,
		Log:      logging.New(logs, "text", "info"),
		GOOS:     goos,
		Stdout:   stdout,
		Now:      func() time.Time { return now },
		Describe: noDetails,
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestRunMacOSEndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	apps := filepath.Join(dir, "apps.json")

	var logs, stdout bytes.Buffer
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	w := newWorkflow("darwin", macOSStub(), &logs, &stdout, now)

	result, err := w.Run(context.Background(), out, apps)
	require.NoError(t, err)
	assert.Equal(t, platform.MacOS, result.Platform)
	assert.Equal(t, 7, result.Fields)
	assert.Equal(t, 3, result.Applications)

	var doc outputDoc
	readJSON(t, out, &doc)
	assert.Equal(t, "macOS", doc.OSDetected)
	ts, err := time.Parse(time.RFC3339Nano, doc.Timestamp)
	require.NoError(t, err)
	assert.True(t, ts.Equal(now))
	assert.Equal(t, map[string]string{
		"hostname":        "studio",
		"os_version":      "ProductName:\tmacOS\nProductVersion:\t14.5\nBuildVersion:\t23F79",
		"cpu":             "Apple M2 Max",
		"ip_address":      "192.168.1.20",
		"firewall":        "Firewall is enabled. (State = 1)",
		"file_sharing":    "No share point records.",
		"disk_encryption": "FileVault is On.",
	}, doc.Inventory)

	var ad appsDoc
	readJSON(t, apps, &ad)
	assert.Equal(t, []string{"Safari.app", "Slack.app", "Xcode.app"}, ad.Applications)

	assert.Equal(t, "Inventory saved to "+out+"\nApplications saved to "+apps+"\n", stdout.String())

	logText := logs.String()
	assert.Contains(t, logText, `msg="inventory run started"`)
	assert.Contains(t, logText, `msg="detected OS" component=inventory os=macOS`)
	assert.Contains(t, logText, `msg="inventory written"`)
	assert.Contains(t, logText, `msg="applications written"`)
}

func TestRunUnsupportedPlatformWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	apps := filepath.Join(dir, "apps.json")

	var logs, stdout bytes.Buffer
	stub := macOSStub()
	w := newWorkflow("plan9", stub, &logs, &stdout, time.Now())

	_, err := w.Run(context.Background(), out, apps)

	require.ErrorIs(t, err, platform.ErrUnsupported)
	assert.Equal(t, "Unsupported OS.\n", stdout.String())
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Empty(t, stub.Calls(), "no command runs on an unsupported platform")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(apps)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunTwiceOverwrites(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	apps := filepath.Join(dir, "apps.json")

	first := runnertest.NewStub(map[string]string{
		"hostname": "old-name",
		"dpkg -l":  "pkg-a\npkg-b\npkg-c",
	})
	_, err := newWorkflow("linux", first, &bytes.Buffer{}, &bytes.Buffer{}, time.Unix(1000, 0)).Run(context.Background(), out, apps)
	require.NoError(t, err)

	second := runnertest.NewStub(map[string]string{
		"hostname": "new-name",
		"rpm -qa":  "only-one",
	})
	_, err = newWorkflow("linux", second, &bytes.Buffer{}, &bytes.Buffer{}, time.Unix(2000, 0)).Run(context.Background(), out, apps)
	require.NoError(t, err)

	var doc outputDoc
	readJSON(t, out, &doc)
	assert.Equal(t, "Linux", doc.OSDetected)
	assert.Equal(t, "new-name", doc.Inventory["hostname"])
	assert.Equal(t, "N/A", doc.Inventory["cpu"])
	assert.Equal(t, time.Unix(2000, 0).UTC().Format(report.TimestampLayout), doc.Timestamp)

	var ad appsDoc
	readJSON(t, apps, &ad)
	assert.Equal(t, []string{"only-one"}, ad.Applications)
}

func TestRunFailedEnumerationWritesEmptyList(t *testing.T) {
	dir := t.TempDir()
	apps := filepath.Join(dir, "apps.json")

	_, err := newWorkflow("windows", runnertest.NewStub(nil), &bytes.Buffer{}, &bytes.Buffer{}, time.Now()).
		Run(context.Background(), filepath.Join(dir, "out.json"), apps)
	require.NoError(t, err)

	data, err := os.ReadFile(apps)
	require.NoError(t, err)
	assert.JSONEq(t, `{"applications": []}`, string(data))
}

func TestRunWriteFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "missing", "out.json")
	apps := filepath.Join(dir, "apps.json")

	var logs, stdout bytes.Buffer
	_, err := newWorkflow("darwin", macOSStub(), &logs, &stdout, time.Now()).Run(context.Background(), out, apps)

	var writeErr *report.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, out, writeErr.Path)
	assert.Contains(t, logs.String(), `msg="failed to write inventory"`)
	assert.Empty(t, stdout.String())

	_, statErr := os.Stat(apps)
	assert.True(t, os.IsNotExist(statErr), "applications are not written after the inventory write fails")
}

func TestRunLogsHostDetails(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	w := newWorkflow("linux", runnertest.NewStub(nil), &logs, &bytes.Buffer{}, time.Now())
	w.Collector.Elevated = true
	w.Describe = func(context.Context) (platform.HostDetails, error) {
		return platform.HostDetails{Platform: "ubuntu", PlatformFamily: "debian", PlatformVersion: "24.04", KernelVersion: "6.8.0", KernelArch: "x86_64"}, nil
	}

	_, err := w.Run(context.Background(), filepath.Join(dir, "o.json"), filepath.Join(dir, "a.json"))
	require.NoError(t, err)

	logText := logs.String()
	assert.Contains(t, logText, "platform=ubuntu")
	assert.Contains(t, logText, "family=debian")
	assert.NotContains(t, logText, "not running elevated")
}

func TestRunCancelledKeepsPreviousDocuments(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	apps := filepath.Join(dir, "apps.json")
	require.NoError(t, os.WriteFile(out, []byte(`{"previous":"good"}`), 0644))
	require.NoError(t, os.WriteFile(apps, []byte(`{"applications":["kept"]}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs, stdout bytes.Buffer
	_, err := newWorkflow("linux", runnertest.NewStub(nil), &logs, &stdout, time.Now()).Run(ctx, out, apps)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stdout.String())
	assert.Contains(t, logs.String(), `msg="run interrupted, not writing inventory"`)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{"previous":"good"}`, string(data))
	data, err = os.ReadFile(apps)
	require.NoError(t, err)
	assert.Equal(t, `{"applications":["kept"]}`, string(data))
}

func TestRunCancelledAfterInventoryKeepsApplications(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	apps := filepath.Join(dir, "apps.json")
	require.NoError(t, os.WriteFile(apps, []byte(`{"applications":["kept"]}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout bytes.Buffer
	w := newWorkflow("darwin", macOSStub(), &bytes.Buffer{}, &stdout, time.Now())
	w.Now = func() time.Time {
		// The signal lands while the inventory document is being written.
		cancel()
		return time.Now()
	}

	_, err := w.Run(ctx, out, apps)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stdout.String())

	var doc outputDoc
	readJSON(t, out, &doc)
	assert.Equal(t, "studio", doc.Inventory["hostname"])

	data, err := os.ReadFile(apps)
	require.NoError(t, err)
	assert.Equal(t, `{"applications":["kept"]}`, string(data))
}
