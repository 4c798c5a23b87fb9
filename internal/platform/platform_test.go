package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		goos string
		want Platform
	}{
		{"darwin", MacOS},
		{"linux", Linux},
		{"windows", Windows},
	}
	for _, tc := range cases {
		t.Run(tc.goos, func(t *testing.T) {
			got, err := Detect(tc.goos)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	for _, goos := range []string{"plan9", "freebsd", "js", ""} {
		got, err := Detect(goos)
		assert.ErrorIs(t, err, ErrUnsupported, goos)
		assert.Empty(t, got)
	}
}

func TestCurrent(t *testing.T) {
	switch runtime.GOOS {
	case "darwin", "linux", "windows":
	default:
		t.Skip("not a supported platform")
	}
	p, err := Current()
	require.NoError(t, err)
	assert.NotEmpty(t, p)
}

func TestDescribe(t *testing.T) {
	details, err := Describe(context.Background())
	if err != nil {
		t.Skipf("host info unavailable: %v", err)
	}
	assert.NotEqual(t, HostDetails{}, details)
}
