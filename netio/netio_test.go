package netio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSysfs builds a synthetic /sys/class/net tree. A phy name makes the
// interface wireless.
func writeSysfs(t *testing.T, root, ifName, phy string) {
	t.Helper()
	dir := filepath.Join(root, ifName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if phy != "" {
		phyDir := filepath.Join(dir, "phy80211")
		require.NoError(t, os.MkdirAll(phyDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(phyDir, "name"), []byte(phy+"\n"), 0o644))
	}
}

func TestWirelessPhy(t *testing.T) {
	tests := []struct {
		name         string
		ifName       string
		phy          string
		wantWireless bool
	}{
		{
			name:         "wireless interface exposes phy80211",
			ifName:       "wlan0",
			phy:          "phy0",
			wantWireless: true,
		},
		{
			name:   "wired interface has no phy80211",
			ifName: "eth0",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeSysfs(t, root, tt.ifName, tt.phy)
			n := &NetIO{SysfsRoot: root}

			phy, wireless, err := n.WirelessPhy(tt.ifName)
			require.NoError(t, err)
			require.Equal(t, tt.wantWireless, wireless)
			require.Equal(t, tt.phy, phy)
		})
	}
}

func TestWirelessPhyMissingInterface(t *testing.T) {
	n := &NetIO{SysfsRoot: t.TempDir()}
	phy, wireless, err := n.WirelessPhy("nope0")
	require.NoError(t, err)
	require.False(t, wireless)
	require.Empty(t, phy)
}

func TestWirelessPhyEmptyName(t *testing.T) {
	root := t.TempDir()
	phyDir := filepath.Join(root, "wlan0", "phy80211")
	require.NoError(t, os.MkdirAll(phyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(phyDir, "name"), []byte("\n"), 0o644))

	n := &NetIO{SysfsRoot: root}
	_, _, err := n.WirelessPhy("wlan0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty phy80211 name")
}
