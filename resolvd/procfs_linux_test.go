package resolvd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeProcEntry fabricates /proc/<pid>/ns/net as a hard link to the
// namespace handle so the dev:ino comparison behaves like the real thing.
func writeProcEntry(t *testing.T, procRoot, pid, nsHandle string) {
	t.Helper()
	nsDir := filepath.Join(procRoot, pid, "ns")
	require.NoError(t, os.MkdirAll(nsDir, 0o755))
	require.NoError(t, os.Link(nsHandle, filepath.Join(nsDir, "net")))
}

func TestPidsInNamespace(t *testing.T) {
	root := t.TempDir()
	procRoot := filepath.Join(root, "proc")
	netnsDir := filepath.Join(root, "netns")
	require.NoError(t, os.MkdirAll(procRoot, 0o755))
	require.NoError(t, os.MkdirAll(netnsDir, 0o755))

	// two namespace handles with distinct identities
	target := filepath.Join(netnsDir, "default")
	other := filepath.Join(netnsDir, "other")
	require.NoError(t, os.WriteFile(target, nil, 0o444))
	require.NoError(t, os.WriteFile(other, nil, 0o444))

	writeProcEntry(t, procRoot, "100", target)
	writeProcEntry(t, procRoot, "200", other)
	writeProcEntry(t, procRoot, "300", target)
	// non-numeric entries are skipped
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "self"), 0o755))

	p := &ProcFS{ProcRoot: procRoot, NetnsDir: netnsDir}
	pids, err := p.PidsInNamespace("default")
	require.NoError(t, err)
	require.ElementsMatch(t, []int{100, 300}, pids)
}

func TestPidsInNamespaceMissing(t *testing.T) {
	root := t.TempDir()
	p := &ProcFS{ProcRoot: root, NetnsDir: root}
	_, err := p.PidsInNamespace("ghost")
	require.Error(t, err)
}

func TestHasBindMount(t *testing.T) {
	procRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "100"), 0o755))
	mounts := "proc /proc proc rw,nosuid 0 0\n" +
		"/dev/sda1 /etc/netns/default/resolv.conf ext4 rw 0 0\n" +
		"/dev/sda1 /etc/resolv.conf ext4 rw,relatime 0 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "100", "mounts"), []byte(mounts), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "200"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "200", "mounts"),
		[]byte("proc /proc proc rw 0 0\n"), 0o644))

	p := &ProcFS{ProcRoot: procRoot}

	has, err := p.HasBindMount(100, "/etc/resolv.conf")
	require.NoError(t, err)
	require.True(t, has)

	has, err = p.HasBindMount(200, "/etc/resolv.conf")
	require.NoError(t, err)
	require.False(t, has)
}

func TestHasBindMountVanishedProcess(t *testing.T) {
	p := &ProcFS{ProcRoot: t.TempDir()}
	_, err := p.HasBindMount(4242, "/etc/resolv.conf")
	require.Error(t, err)
}
