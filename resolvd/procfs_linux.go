package resolvd

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ProcScanner enumerates processes by network namespace and inspects their
// mount tables.
type ProcScanner interface {
	// PidsInNamespace returns every pid whose network namespace is the named
	// one.
	PidsInNamespace(ns string) ([]int, error)
	// HasBindMount reports whether the pid's mount table carries a mount on
	// target.
	HasBindMount(pid int, target string) (bool, error)
}

// ProcFS scans the real /proc. Roots are overridable for tests.
type ProcFS struct {
	ProcRoot string // /proc
	NetnsDir string // /run/netns
}

func NewProcFS() *ProcFS {
	return &ProcFS{
		ProcRoot: "/proc",
		NetnsDir: "/run/netns",
	}
}

func (p *ProcFS) PidsInNamespace(ns string) ([]int, error) {
	var nsStat unix.Stat_t
	if err := unix.Stat(filepath.Join(p.NetnsDir, ns), &nsStat); err != nil {
		return nil, errors.Wrapf(err, "failed to stat namespace %s", ns)
	}

	entries, err := os.ReadDir(p.ProcRoot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read proc")
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		// Processes come and go while we scan; a vanished one is not an
		// error.
		var pidStat unix.Stat_t
		if err := unix.Stat(filepath.Join(p.ProcRoot, entry.Name(), "ns", "net"), &pidStat); err != nil {
			continue
		}
		if pidStat.Dev == nsStat.Dev && pidStat.Ino == nsStat.Ino {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (p *ProcFS) HasBindMount(pid int, target string) (bool, error) {
	mounts := filepath.Join(p.ProcRoot, strconv.Itoa(pid), "mounts")
	f, err := os.Open(mounts)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open %s", mounts)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// fstab format: device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == target {
			return true, nil
		}
	}
	return false, errors.Wrapf(scanner.Err(), "failed to read %s", mounts)
}
