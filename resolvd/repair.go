package resolvd

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/ifnetns/ifnetns/log"
)

// Repair walks every named namespace that has a prepared resolver file and
// re-establishes the bind mount for each process missing it. One process's
// failure never aborts repair of the rest.
func (d *Daemon) Repair() {
	names, err := d.netnsClient.ListNamed()
	if err != nil {
		log.Errorf("Failed to list namespaces: %v", err)
		return
	}

	for _, ns := range names {
		source := filepath.Join(d.resolvDir, ns, "resolv.conf")
		if _, err := os.Stat(source); err != nil {
			// Namespace was not prepared by us; nothing to repair.
			continue
		}

		pids, err := d.proc.PidsInNamespace(ns)
		if err != nil {
			log.Errorf("Failed to enumerate processes in %s: %v", ns, err)
			continue
		}
		log.Debugf("Namespace %s has %d processes", ns, len(pids))

		for _, pid := range pids {
			has, err := d.proc.HasBindMount(pid, d.watchPath)
			if err != nil {
				log.Errorf("Failed to inspect mounts of pid %d: %v", pid, err)
				continue
			}
			if has {
				continue
			}
			// The usual enter-and-run primitive creates a brand-new mount
			// namespace, which would leave the process's own table
			// untouched; nsenter targets the mount namespace the process is
			// actually using.
			if _, err := d.plClient.ExecuteCommand(
				"nsenter", "--target", strconv.Itoa(pid), "--mount", "--",
				"mount", "--bind", source, d.watchPath); err != nil {
				log.Errorf("Failed to repair mount for pid %d in %s: %v", pid, ns, err)
				continue
			}
			log.Printf("Restored %s for pid %d in %s", d.watchPath, pid, ns)
		}
	}
}
