package network

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netlink"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/store"
)

const (
	loopbackIf       = "lo"
	defaultResolvDir = "/etc/netns"
	resolvConfName   = "resolv.conf"
)

var errNamespaceManager = errors.New("NamespaceManager Error")

func newErrorNamespaceManager(errStr string) error {
	return fmt.Errorf("%w : %s", errNamespaceManager, errStr)
}

// NamespaceManager creates and destroys named network namespaces together
// with their resolver scaffold and record file.
type NamespaceManager struct {
	resolvDir string

	netnsClient netns.NetnsInterface
	nl          netlink.NetlinkInterface
	stateStore  *store.Store
	mover       *InterfaceMover
}

func NewNamespaceManager(
	netnsClient netns.NetnsInterface,
	nl netlink.NetlinkInterface,
	stateStore *store.Store,
	mover *InterfaceMover,
) *NamespaceManager {
	return &NamespaceManager{
		resolvDir:   defaultResolvDir,
		netnsClient: netnsClient,
		nl:          nl,
		stateStore:  stateStore,
		mover:       mover,
	}
}

// ResolvConfPath returns the namespace-scoped resolver file, the one
// ip-netns bind-mounts onto /etc/resolv.conf for processes it starts inside
// the namespace.
func (m *NamespaceManager) ResolvConfPath(name string) string {
	return filepath.Join(m.resolvDir, name, resolvConfName)
}

// Create builds the namespace, its resolver scaffold, its loopback, and an
// empty record file. Creating a namespace that already exists is a no-op
// success.
func (m *NamespaceManager) Create(name string) error {
	exists, err := namespaceExists(m.netnsClient, name)
	if err != nil {
		return newErrorNamespaceManager(err.Error())
	}
	if exists {
		log.Printf("Namespace %s already exists", name)
		return nil
	}

	// NewNamed switches the calling thread into the new namespace, so pin
	// the thread and switch back before touching anything else.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := m.netnsClient.Get()
	if err != nil {
		return newErrorNamespaceManager("failed to get current namespace: " + err.Error())
	}
	defer m.netnsClient.Close(origNS)

	log.Printf("Creating namespace %s", name)
	nsFd, err := m.netnsClient.NewNamed(name)
	if err != nil {
		return newErrorNamespaceManager("failed to create namespace: " + err.Error())
	}
	defer m.netnsClient.Close(nsFd)

	if err := m.netnsClient.Set(origNS); err != nil {
		return newErrorNamespaceManager("failed to return to original namespace: " + err.Error())
	}

	if err := m.createResolvScaffold(name); err != nil {
		return newErrorNamespaceManager(err.Error())
	}

	// The namespace is usable without loopback, so this is only a warning.
	if err := m.bringUpLoopback(nsFd, origNS); err != nil {
		log.Warnf("Failed to bring up loopback in %s: %v", name, err)
	}

	if err := m.stateStore.Init(name); err != nil {
		return newErrorNamespaceManager("failed to initialize record file: " + err.Error())
	}
	return nil
}

// createResolvScaffold makes /etc/netns/<name> and an empty, exclusively
// created resolv.conf. A stale file is removed first; failing to replace it
// is fatal rather than silently overwriting.
func (m *NamespaceManager) createResolvScaffold(name string) error {
	dir := filepath.Join(m.resolvDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	resolvConf := m.ResolvConfPath(name)
	if err := os.Remove(resolvConf); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale %s: %w", resolvConf, err)
	}
	f, err := os.OpenFile(resolvConf, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", resolvConf, err)
	}
	return f.Close()
}

// bringUpLoopback enters the namespace, brings lo up, and returns to the
// original namespace. Caller holds the OS thread lock.
func (m *NamespaceManager) bringUpLoopback(nsFd, origNS uintptr) error {
	if err := m.netnsClient.Set(nsFd); err != nil {
		return err
	}
	linkErr := m.nl.SetLinkState(loopbackIf, true)
	if err := m.netnsClient.Set(origNS); err != nil {
		return err
	}
	return linkErr
}

// Destroy removes every interface still recorded for the namespace, then the
// resolver scaffold, the namespace itself, and its record file. Teardown is
// best effort: each step runs even when an earlier one failed, and
// sub-failures accumulate in the result. Only a missing namespace is fatal.
func (m *NamespaceManager) Destroy(name string) (*TeardownResult, error) {
	exists, err := namespaceExists(m.netnsClient, name)
	if err != nil {
		return nil, newErrorNamespaceManager(err.Error())
	}
	if !exists {
		return nil, fmt.Errorf("%w : %s", ErrNamespaceNotFound, name)
	}

	res := &TeardownResult{}

	names, err := m.stateStore.Interfaces(name)
	if err != nil {
		res.warnf("failed to enumerate recorded interfaces for %s: %v", name, err)
	}
	for _, ifName := range names {
		log.Printf("Removing interface %s from %s", ifName, name)
		moveRes, err := m.mover.MoveOut(name, ifName)
		if err != nil {
			res.warnf("failed to remove interface %s from %s: %v", ifName, name, err)
		}
		res.merge(moveRes)
	}

	resolvConf := m.ResolvConfPath(name)
	if err := os.Remove(resolvConf); err != nil && !os.IsNotExist(err) {
		res.warnf("failed to remove %s: %v", resolvConf, err)
	}
	if err := os.Remove(filepath.Join(m.resolvDir, name)); err != nil && !os.IsNotExist(err) {
		res.warnf("failed to remove resolver directory for %s: %v", name, err)
	}

	log.Printf("Deleting namespace %s", name)
	if err := m.netnsClient.DeleteNamed(name); err != nil {
		res.warnf("failed to delete namespace %s: %v", name, err)
	}

	if err := m.stateStore.Remove(name); err != nil {
		res.warnf("failed to remove record file for %s: %v", name, err)
	}
	return res, nil
}

// namespaceExists distinguishes "no such namespace" from real lookup
// failures.
func namespaceExists(client netns.NetnsInterface, name string) (bool, error) {
	fd, err := client.GetFromName(name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	client.Close(fd)
	return true, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

// inNamespace runs fn on a locked OS thread with the current network
// namespace switched to nsFd, restoring the original namespace afterward.
func inNamespace(client netns.NetnsInterface, nsFd uintptr, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := client.Get()
	if err != nil {
		return fmt.Errorf("failed to get current namespace: %w", err)
	}
	defer client.Close(origNS)

	if err := client.Set(nsFd); err != nil {
		return fmt.Errorf("failed to enter namespace: %w", err)
	}
	fnErr := fn()
	if err := client.Set(origNS); err != nil {
		return fmt.Errorf("failed to return to original namespace: %w", err)
	}
	return fnErr
}
