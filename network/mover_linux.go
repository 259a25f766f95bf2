package network

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	retry "github.com/avast/retry-go/v3"
	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netio"
	"github.com/ifnetns/ifnetns/netlink"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/platform"
	"github.com/ifnetns/ifnetns/store"
)

// rootNsPid: "the namespace of pid 1" is the convention for the root
// namespace on both move directions.
const rootNsPid = 1

// placeholderTTL bounds how long the wireless-move placeholder may linger if
// reaping it fails.
const placeholderTTL = "30"

var (
	errInterfaceMover       = errors.New("InterfaceMover Error")
	errPlaceholderNotInside = errors.New("placeholder process not yet inside namespace")
)

func newErrorInterfaceMover(errStr string) error {
	return fmt.Errorf("%w : %s", errInterfaceMover, errStr)
}

// InterfaceMover moves interfaces into and out of namespaces. Wired
// interfaces move by name over netlink; wireless interfaces move by their
// physical radio, which the kernel only accepts by the pid of a process
// already inside the target namespace.
type InterfaceMover struct {
	netnsClient netns.NetnsInterface
	nl          netlink.NetlinkInterface
	netioshim   netio.NetIOInterface
	plClient    platform.ExecClient
	stateStore  *store.Store

	readyAttempts uint
	readyDelay    time.Duration
}

func NewInterfaceMover(
	netnsClient netns.NetnsInterface,
	nl netlink.NetlinkInterface,
	netioshim netio.NetIOInterface,
	plClient platform.ExecClient,
	stateStore *store.Store,
) *InterfaceMover {
	return &InterfaceMover{
		netnsClient:   netnsClient,
		nl:            nl,
		netioshim:     netioshim,
		plClient:      plClient,
		stateStore:    stateStore,
		readyAttempts: 50,
		readyDelay:    100 * time.Millisecond,
	}
}

// MoveIn assigns an interface to the namespace, persists its record, and
// runs the up hook when a script is given. A hook failure is reported but
// does not roll back the completed move; the interface stays assigned,
// unconfigured.
func (m *InterfaceMover) MoveIn(ns, interfaceName, script string) (store.Record, error) {
	exists, err := namespaceExists(m.netnsClient, ns)
	if err != nil {
		return store.Record{}, newErrorInterfaceMover(err.Error())
	}
	if !exists {
		return store.Record{}, fmt.Errorf("%w : %s", ErrNamespaceNotFound, ns)
	}

	if _, err := m.netioshim.GetNetworkInterfaceByName(interfaceName); err != nil {
		return store.Record{}, fmt.Errorf("%w : %s: %v", ErrInterfaceNotFound, interfaceName, err)
	}

	if _, found, err := m.stateStore.Lookup(ns, interfaceName); err != nil {
		return store.Record{}, newErrorInterfaceMover(err.Error())
	} else if found {
		return store.Record{}, fmt.Errorf("%w : %s in %s", ErrAlreadyAssigned, interfaceName, ns)
	}

	phy, wireless, err := m.netioshim.WirelessPhy(interfaceName)
	if err != nil {
		return store.Record{}, newErrorInterfaceMover(err.Error())
	}

	if wireless {
		log.Printf("Moving wireless interface %s (radio %s) into %s", interfaceName, phy, ns)
		err = m.moveRadioIn(ns, phy)
	} else {
		log.Printf("Moving interface %s into %s", interfaceName, ns)
		err = m.moveLinkIn(ns, interfaceName)
	}
	if err != nil {
		return store.Record{}, newErrorInterfaceMover(err.Error())
	}

	rec := store.Record{
		Key:    store.KeyFor(interfaceName),
		Name:   interfaceName,
		Phy:    phy,
		Script: script,
	}
	if err := m.stateStore.Append(ns, rec); err != nil {
		return store.Record{}, newErrorInterfaceMover("failed to persist record: " + err.Error())
	}

	if err := ConfigClientFor(ns, script, m.plClient).ConfigureUp(interfaceName); err != nil {
		log.Warnf("Up hook failed for %s in %s, interface stays assigned unconfigured: %v",
			interfaceName, ns, err)
	}
	return rec, nil
}

func (m *InterfaceMover) moveLinkIn(ns, interfaceName string) error {
	nsFd, err := m.netnsClient.GetFromName(ns)
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", ns, err)
	}
	defer m.netnsClient.Close(nsFd)
	return m.nl.SetLinkNetNs(interfaceName, nsFd)
}

// moveRadioIn moves a physical radio. The kernel primitive takes the pid of
// a process inside the target namespace, so a placeholder sleep is started
// there and the move waits until the placeholder is confirmed inside the
// namespace instead of trusting a fixed delay. The placeholder is reaped
// afterward.
func (m *InterfaceMover) moveRadioIn(ns, phy string) error {
	placeholder, err := m.plClient.StartCommand("ip", "netns", "exec", ns, "sleep", placeholderTTL)
	if err != nil {
		return fmt.Errorf("failed to start placeholder in %s: %w", ns, err)
	}
	defer func() {
		if err := placeholder.Kill(); err != nil {
			log.Warnf("Failed to kill placeholder pid %d: %v", placeholder.Pid(), err)
		}
		_ = placeholder.Wait()
	}()

	nsFd, err := m.netnsClient.GetFromName(ns)
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", ns, err)
	}
	defer m.netnsClient.Close(nsFd)

	if err := m.waitForPlaceholder(placeholder.Pid(), nsFd); err != nil {
		return fmt.Errorf("placeholder pid %d never entered %s: %w", placeholder.Pid(), ns, err)
	}

	if _, err := m.plClient.ExecuteCommand(
		"iw", "phy", phy, "set", "netns", strconv.Itoa(placeholder.Pid())); err != nil {
		return fmt.Errorf("failed to move radio %s: %w", phy, err)
	}
	return nil
}

// waitForPlaceholder polls until the placeholder's network namespace matches
// the target.
func (m *InterfaceMover) waitForPlaceholder(pid int, nsFd uintptr) error {
	return retry.Do(
		func() error {
			pidFd, err := m.netnsClient.GetFromPid(pid)
			if err != nil {
				return err
			}
			defer m.netnsClient.Close(pidFd)
			if !m.netnsClient.Equal(pidFd, nsFd) {
				return errPlaceholderNotInside
			}
			return nil
		},
		retry.Attempts(m.readyAttempts),
		retry.Delay(m.readyDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// MoveOut returns an interface to the root namespace. The down hook and the
// move itself are best effort; the record is deleted regardless so the
// namespace can always be torn down.
func (m *InterfaceMover) MoveOut(ns, interfaceName string) (*TeardownResult, error) {
	exists, err := namespaceExists(m.netnsClient, ns)
	if err != nil {
		return nil, newErrorInterfaceMover(err.Error())
	}
	if !exists {
		return nil, fmt.Errorf("%w : %s", ErrNamespaceNotFound, ns)
	}

	rec, found, err := m.stateStore.Lookup(ns, interfaceName)
	if err != nil {
		return nil, newErrorInterfaceMover(err.Error())
	}
	if !found {
		return nil, fmt.Errorf("%w : %s in %s", ErrNotAssigned, interfaceName, ns)
	}

	nsFd, err := m.netnsClient.GetFromName(ns)
	if err != nil {
		return nil, newErrorInterfaceMover(err.Error())
	}
	defer m.netnsClient.Close(nsFd)

	if err := inNamespace(m.netnsClient, nsFd, func() error {
		_, err := m.netioshim.GetNetworkInterfaceByName(interfaceName)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w : %s in %s: %v", ErrInterfaceNotInNamespace, interfaceName, ns, err)
	}

	res := &TeardownResult{}

	if rec.Script != "" {
		if err := ConfigClientFor(ns, rec.Script, m.plClient).ConfigureDown(interfaceName); err != nil {
			res.warnf("down hook failed for %s in %s: %v", interfaceName, ns, err)
		}
	}

	if rec.Phy != "" {
		log.Printf("Returning radio %s to the root namespace", rec.Phy)
		if _, err := m.plClient.ExecuteCommand(
			"ip", "netns", "exec", ns,
			"iw", "phy", rec.Phy, "set", "netns", strconv.Itoa(rootNsPid)); err != nil {
			res.warnf("failed to return radio %s: %v", rec.Phy, err)
		}
	} else {
		log.Printf("Returning interface %s to the root namespace", interfaceName)
		if err := m.moveLinkOut(nsFd, interfaceName); err != nil {
			res.warnf("failed to return interface %s: %v", interfaceName, err)
		}
	}

	if err := m.stateStore.Delete(ns, rec.Key); err != nil {
		res.warnf("failed to delete record for %s in %s: %v", interfaceName, ns, err)
	}
	return res, nil
}

func (m *InterfaceMover) moveLinkOut(nsFd uintptr, interfaceName string) error {
	rootFd, err := m.netnsClient.GetFromPid(rootNsPid)
	if err != nil {
		return fmt.Errorf("failed to open root namespace: %w", err)
	}
	defer m.netnsClient.Close(rootFd)

	return inNamespace(m.netnsClient, nsFd, func() error {
		return m.nl.SetLinkNetNs(interfaceName, rootFd)
	})
}
