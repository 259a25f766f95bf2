// Package netio answers questions about network interfaces on the host:
// existence by name and wireless classification via the sysfs device-class
// tree.
package netio

import (
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const sysClassNet = "/sys/class/net"

// NetIOInterface is the subset of interface inspection the movers need.
type NetIOInterface interface {
	GetNetworkInterfaceByName(name string) (*net.Interface, error)
	// WirelessPhy reports whether the interface is backed by a physical
	// radio, and if so the radio's name. An interface is wireless if and
	// only if its device-class entry exposes a phy80211 identifier.
	WirelessPhy(name string) (phy string, wireless bool, err error)
}

type NetIO struct {
	// SysfsRoot is /sys/class/net unless overridden for tests.
	SysfsRoot string
}

func NewNetIO() *NetIO {
	return &NetIO{SysfsRoot: sysClassNet}
}

func (n *NetIO) GetNetworkInterfaceByName(name string) (*net.Interface, error) {
	return net.InterfaceByName(name)
}

func (n *NetIO) WirelessPhy(name string) (string, bool, error) {
	phyFile := filepath.Join(n.SysfsRoot, name, "phy80211", "name")
	data, err := os.ReadFile(phyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "failed to read %s", phyFile)
	}
	phy := strings.TrimSpace(string(data))
	if phy == "" {
		return "", false, errors.Errorf("empty phy80211 name for %s", name)
	}
	return phy, true, nil
}
