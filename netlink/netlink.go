// Package netlink wraps the vishvananda/netlink link operations used when
// assigning interfaces to namespaces.
package netlink

import (
	"github.com/pkg/errors"
	vishnetlink "github.com/vishvananda/netlink"
)

// NetlinkInterface is the subset of link manipulation the movers need. All
// operations act on the caller's current network namespace.
type NetlinkInterface interface {
	// SetLinkNetNs moves the named link into the namespace identified by the
	// open namespace file descriptor.
	SetLinkNetNs(name string, fileDescriptor uintptr) error
	// SetLinkState brings the named link up or down.
	SetLinkState(name string, up bool) error
}

type Netlink struct{}

func NewNetlink() *Netlink {
	return &Netlink{}
}

func (Netlink) SetLinkNetNs(name string, fileDescriptor uintptr) error {
	link, err := vishnetlink.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, "failed to find link %s", name)
	}
	if err := vishnetlink.LinkSetNsFd(link, int(fileDescriptor)); err != nil {
		return errors.Wrapf(err, "failed to move link %s", name)
	}
	return nil
}

func (Netlink) SetLinkState(name string, up bool) error {
	link, err := vishnetlink.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, "failed to find link %s", name)
	}
	if up {
		err = vishnetlink.LinkSetUp(link)
	} else {
		err = vishnetlink.LinkSetDown(link)
	}
	return errors.Wrapf(err, "failed to set link %s state", name)
}
