package netio

import (
	"errors"
	"fmt"
	"net"
)

var ErrMockNetIOFail = errors.New("netio fail")

// MockNetIO fails the Nth GetNetworkInterfaceByName call when fail is set.
// WirelessPhys maps interface names to radio names for the wireless branch.
type MockNetIO struct {
	fail        bool
	failAttempt int
	numTimes    int

	WirelessPhys map[string]string
}

func NewMockNetIO(fail bool, failAttempt int) *MockNetIO {
	return &MockNetIO{
		fail:        fail,
		failAttempt: failAttempt,
	}
}

func (n *MockNetIO) GetNetworkInterfaceByName(name string) (*net.Interface, error) {
	n.numTimes++
	if n.fail && n.failAttempt == n.numTimes {
		return nil, fmt.Errorf("%w:%s", ErrMockNetIOFail, name)
	}
	hwAddr, _ := net.ParseMAC("ab:cd:ef:12:34:56")
	return &net.Interface{
		Index:        1,
		Name:         name,
		HardwareAddr: hwAddr,
	}, nil
}

func (n *MockNetIO) WirelessPhy(name string) (string, bool, error) {
	phy, ok := n.WirelessPhys[name]
	return phy, ok, nil
}
