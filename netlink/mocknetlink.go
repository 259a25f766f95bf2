package netlink

import (
	"errors"
	"fmt"
)

var ErrorMockNetlink = errors.New("mock netlink error")

func newErrorMockNetlink(errStr string) error {
	return fmt.Errorf("%w : %s", ErrorMockNetlink, errStr)
}

// MockNetlink records link moves and state changes, failing every call when
// fail is set.
type MockNetlink struct {
	fail        bool
	failMessage string

	MovedLinks map[string]uintptr
	LinkStates map[string]bool
}

func NewMockNetlink(fail bool, failMessage string) *MockNetlink {
	return &MockNetlink{
		fail:        fail,
		failMessage: failMessage,
		MovedLinks:  map[string]uintptr{},
		LinkStates:  map[string]bool{},
	}
}

func (m *MockNetlink) SetLinkNetNs(name string, fileDescriptor uintptr) error {
	if m.fail {
		return newErrorMockNetlink(m.failMessage)
	}
	m.MovedLinks[name] = fileDescriptor
	return nil
}

func (m *MockNetlink) SetLinkState(name string, up bool) error {
	if m.fail {
		return newErrorMockNetlink(m.failMessage)
	}
	m.LinkStates[name] = up
	return nil
}
