package netns

import (
	"errors"
	"fmt"
)

var ErrorMock = errors.New("mock netns error")

func newErrorMock(errStr string) error {
	return fmt.Errorf("%s: %w", errStr, ErrorMock)
}

// Method selects which MockNetns call fails.
type Method int

const (
	None Method = iota
	Get
	GetFromName
	GetFromPid
	Set
	NewNamed
	DeleteNamed
	ListNamed
	Close
)

// MockNetns fails the selected method with the given message and succeeds
// everywhere else. Created/deleted names are recorded for assertions, and
// ListNames seeds ListNamed.
type MockNetns struct {
	failMethod  Method
	failMessage string

	// MissingNames makes GetFromName report these names as absent even when
	// a different method is selected to fail.
	MissingNames map[string]bool

	ListNames    []string
	CreatedNames []string
	DeletedNames []string
	SetCalls     []uintptr
	NotEqual     bool
}

func NewMock(failMethod Method, failMessage string) *MockNetns {
	return &MockNetns{
		failMethod:  failMethod,
		failMessage: failMessage,
	}
}

func (f *MockNetns) Get() (uintptr, error) {
	if f.failMethod == Get {
		return 0, newErrorMock(f.failMessage)
	}
	return 1, nil
}

func (f *MockNetns) GetFromName(name string) (uintptr, error) {
	if f.failMethod == GetFromName {
		return 0, newErrorMock(f.failMessage)
	}
	if f.MissingNames[name] {
		return 0, newErrorMock("no such file or directory")
	}
	return 2, nil
}

func (f *MockNetns) GetFromPid(pid int) (uintptr, error) {
	if f.failMethod == GetFromPid {
		return 0, newErrorMock(f.failMessage)
	}
	return 3, nil
}

func (f *MockNetns) Set(fileDescriptor uintptr) error {
	if f.failMethod == Set {
		return newErrorMock(f.failMessage)
	}
	f.SetCalls = append(f.SetCalls, fileDescriptor)
	return nil
}

func (f *MockNetns) NewNamed(name string) (uintptr, error) {
	if f.failMethod == NewNamed {
		return 0, newErrorMock(f.failMessage)
	}
	f.CreatedNames = append(f.CreatedNames, name)
	return 2, nil
}

func (f *MockNetns) DeleteNamed(name string) error {
	if f.failMethod == DeleteNamed {
		return newErrorMock(f.failMessage)
	}
	f.DeletedNames = append(f.DeletedNames, name)
	return nil
}

func (f *MockNetns) ListNamed() ([]string, error) {
	if f.failMethod == ListNamed {
		return nil, newErrorMock(f.failMessage)
	}
	return f.ListNames, nil
}

func (f *MockNetns) Equal(fd1, fd2 uintptr) bool {
	return !f.NotEqual
}

func (f *MockNetns) Close(fileDescriptor uintptr) error {
	if f.failMethod == Close {
		return newErrorMock(f.failMessage)
	}
	return nil
}
