package netns

// NetnsInterface wraps the named-network-namespace operations the lifecycle
// manager and the repair daemon need.
type NetnsInterface interface {
	Get() (fileDescriptor uintptr, err error)
	GetFromName(name string) (fileDescriptor uintptr, err error)
	GetFromPid(pid int) (fileDescriptor uintptr, err error)
	Set(fileDescriptor uintptr) (err error)
	NewNamed(name string) (fileDescriptor uintptr, err error)
	DeleteNamed(name string) (err error)
	ListNamed() (names []string, err error)
	Equal(fd1, fd2 uintptr) bool
	Close(fileDescriptor uintptr) (err error)
}
