package netns

import (
	"os"
	"sort"

	"github.com/vishvananda/netns"
)

// bindMountPath is where iproute2 keeps handles for named namespaces.
const bindMountPath = "/run/netns"

type Netns struct{}

func NewNetns() *Netns {
	return &Netns{}
}

func (f *Netns) Get() (uintptr, error) {
	nsHandle, err := netns.Get()
	return uintptr(nsHandle), err
}

func (f *Netns) GetFromName(name string) (uintptr, error) {
	nsHandle, err := netns.GetFromName(name)
	return uintptr(nsHandle), err
}

func (f *Netns) GetFromPid(pid int) (uintptr, error) {
	nsHandle, err := netns.GetFromPid(pid)
	return uintptr(nsHandle), err
}

func (f *Netns) Set(fileDescriptor uintptr) error {
	return netns.Set(netns.NsHandle(fileDescriptor))
}

func (f *Netns) NewNamed(name string) (uintptr, error) {
	nsHandle, err := netns.NewNamed(name)
	return uintptr(nsHandle), err
}

func (f *Netns) DeleteNamed(name string) error {
	return netns.DeleteNamed(name)
}

// ListNamed returns every namespace created with NewNamed or `ip netns add`,
// i.e. the entries under /run/netns.
func (f *Netns) ListNamed() ([]string, error) {
	entries, err := os.ReadDir(bindMountPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Equal reports whether two handles refer to the same namespace (same device
// and inode).
func (f *Netns) Equal(fd1, fd2 uintptr) bool {
	return netns.NsHandle(fd1).Equal(netns.NsHandle(fd2))
}

func (f *Netns) Close(fileDescriptor uintptr) error {
	h := netns.NsHandle(fileDescriptor)
	return h.Close()
}

// NamedPath returns the handle path of a named namespace.
func NamedPath(name string) string {
	return bindMountPath + "/" + name
}
