package network

import (
	"strconv"
	"testing"
	"time"

	"github.com/ifnetns/ifnetns/netio"
	"github.com/ifnetns/ifnetns/netlink"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/platform"
	"github.com/ifnetns/ifnetns/store"
	"github.com/stretchr/testify/require"
)

func newTestMover(t *testing.T, netnsClient *netns.MockNetns, nl *netlink.MockNetlink,
	nio *netio.MockNetIO, plc *platform.MockExecClient,
) *InterfaceMover {
	t.Helper()
	return &InterfaceMover{
		netnsClient:   netnsClient,
		nl:            nl,
		netioshim:     nio,
		plClient:      plc,
		stateStore:    store.New(t.TempDir()),
		readyAttempts: 3,
		readyDelay:    time.Millisecond,
	}
}

func TestMoveInWired(t *testing.T) {
	nl := netlink.NewMockNetlink(false, "")
	plc := platform.NewMockExecClient(false)
	mover := newTestMover(t, netns.NewMock(netns.None, ""), nl, netio.NewMockNetIO(false, 0), plc)
	require.NoError(t, mover.stateStore.Init("default"))

	rec, err := mover.MoveIn("default", "eth0", "")
	require.NoError(t, err)
	require.Equal(t, store.KeyFor("eth0"), rec.Key)
	require.Empty(t, rec.Phy)
	require.Empty(t, rec.Script)

	// moved over netlink to the namespace handle, no external commands
	require.Equal(t, uintptr(2), nl.MovedLinks["eth0"])
	require.Empty(t, plc.Calls)

	got, found, err := mover.stateStore.Lookup("default", "eth0")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "eth0", got.Name)
}

func TestMoveInWireless(t *testing.T) {
	nio := netio.NewMockNetIO(false, 0)
	nio.WirelessPhys = map[string]string{"wlan0": "phy0"}
	plc := platform.NewMockExecClient(false)
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""), nio, plc)
	require.NoError(t, mover.stateStore.Init("default"))

	rec, err := mover.MoveIn("default", "wlan0", "/etc/ifnetns/udhcpc.sh")
	require.NoError(t, err)
	require.Equal(t, "phy0", rec.Phy)
	require.Equal(t, "/etc/ifnetns/udhcpc.sh", rec.Script)

	// placeholder started inside the namespace, radio moved by its pid,
	// placeholder reaped, then the up hook ran
	require.True(t, plc.CalledWith("ip", "netns", "exec", "default", "sleep"))
	require.Len(t, plc.StartedProcesses, 1)
	placeholder := plc.StartedProcesses[0]
	require.True(t, plc.CalledWith("iw", "phy", "phy0", "set", "netns", strconv.Itoa(placeholder.Pid())))
	require.True(t, placeholder.Killed)
	require.True(t, placeholder.Waited)
	require.True(t, plc.CalledWith("/etc/ifnetns/udhcpc.sh", "up", "wlan0"))
}

func TestMoveInPlaceholderNeverReady(t *testing.T) {
	netnsClient := netns.NewMock(netns.None, "")
	netnsClient.NotEqual = true
	nio := netio.NewMockNetIO(false, 0)
	nio.WirelessPhys = map[string]string{"wlan0": "phy0"}
	plc := platform.NewMockExecClient(false)
	mover := newTestMover(t, netnsClient, netlink.NewMockNetlink(false, ""), nio, plc)
	require.NoError(t, mover.stateStore.Init("default"))

	_, err := mover.MoveIn("default", "wlan0", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "never entered")
	// the radio must not move when readiness was never confirmed
	require.False(t, plc.CalledWith("iw", "phy"))
	require.True(t, plc.StartedProcesses[0].Killed)
}

func TestMoveInFailures(t *testing.T) {
	tests := []struct {
		name        string
		netnsClient *netns.MockNetns
		nl          *netlink.MockNetlink
		nio         *netio.MockNetIO
		wantErr     error
	}{
		{
			name:        "namespace does not exist",
			netnsClient: netns.NewMock(netns.GetFromName, "no such file or directory"),
			nl:          netlink.NewMockNetlink(false, ""),
			nio:         netio.NewMockNetIO(false, 0),
			wantErr:     ErrNamespaceNotFound,
		},
		{
			name:        "interface does not exist",
			netnsClient: netns.NewMock(netns.None, ""),
			nl:          netlink.NewMockNetlink(false, ""),
			nio:         netio.NewMockNetIO(true, 1),
			wantErr:     ErrInterfaceNotFound,
		},
		{
			name:        "netlink move fails",
			netnsClient: netns.NewMock(netns.None, ""),
			nl:          netlink.NewMockNetlink(true, "netlink fail"),
			nio:         netio.NewMockNetIO(false, 0),
			wantErr:     errInterfaceMover,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mover := newTestMover(t, tt.netnsClient, tt.nl, tt.nio, platform.NewMockExecClient(false))
			require.NoError(t, mover.stateStore.Init("default"))

			_, err := mover.MoveIn("default", "eth0", "")
			require.Error(t, err)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMoveInRejectsDuplicate(t *testing.T) {
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""),
		netio.NewMockNetIO(false, 0), platform.NewMockExecClient(false))
	require.NoError(t, mover.stateStore.Init("default"))

	_, err := mover.MoveIn("default", "eth0", "")
	require.NoError(t, err)

	_, err = mover.MoveIn("default", "eth0", "")
	require.ErrorIs(t, err, ErrAlreadyAssigned)

	// still exactly one record
	names, err := mover.stateStore.Interfaces("default")
	require.NoError(t, err)
	require.Equal(t, []string{"eth0"}, names)
}

func TestMoveInUpHookFailureKeepsAssignment(t *testing.T) {
	plc := platform.NewMockExecClient(true)
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""),
		netio.NewMockNetIO(false, 0), plc)
	require.NoError(t, mover.stateStore.Init("default"))

	rec, err := mover.MoveIn("default", "eth0", "/bin/hook")
	require.NoError(t, err)
	require.Equal(t, "/bin/hook", rec.Script)

	_, found, err := mover.stateStore.Lookup("default", "eth0")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMoveOutRoundTrip(t *testing.T) {
	nl := netlink.NewMockNetlink(false, "")
	plc := platform.NewMockExecClient(false)
	mover := newTestMover(t, netns.NewMock(netns.None, ""), nl, netio.NewMockNetIO(false, 0), plc)
	require.NoError(t, mover.stateStore.Init("default"))

	_, err := mover.MoveIn("default", "eth0", "")
	require.NoError(t, err)

	res, err := mover.MoveOut("default", "eth0")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	// moved back to the root namespace handle (GetFromPid)
	require.Equal(t, uintptr(3), nl.MovedLinks["eth0"])

	names, err := mover.stateStore.Interfaces("default")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMoveOutWireless(t *testing.T) {
	nio := netio.NewMockNetIO(false, 0)
	nio.WirelessPhys = map[string]string{"wlan0": "phy0"}
	plc := platform.NewMockExecClient(false)
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""), nio, plc)
	require.NoError(t, mover.stateStore.Init("default"))

	_, err := mover.MoveIn("default", "wlan0", "/bin/hook")
	require.NoError(t, err)

	res, err := mover.MoveOut("default", "wlan0")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	require.True(t, plc.CalledWith("/bin/hook", "down", "wlan0"))
	require.True(t, plc.CalledWith("iw", "phy", "phy0", "set", "netns", "1"))

	names, err := mover.stateStore.Interfaces("default")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMoveOutNotAssigned(t *testing.T) {
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""),
		netio.NewMockNetIO(false, 0), platform.NewMockExecClient(false))
	require.NoError(t, mover.stateStore.Init("default"))

	_, err := mover.MoveOut("default", "eth0")
	require.ErrorIs(t, err, ErrNotAssigned)
}

func TestMoveOutInterfaceGone(t *testing.T) {
	mover := newTestMover(t, netns.NewMock(netns.None, ""), netlink.NewMockNetlink(false, ""),
		netio.NewMockNetIO(true, 1), platform.NewMockExecClient(false))
	require.NoError(t, mover.stateStore.Init("default"))
	require.NoError(t, mover.stateStore.Append("default", store.Record{Key: store.KeyFor("eth0"), Name: "eth0"}))

	_, err := mover.MoveOut("default", "eth0")
	require.ErrorIs(t, err, ErrInterfaceNotInNamespace)
}

func TestMoveOutMoveFailureStillDeletesRecord(t *testing.T) {
	nl := netlink.NewMockNetlink(true, "netlink fail")
	mover := newTestMover(t, netns.NewMock(netns.None, ""), nl,
		netio.NewMockNetIO(false, 0), platform.NewMockExecClient(false))
	require.NoError(t, mover.stateStore.Init("default"))
	require.NoError(t, mover.stateStore.Append("default", store.Record{Key: store.KeyFor("eth0"), Name: "eth0"}))

	res, err := mover.MoveOut("default", "eth0")
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)

	names, err := mover.stateStore.Interfaces("default")
	require.NoError(t, err)
	require.Empty(t, names)
}
