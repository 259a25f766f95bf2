package resolvd

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/platform"
	"github.com/stretchr/testify/require"
)

func TestDaemonRepairsOnReplacement(t *testing.T) {
	netnsClient := netns.NewMock(netns.None, "")
	netnsClient.ListNames = []string{"default"}
	scanner := &fakeScanner{
		pids: map[string][]int{"default": {101}},
	}
	plc := platform.NewMockExecClient(false)
	d := newTestDaemon(t, netnsClient, scanner, plc)
	prepareNamespace(t, d, "default")
	require.NoError(t, os.WriteFile(d.watchPath, []byte("nameserver 1.1.1.1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// wait for startup (lock file written means the watch is going up)
	require.Eventually(t, func() bool {
		_, err := os.Stat(d.lock.Path())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// the external manager deletes and recreates the file
	require.NoError(t, os.Remove(d.watchPath))
	require.NoError(t, os.WriteFile(d.watchPath, []byte("nameserver 8.8.8.8\n"), 0o644))

	require.Eventually(t, func() bool {
		return plc.CalledWith("nsenter", "--target", "101")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// the guaranteed cleanup path removed the lock file
	_, err := os.Stat(d.lock.Path())
	require.True(t, os.IsNotExist(err))
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	d := newTestDaemon(t, netns.NewMock(netns.None, ""), &fakeScanner{}, platform.NewMockExecClient(false))
	d.lock.alive = processAlive
	require.NoError(t, os.WriteFile(d.lock.Path(),
		[]byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	err := d.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestDaemonStartsOverStaleLock(t *testing.T) {
	netnsClient := netns.NewMock(netns.None, "")
	plc := platform.NewMockExecClient(false)
	d := newTestDaemon(t, netnsClient, &fakeScanner{}, plc)
	require.NoError(t, os.WriteFile(d.lock.Path(), []byte("999999\n"), 0o644))
	require.NoError(t, os.WriteFile(d.watchPath, nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(d.lock.Path())
		return err == nil && string(data) == strconv.Itoa(os.Getpid())+"\n"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDaemonKillNoInstance(t *testing.T) {
	d := newTestDaemon(t, netns.NewMock(netns.None, ""), &fakeScanner{}, platform.NewMockExecClient(false))
	_, err := d.Kill()
	require.ErrorIs(t, err, ErrNotRunning)
}
