package transport_test

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnp-engine/upnp-go/pkg/task"
	"github.com/upnp-engine/upnp-go/pkg/transport"
)

func newExecutor(t *testing.T) task.Executor {
	exec := task.NewHandoffExecutor("server", time.Second, nil)
	t.Cleanup(exec.Terminate)
	return exec
}

// TestServerEcho verifies connections are dispatched to the handler.
func TestServerEcho(t *testing.T) {
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(conn *transport.ServerConn) {
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("echo " + line))
		},
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(newExecutor(t)))
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo hello\n", reply)
}

// TestServerConnectionCount verifies live connections are tracked and
// released when the handler returns.
func TestServerConnectionCount(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int32

	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(conn *transport.ServerConn) {
			assert.NotEmpty(t, conn.ConnID())
			handled.Add(1)
			<-release
		},
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(newExecutor(t)))
	defer server.Stop()

	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)
		defer c.Close()
	}

	require.Eventually(t, func() bool { return handled.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, server.ConnectionCount())

	close(release)
	require.Eventually(t, func() bool { return server.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
}

// TestServerStopClosesConnections verifies Stop unblocks handlers waiting on
// reads and is idempotent.
func TestServerStopClosesConnections(t *testing.T) {
	readErr := make(chan error, 1)
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(conn *transport.ServerConn) {
			buf := make([]byte, 1)
			_, err := conn.Read(buf)
			readErr <- err
		},
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(newExecutor(t)))

	c, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return server.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, server.Stop())
	assert.NoError(t, server.Stop())

	select {
	case err := <-readErr:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler not unblocked")
	}

	_, err = net.DialTimeout("tcp", server.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err, "listener closed")
}

// TestServerStopDuringAccepts verifies that once Stop returns every handler
// it let through has finished, even with connections arriving mid-Stop.
func TestServerStopDuringAccepts(t *testing.T) {
	for round := 0; round < 20; round++ {
		var started, finished atomic.Int32
		server, err := transport.NewServer(transport.ServerConfig{
			Address: "127.0.0.1:0",
			Handler: func(conn *transport.ServerConn) {
				started.Add(1)
				defer finished.Add(1)
				time.Sleep(time.Millisecond)
			},
		})
		require.NoError(t, err)
		require.NoError(t, server.Start(newExecutor(t)))
		addr := server.Addr().String()

		stop := make(chan struct{})
		var dialers sync.WaitGroup
		for i := 0; i < 4; i++ {
			dialers.Add(1)
			go func() {
				defer dialers.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
					if err != nil {
						continue
					}
					c.Close()
				}
			}()
		}

		time.Sleep(2 * time.Millisecond)
		require.NoError(t, server.Stop())
		assert.Equal(t, started.Load(), finished.Load(), "round %d: handler outlived Stop", round)
		assert.Zero(t, server.ConnectionCount())

		close(stop)
		dialers.Wait()
	}
}

// TestServerReadTimeout verifies the connection deadline is applied.
func TestServerReadTimeout(t *testing.T) {
	readErr := make(chan error, 1)
	server, err := transport.NewServer(transport.ServerConfig{
		Address:     "127.0.0.1:0",
		ReadTimeout: 20 * time.Millisecond,
		Handler: func(conn *transport.ServerConn) {
			_, err := conn.Read(make([]byte, 1))
			readErr <- err
		},
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(newExecutor(t)))
	defer server.Stop()

	c, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	select {
	case err := <-readErr:
		var ne net.Error
		require.ErrorAs(t, err, &ne)
		assert.True(t, ne.Timeout())
	case <-time.After(time.Second):
		t.Fatal("deadline not applied")
	}
}

func TestServerConfigValidation(t *testing.T) {
	_, err := transport.NewServer(transport.ServerConfig{})
	assert.ErrorIs(t, err, transport.ErrNoHandler)
}

func TestServerStartTwice(t *testing.T) {
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(*transport.ServerConn) {},
	})
	require.NoError(t, err)
	exec := newExecutor(t)
	require.NoError(t, server.Start(exec))
	defer server.Stop()

	assert.ErrorIs(t, server.Start(exec), transport.ErrAlreadyRunning)
}

func TestServerStartTerminatedExecutor(t *testing.T) {
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(*transport.ServerConn) {},
	})
	require.NoError(t, err)

	exec := task.NewHandoffExecutor("server", time.Second, nil)
	exec.Terminate()
	assert.ErrorIs(t, server.Start(exec), task.ErrTerminated)
	assert.NoError(t, server.Stop())
}
