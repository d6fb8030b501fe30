package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// udpSink binds an ephemeral UDP port and collects received datagrams.
func udpSink(t *testing.T) (string, <-chan string) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			lines <- string(buf[:n])
		}
	}()
	return conn.LocalAddr().String(), lines
}

func recv(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
		return ""
	}
}

func TestClient_Count(t *testing.T) {
	addr, lines := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "sso"})
	require.NoError(t, err)
	defer client.Close()

	client.Count("autologin.start.okay", 1, nil)
	assert.Equal(t, "sso.autologin.start.okay:1|c", recv(t, lines))
}

func TestClient_Timing(t *testing.T) {
	addr, lines := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Timing("autologin.set_cookies.duration", 250*time.Millisecond, nil)
	assert.Equal(t, "autologin.set_cookies.duration:250|ms", recv(t, lines))
}

func TestClient_TagsMergedAndSorted(t *testing.T) {
	addr, lines := udpSink(t)

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    addr,
		Prefix:     "sso",
		GlobalTags: map[string]string{"env": "test", "flow": "overridden"},
	})
	require.NoError(t, err)
	defer client.Close()

	client.Count("login.begin.okay", 1, map[string]string{"flow": "edge", "usesul3": "0"})
	assert.Equal(t, "sso.login.begin.okay:1|c|#env:test,flow:edge,usesul3:0", recv(t, lines))
}

func TestClient_DisabledIsInert(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:1"})
	require.NoError(t, err)

	client.Count("anything", 1, nil)
	client.Timing("anything", time.Second, nil)
	assert.NoError(t, client.Close())

	// Enabled but no address behaves the same.
	client, err = NewClient(Config{Enabled: true})
	require.NoError(t, err)
	client.Count("anything", 1, nil)

	// A nil client is safe too; callers never need to branch.
	var nilClient *Client
	nilClient.Count("anything", 1, nil)
	assert.NoError(t, nilClient.Close())
}

func TestClient_WriteAfterClose(t *testing.T) {
	addr, _ := udpSink(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client.Count("after.close", 1, nil)
}

func TestNormalizeMetricName(t *testing.T) {
	assert.Equal(t, "a.b", normalizeMetricName(".a..b."))
	assert.Equal(t, "a_b_c", normalizeMetricName("a b/c"))
	assert.Equal(t, "", normalizeMetricName("  "))
}
