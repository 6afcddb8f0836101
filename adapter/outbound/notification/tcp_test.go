package notification

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/notifytrigger/domain/model"
)

// startTCPServer accepts one connection and hands it to serve
func startTCPServer(t *testing.T, serve func(net.Conn)) (string, int) {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestTCPSource_ReadsEnvelopesUntilEOF(t *testing.T) {
	host, port := startTCPServer(t, func(conn net.Conn) {
		defer conn.Close()
		io.WriteString(conn, `{"type":"Heartbeat","body":""}`+"\n")
		io.WriteString(conn, "\n")
		io.WriteString(conn, `{"type":"FileChangedEvent","body":"{\"fullPath\":\"/in/a.csv\"}"}`+"\n")
		io.WriteString(conn, `{"type":"FileChangedEvent","body":{"fullPath":"/in/b.csv"}}`)
	})

	source := NewTCPSource(host, port, &mockLogger{})
	stream, err := source.Connect(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	ctx := context.Background()

	n, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Heartbeat", n.Type)

	n, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.True(t, n.IsFileChanged())
	assert.JSONEq(t, `{"fullPath":"/in/a.csv"}`, string(n.Body))

	n, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fullPath":"/in/b.csv"}`, string(n.Body))

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCPSource_MalformedEnvelope(t *testing.T) {
	host, port := startTCPServer(t, func(conn net.Conn) {
		defer conn.Close()
		io.WriteString(conn, "garbage\n")
	})

	stream, err := NewTCPSource(host, port, &mockLogger{}).Connect(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, model.ErrDecode)
}

func TestTCPSource_NextReturnsOnCancel(t *testing.T) {
	release := make(chan struct{})
	host, port := startTCPServer(t, func(conn net.Conn) {
		defer conn.Close()
		<-release
	})
	defer close(release)

	stream, err := NewTCPSource(host, port, &mockLogger{}).Connect(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Next(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after cancellation")
	}
}

func TestTCPSource_ConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = NewTCPSource("127.0.0.1", port, &mockLogger{}).Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestTCPSource_RejectsIPv6Literal(t *testing.T) {
	_, err := NewTCPSource("::1", 8000, &mockLogger{}).Connect(context.Background())
	assert.ErrorIs(t, err, model.ErrTransport)
}
