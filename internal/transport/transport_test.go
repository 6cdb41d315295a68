package transport

import (
	"bufio"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPair returns the server and client ends of a loopback TCP connection
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return server, client
}

func TestLineConnReadsLines(t *testing.T) {
	server, client := tcpPair(t)
	conn := NewLineConn(server, DefaultConfig())

	_, err := client.Write([]byte("/login alice secret\r\nhello\n"))
	require.NoError(t, err)

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "/login alice secret", line)

	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
}

func TestLineConnWritesLines(t *testing.T) {
	server, client := tcpPair(t)
	conn := NewLineConn(server, DefaultConfig())

	require.NoError(t, conn.WriteLine("AUTH_OK: Welcome, alice!"))

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "AUTH_OK: Welcome, alice!\n", line)
}

func TestLineConnPeerCloseEndsRead(t *testing.T) {
	server, client := tcpPair(t)
	conn := NewLineConn(server, DefaultConfig())

	_ = client.Close()

	_, err := conn.ReadLine()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLineConnRejectsOverlongLine(t *testing.T) {
	server, client := tcpPair(t)
	conn := NewLineConn(server, Config{MaxLineLength: 16})

	go func() { _, _ = client.Write([]byte(strings.Repeat("x", 64) + "\n")) }()

	_, err := conn.ReadLine()
	assert.Error(t, err)
}

func TestLineConnCloseIsIdempotent(t *testing.T) {
	server, _ := tcpPair(t)
	conn := NewLineConn(server, DefaultConfig())

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.True(t, conn.Closed())
	assert.ErrorIs(t, conn.WriteLine("late"), ErrClosed)
}

func TestWebSocketConnRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverLines := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWebSocketConn(ws, r.RemoteAddr, DefaultConfig())
		defer func() { _ = conn.Close() }()

		line, err := conn.ReadLine()
		if err != nil {
			return
		}
		serverLines <- line
		_ = conn.WriteLine("echo: " + line)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello\n")))

	select {
	case line := <-serverLines:
		assert.Equal(t, "hello", line)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive line")
	}

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", string(data))
}

func TestSelfSignedTLSRoundTrip(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSigned([]string{"127.0.0.1", "localhost"}, time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	serverCfg, err := ServerTLSConfig(certFile, keyFile)
	require.NoError(t, err)

	ln, err := Listen("127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		conn := NewLineConn(c, DefaultConfig())
		_ = conn.WriteLine("Welcome over TLS")
	}()

	clientCfg, err := ClientTLSConfig("127.0.0.1", certFile, false)
	require.NoError(t, err)

	c, err := tls.Dial("tcp", ln.Addr().String(), clientCfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Welcome over TLS\n", line)
}

func TestClientTLSConfigBadCAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a cert"), 0600))

	_, err := ClientTLSConfig("localhost", path, false)
	assert.Error(t, err)
}
