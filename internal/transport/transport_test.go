package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ncerr "rawtwitch/internal/errors"
)

// listen starts a loopback TCP server that hands each accepted
// connection to handle.
func listen(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return ln.Addr().String()
}

// TestConnect_SendReceive verifies a full exchange over a real socket.
func TestConnect_SendReceive(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		defer c.Close()
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		if string(buf[:n]) == "PING :client\r\n" {
			c.Write([]byte("PONG :client\r\n")) //nolint:errcheck
		}
	})

	conn, err := Connect(context.Background(), &TCPDialer{Timeout: 2 * time.Second}, addr, 2*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	if conn.Addr() != addr {
		t.Errorf("Addr() = %q, want %q", conn.Addr(), addr)
	}
	if n, err := conn.Send([]byte("PING :client\r\n")); err != nil || n != 14 {
		t.Fatalf("send = %d, %v", n, err)
	}

	res := conn.Receive(make([]byte, 64))
	if res.Status != StatusData {
		t.Fatalf("status = %v (%v), want data", res.Status, res.Err)
	}
	if got := string(res.Data); got != "PONG :client\r\n" {
		t.Errorf("got %q", got)
	}
}

// TestConnect_Refused verifies a failed dial is a NetworkError "dial".
func TestConnect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(context.Background(), &TCPDialer{Timeout: time.Second}, addr, time.Second)
	if err == nil {
		t.Fatal("expected connect error")
	}
	var ne *ncerr.NetworkError
	if !ncerr.As(err, &ne) || ne.Op != "dial" {
		t.Errorf("err = %#v, want NetworkError with Op dial", err)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := d.Dial(ctx, "tcp", "127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestReceive_Timeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewConn(client, 20*time.Millisecond)
	defer conn.Close()

	res := conn.Receive(make([]byte, 16))
	if res.Status != StatusTimeout {
		t.Fatalf("status = %v, want timeout", res.Status)
	}
	if !ncerr.Is(res.Err, ncerr.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", res.Err)
	}
}

// noDeadlineConn refuses read deadlines the way an SSH channel does.
type noDeadlineConn struct{ net.Conn }

func (noDeadlineConn) SetReadDeadline(time.Time) error {
	return errors.New("deadline not supported")
}

// TestReceive_TimeoutWithoutDeadlines verifies the idle timeout still
// fires on streams that cannot take a read deadline.
func TestReceive_TimeoutWithoutDeadlines(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	conn := NewConn(noDeadlineConn{local}, 50*time.Millisecond)
	defer conn.Close()

	go remote.Write([]byte("PING :tmi.twitch.tv\r\n")) //nolint:errcheck

	buf := make([]byte, 64)
	if res := conn.Receive(buf); res.Status != StatusData || string(res.Data) != "PING :tmi.twitch.tv\r\n" {
		t.Fatalf("first receive = %v %q (%v)", res.Status, res.Data, res.Err)
	}

	start := time.Now()
	res := conn.Receive(buf)
	if res.Status != StatusTimeout {
		t.Fatalf("status = %v (%v), want timeout", res.Status, res.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
	if res := conn.Receive(buf); res.Status != StatusTimeout {
		t.Errorf("receive after timeout = %v, want timeout", res.Status)
	}
}

func TestReceive_PeerClosed(t *testing.T) {
	client, server := net.Pipe()
	conn := NewConn(client, time.Second)
	defer conn.Close()

	server.Close()
	res := conn.Receive(make([]byte, 16))
	if res.Status != StatusClosed {
		t.Fatalf("status = %v (%v), want closed", res.Status, res.Err)
	}
	if !ncerr.Is(res.Err, ncerr.ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", res.Err)
	}
}

// TestReceive_LocalClose verifies Close unblocks a pending Receive.
func TestReceive_LocalClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConn(client, 0)

	done := make(chan Result, 1)
	go func() { done <- conn.Receive(make([]byte, 16)) }()

	time.Sleep(10 * time.Millisecond)
	conn.Close()

	select {
	case res := <-done:
		if res.Status != StatusClosed {
			t.Errorf("status = %v, want closed", res.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

// zeroConn accepts writes without writing anything.
type zeroConn struct {
	net.Conn
	closes int
}

func (z *zeroConn) Write([]byte) (int, error) { return 0, nil }
func (z *zeroConn) Close() error              { z.closes++; return nil }
func (z *zeroConn) RemoteAddr() net.Addr      { return nil }

func TestSend_ZeroBytesIsFailure(t *testing.T) {
	conn := NewConn(&zeroConn{}, 0)
	n, err := conn.Send([]byte("NICK bot\r\n"))
	if n != 0 || err == nil {
		t.Fatalf("send = %d, %v; want failure", n, err)
	}
	if !ncerr.Is(err, ncerr.ErrZeroWrite) {
		t.Errorf("err = %v, want ErrZeroWrite", err)
	}
	var ne *ncerr.NetworkError
	if !ncerr.As(err, &ne) || ne.Op != "write" {
		t.Errorf("err = %#v, want NetworkError with Op write", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	z := &zeroConn{}
	conn := NewConn(z, 0)
	for i := 0; i < 3; i++ {
		if err := conn.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
	if z.closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", z.closes)
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusData:    "data",
		StatusTimeout: "timeout",
		StatusClosed:  "closed",
		StatusError:   "error",
		Status(42):    "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

// TestTLSDialer_Handshake dials an httptest TLS server and verifies the
// server name defaults to the dialled host.
func TestTLSDialer_Handshake(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	d := &TLSDialer{Timeout: 2 * time.Second, Config: &tls.Config{RootCAs: pool}}
	conn, err := d.Dial(context.Background(), "tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tc, ok := conn.(*tls.Conn)
	if !ok {
		t.Fatalf("conn is %T, want *tls.Conn", conn)
	}
	if !tc.ConnectionState().HandshakeComplete {
		t.Error("handshake not complete")
	}
}

func TestTLSDialer_UntrustedCert(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	d := &TLSDialer{Timeout: 2 * time.Second}
	if _, err := d.Dial(context.Background(), "tcp", srv.Listener.Addr().String()); err == nil {
		t.Fatal("expected verification failure for self-signed certificate")
	}
}

// recordingDialer counts Close calls on a wrapped base dialer.
type recordingDialer struct {
	TCPDialer
	closed int
}

func (r *recordingDialer) Close() error { r.closed++; return nil }

func TestTLSDialer_ClosesBase(t *testing.T) {
	base := &recordingDialer{}
	d := &TLSDialer{Base: base}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if base.closed != 1 {
		t.Errorf("base closed %d times, want 1", base.closed)
	}
}
