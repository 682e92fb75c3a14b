// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"lightshow/internal/command"
	"lightshow/internal/log"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *net.UDPConn) (uint32, command.Frame) {
	t.Helper()
	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	seq, _, f, err := command.DecodeBinary(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	return seq, f
}

func TestLinkWrite(t *testing.T) {
	conn := listen(t)
	l := NewLink(conn.LocalAddr().String(), 0)
	if err := l.Write(context.Background(), command.Frame{}); err == nil {
		t.Error("write before Open succeeded")
	}
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	f := command.NewFrame(45, 60, command.Fade{From: command.White, To: command.RGB{R: 255}, Duration: 500 * time.Millisecond})
	for i := range 2 {
		if err := l.Write(context.Background(), f); err != nil {
			t.Fatal(err)
		}
		seq, got := read(t, conn)
		if seq != uint32(i+1) {
			t.Errorf("seq = %d, want %d", seq, i+1)
		}
		if got.Base.Angle != 45 || got.Top.Angle != 60 || got.Color != f.Color {
			t.Errorf("decoded %v, want %v", got, f)
		}
	}
}

func TestLinkRefreshesFinalState(t *testing.T) {
	conn := listen(t)
	l := NewLink(conn.LocalAddr().String(), 10*time.Millisecond)
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	f := command.NewFrame(10, 20, command.Flicker{Color: command.RGB{B: 255}, Duration: time.Second})
	if err := l.Write(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	read(t, conn)
	seq, got := read(t, conn)
	if seq < 2 {
		t.Errorf("refresh seq = %d, want > 1", seq)
	}
	if got.Base.Angle != 10 || got.Color != (command.RGB{B: 255}) {
		t.Errorf("refresh sent %v, want the settled frame", got)
	}
}

func TestLinkCloseIdempotent(t *testing.T) {
	l := NewLink("127.0.0.1:9", 5*time.Millisecond)
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
