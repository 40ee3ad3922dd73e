/*
 * MIT License
 *
 * Copyright (c) 2024 Dr.NP
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package socket wraps one kernel file descriptor into a non-blocking
// Socket object owning its read and write buffers. All operations on
// connected sockets are non-blocking: would-block and end-of-file are
// normal statuses, not failures. A closed Socket holds no fd.
package socket

import (
	"time"

	libptc "github.com/nabbar/golib/network/protocol"

	sckbuf "github.com/drnp/bsp/buffer"

	"golang.org/x/sys/unix"
)

// Role qualifies how the Socket entered the process.
type Role uint8

const (
	RoleListener Role = iota
	RoleInbound
	RoleOutbound
)

// State is the lifecycle state of a Socket.
type State uint8

const (
	StateInit State = iota
	StateOpen
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// IOStatus is the outcome of one non-blocking I/O primitive.
type IOStatus uint8

const (
	IOOk IOStatus = iota
	IOWouldBlock
	IOEOF
	IOFatal
)

type Socket interface {
	// Fd returns the kernel descriptor, or -1 once closed.
	Fd() int

	Role() Role
	State() State
	SetState(s State)

	Network() libptc.NetworkProtocol

	// LocalAddr / RemoteAddr return printable endpoints; RemoteAddr is
	// empty for listeners and unconnected datagram sockets.
	LocalAddr() string
	RemoteAddr() string

	ReadBuffer() sckbuf.Buffer
	WriteBuffer() sckbuf.Buffer

	// SetDump installs the traffic dump hook fired after every ingress
	// append and before every egress write.
	SetDump(dmp sckbuf.DumpFunc)

	// Accept pulls one pending connection off a listening stream socket.
	// The returned Socket is non-blocking, TCP_NODELAY enabled for TCP.
	Accept() (Socket, IOStatus)

	// ReadIntoBuffer appends at most one kernel-buffer worth of bytes to
	// the read buffer and returns the count read.
	ReadIntoBuffer() (int, IOStatus)

	// ReadDatagram reads one full datagram and its peer address.
	ReadDatagram() ([]byte, unix.Sockaddr, IOStatus)

	// WriteFromBuffer drains as much of the write buffer as the kernel
	// accepts and leaves the remainder queued.
	WriteFromBuffer() (int, IOStatus)

	// WriteDatagram sends one datagram to the given peer.
	WriteDatagram(p []byte, to unix.Sockaddr) IOStatus

	// FinishConnect resolves a pending non-blocking connect once the fd
	// reports writable, returning any SO_ERROR as fatal.
	FinishConnect() IOStatus

	// LastError returns the error behind the last IOFatal status.
	LastError() error

	// Touch refreshes the last-activity timestamp.
	Touch()

	// LastActivity returns the monotonic-based last-activity time.
	LastActivity() time.Time

	// Close releases the fd. Close is idempotent.
	Close() error
}

// NewListeners resolves the given endpoint and opens one bound socket per
// resolved address (an unspecified host yields one IPv4 and one IPv6
// listener). Stream sockets are put into listening state with the given
// backlog; datagram sockets are only bound.
func NewListeners(prt libptc.NetworkProtocol, host string, port int, backlog int) ([]Socket, error) {
	edp, err := Resolve(prt, host, port)
	if err != nil {
		return nil, err
	}

	var res []Socket

	for _, e := range edp {
		s, er := newBound(e, backlog, len(edp) > 1)
		if er != nil {
			for _, p := range res {
				_ = p.Close()
			}
			return nil, er
		}

		res = append(res, s)
	}

	return res, nil
}

// Dial opens a non-blocking outbound socket to the first resolved address
// of the endpoint. The pending flag reports a connect still in progress;
// completion must be confirmed with FinishConnect on write readiness.
func Dial(prt libptc.NetworkProtocol, host string, port int) (Socket, bool, error) {
	edp, err := Resolve(prt, host, port)
	if err != nil {
		return nil, false, err
	}

	return newConnected(edp[0])
}
