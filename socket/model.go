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

package socket

import (
	"errors"
	"os"
	"sync/atomic"
	"time"

	libptc "github.com/nabbar/golib/network/protocol"

	sckbuf "github.com/drnp/bsp/buffer"

	"golang.org/x/sys/unix"
)

// readChunk bounds the bytes appended by one ReadIntoBuffer call to one
// kernel-buffer worth.
const readChunk = 16 * 1024

// maxDatagram is the largest datagram ReadDatagram can deliver.
const maxDatagram = 64 * 1024

// actBase anchors last-activity stamps to one monotonic clock reading.
var actBase = time.Now()

type sck struct {
	fd  atomic.Int64
	stt atomic.Int32
	act atomic.Int64 // last activity, nanoseconds since actBase

	net libptc.NetworkProtocol
	rol Role
	lcl string
	rmt string

	rbu sckbuf.Buffer
	wbu sckbuf.Buffer
	dmp sckbuf.DumpFunc
	tmp []byte

	err atomic.Value // last fatal error
}

func newSocket(fd int, prt libptc.NetworkProtocol, rol Role) *sck {
	o := &sck{
		net: prt,
		rol: rol,
		rbu: sckbuf.New(),
		wbu: sckbuf.New(),
		tmp: make([]byte, readChunk),
	}

	o.fd.Store(int64(fd))
	o.stt.Store(int32(StateInit))
	o.Touch()

	return o
}

func newBound(e Endpoint, backlog int, dualStack bool) (Socket, error) {
	fd, err := unix.Socket(e.Domain, e.SockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, ErrorSocketCreate.Error(err)
	}

	if e.Domain == unix.AF_INET || e.Domain == unix.AF_INET6 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}

	if e.Domain == unix.AF_INET6 && dualStack {
		// v4 sibling already bound on the same port
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	}

	if e.Domain == unix.AF_UNIX {
		// reclaim a stale path from a previous run
		_ = unix.Unlink(e.Address)
	}

	if err = unix.Bind(fd, e.SA); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorSocketBind.Error(err)
	}

	if e.SockType == unix.SOCK_STREAM {
		if err = unix.Listen(fd, backlog); err != nil {
			_ = unix.Close(fd)
			return nil, ErrorSocketListen.Error(err)
		}
	}

	o := newSocket(fd, e.Network, RoleListener)
	o.lcl = e.Address
	o.stt.Store(int32(StateOpen))

	return o, nil
}

func newConnected(e Endpoint) (Socket, bool, error) {
	fd, err := unix.Socket(e.Domain, e.SockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, false, ErrorSocketCreate.Error(err)
	}

	o := newSocket(fd, e.Network, RoleOutbound)
	o.rmt = e.Address

	err = unix.Connect(fd, e.SA)

	switch {
	case err == nil:
		o.stt.Store(int32(StateOpen))
		o.noDelay()
		return o, false, nil
	case errors.Is(err, unix.EINPROGRESS):
		return o, true, nil
	}

	_ = unix.Close(fd)
	return nil, false, ErrorSocketConnect.Error(err)
}

func (o *sck) Fd() int {
	return int(o.fd.Load())
}

func (o *sck) Role() Role {
	return o.rol
}

func (o *sck) State() State {
	return State(o.stt.Load())
}

func (o *sck) SetState(s State) {
	o.stt.Store(int32(s))
}

func (o *sck) Network() libptc.NetworkProtocol {
	return o.net
}

func (o *sck) LocalAddr() string {
	return o.lcl
}

func (o *sck) RemoteAddr() string {
	return o.rmt
}

func (o *sck) ReadBuffer() sckbuf.Buffer {
	return o.rbu
}

func (o *sck) WriteBuffer() sckbuf.Buffer {
	return o.wbu
}

func (o *sck) SetDump(dmp sckbuf.DumpFunc) {
	o.dmp = dmp
}

func (o *sck) LastError() error {
	if e, k := o.err.Load().(error); k {
		return e
	}

	return nil
}

func (o *sck) Touch() {
	o.act.Store(int64(time.Since(actBase)))
}

func (o *sck) LastActivity() time.Time {
	return actBase.Add(time.Duration(o.act.Load()))
}

func (o *sck) fatal(err error) IOStatus {
	o.err.Store(err)
	return IOFatal
}

func (o *sck) noDelay() {
	if o.net == libptc.NetworkTCP {
		_ = unix.SetsockoptInt(o.Fd(), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
}

func (o *sck) Accept() (Socket, IOStatus) {
	for {
		nfd, sa, err := unix.Accept4(o.Fd(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)

		switch {
		case err == nil:
			n := newSocket(nfd, o.net, RoleInbound)
			n.lcl = o.lcl
			n.rmt = FormatSockaddr(sa)
			n.stt.Store(int32(StateOpen))
			n.noDelay()
			return n, IOOk
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil, IOWouldBlock
		case errors.Is(err, unix.ECONNABORTED):
			// peer vanished between accept and now, try the next one
			continue
		}

		return nil, o.fatal(err)
	}
}

func (o *sck) ReadIntoBuffer() (int, IOStatus) {
	for {
		n, err := unix.Read(o.Fd(), o.tmp)

		switch {
		case err == nil && n > 0:
			o.rbu.Append(o.tmp[:n])
			o.Touch()
			if o.dmp != nil {
				o.dmp(sckbuf.TagIngress, o.Fd(), o.tmp[:n])
			}
			return n, IOOk
		case err == nil:
			return 0, IOEOF
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, IOWouldBlock
		case errors.Is(err, unix.ECONNRESET):
			return 0, IOEOF
		}

		return 0, o.fatal(err)
	}
}

func (o *sck) ReadDatagram() ([]byte, unix.Sockaddr, IOStatus) {
	p := make([]byte, maxDatagram)

	for {
		n, frm, err := unix.Recvfrom(o.Fd(), p, 0)

		switch {
		case err == nil:
			o.Touch()
			if o.dmp != nil {
				o.dmp(sckbuf.TagIngress, o.Fd(), p[:n])
			}
			return p[:n], frm, IOOk
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil, nil, IOWouldBlock
		}

		return nil, nil, o.fatal(err)
	}
}

func (o *sck) WriteFromBuffer() (int, IOStatus) {
	p := o.wbu.Bytes()
	if len(p) < 1 {
		return 0, IOOk
	}

	if o.dmp != nil {
		o.dmp(sckbuf.TagEgress, o.Fd(), p)
	}

	var tot int

	for len(p) > 0 {
		n, err := unix.SendmsgN(o.Fd(), p, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)

		switch {
		case err == nil:
			tot += n
			p = p[n:]
			o.Touch()
			continue
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			_ = o.wbu.Consume(tot)
			return tot, IOWouldBlock
		case errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNRESET):
			_ = o.wbu.Consume(tot)
			return tot, IOEOF
		}

		_ = o.wbu.Consume(tot)
		return tot, o.fatal(err)
	}

	_ = o.wbu.Consume(tot)
	return tot, IOOk
}

func (o *sck) WriteDatagram(p []byte, to unix.Sockaddr) IOStatus {
	if o.dmp != nil {
		o.dmp(sckbuf.TagEgress, o.Fd(), p)
	}

	for {
		err := unix.Sendto(o.Fd(), p, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT, to)

		switch {
		case err == nil:
			o.Touch()
			return IOOk
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			// datagram dropped under pressure
			return IOWouldBlock
		}

		return o.fatal(err)
	}
}

func (o *sck) FinishConnect() IOStatus {
	v, err := unix.GetsockoptInt(o.Fd(), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return o.fatal(err)
	}

	if v != 0 {
		return o.fatal(unix.Errno(v))
	}

	o.stt.Store(int32(StateOpen))
	o.noDelay()
	o.Touch()

	return IOOk
}

func (o *sck) Close() error {
	o.stt.Store(int32(StateClosed))

	fd := o.fd.Swap(-1)
	if fd < 0 {
		return nil
	}

	if o.rol == RoleListener && (o.net == libptc.NetworkUnix || o.net == libptc.NetworkUnixGram) && len(o.lcl) > 0 {
		_ = os.Remove(o.lcl)
	}

	if err := unix.Close(int(fd)); err != nil {
		return ErrorSocketClose.Error(err)
	}

	return nil
}
