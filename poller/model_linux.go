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

package poller

import (
	"errors"

	"golang.org/x/sys/unix"
)

const eventBatch = 256

// New returns an edge-triggered epoll-backed Poller.
func New() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorPollerCreate.Error(err)
	}

	return &epl{
		fd:  fd,
		evt: make([]unix.EpollEvent, eventBatch),
		out: make([]Event, 0, eventBatch),
	}, nil
}

type epl struct {
	fd  int
	evt []unix.EpollEvent
	out []Event
}

func epollMask(i Interest) uint32 {
	m := uint32(unix.EPOLLET | unix.EPOLLRDHUP)

	if i&InterestRead != 0 {
		m |= unix.EPOLLIN
	}

	if i&InterestWrite != 0 {
		m |= unix.EPOLLOUT
	}

	return m
}

func (o *epl) ctl(op int, fd int, i Interest) error {
	e := &unix.EpollEvent{
		Events: epollMask(i),
		Fd:     int32(fd),
	}

	if err := unix.EpollCtl(o.fd, op, fd, e); err != nil {
		return ErrorPollerCtl.Error(err)
	}

	return nil
}

func (o *epl) Register(fd int, i Interest) error {
	return o.ctl(unix.EPOLL_CTL_ADD, fd, i)
}

func (o *epl) Modify(fd int, i Interest) error {
	return o.ctl(unix.EPOLL_CTL_MOD, fd, i)
}

func (o *epl) Unregister(fd int) error {
	if err := unix.EpollCtl(o.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		// the kernel drops registrations with the fd; stale deletes are fine
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
			return nil
		}
		return ErrorPollerCtl.Error(err)
	}

	return nil
}

func (o *epl) RunOnce(timeoutMs int) ([]Event, error) {
	var (
		n   int
		err error
	)

	for {
		n, err = unix.EpollWait(o.fd, o.evt, timeoutMs)
		if err == nil {
			break
		}

		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}

		return nil, ErrorPollerWait.Error(err)
	}

	o.out = o.out[:0]

	for i := 0; i < n; i++ {
		m := o.evt[i].Events

		o.out = append(o.out, Event{
			Fd:       int(o.evt[i].Fd),
			Readable: m&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP) != 0,
			Writable: m&unix.EPOLLOUT != 0,
			Hangup:   m&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0,
			Error:    m&unix.EPOLLERR != 0,
		})
	}

	return o.out, nil
}

func (o *epl) Close() error {
	if o.fd < 0 {
		return nil
	}

	err := unix.Close(o.fd)
	o.fd = -1

	if err != nil {
		return ErrorPollerClose.Error(err)
	}

	return nil
}
