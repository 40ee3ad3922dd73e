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
	"fmt"
	"net"
	"strings"

	libptc "github.com/nabbar/golib/network/protocol"

	"golang.org/x/sys/unix"
)

// Endpoint is one resolved bindable or dialable address.
type Endpoint struct {
	Network  libptc.NetworkProtocol
	Address  string
	Domain   int
	SockType int
	SA       unix.Sockaddr
}

// Resolve expands an endpoint spec into concrete socket addresses.
// The host portion accepts an IPv4 literal, an IPv6 literal (with or
// without brackets), a DNS name, or an absolute path for local sockets.
// An empty host on an IP network expands to both wildcard families.
// For local networks the port is ignored and the host is the path.
func Resolve(prt libptc.NetworkProtocol, host string, port int) ([]Endpoint, error) {
	switch prt {
	case libptc.NetworkUnix, libptc.NetworkUnixGram:
		return resolveLocal(prt, host)
	case libptc.NetworkTCP, libptc.NetworkUDP:
		return resolveInet(prt, host, port)
	}

	return nil, ErrorEndpointNetwork.Error(nil)
}

func sockTypeOf(prt libptc.NetworkProtocol) int {
	if prt == libptc.NetworkUDP || prt == libptc.NetworkUnixGram {
		return unix.SOCK_DGRAM
	}

	return unix.SOCK_STREAM
}

func resolveLocal(prt libptc.NetworkProtocol, path string) ([]Endpoint, error) {
	if len(path) < 1 || !strings.HasPrefix(path, "/") {
		return nil, ErrorEndpointPath.Error(nil)
	}

	return []Endpoint{
		{
			Network:  prt,
			Address:  path,
			Domain:   unix.AF_UNIX,
			SockType: sockTypeOf(prt),
			SA: &unix.SockaddrUnix{
				Name: path,
			},
		},
	}, nil
}

func resolveInet(prt libptc.NetworkProtocol, host string, port int) ([]Endpoint, error) {
	if port < 1 || port > 65535 {
		return nil, ErrorEndpointPort.Error(nil)
	}

	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")

	if len(host) < 1 {
		// wildcard, one endpoint per family
		return []Endpoint{
			inetEndpoint(prt, net.IPv4zero, port),
			inetEndpoint(prt, net.IPv6unspecified, port),
		}, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		return []Endpoint{inetEndpoint(prt, ip, port)}, nil
	}

	ips, err := net.LookupIP(host)
	if err != nil || len(ips) < 1 {
		return nil, ErrorEndpointResolve.Error(err)
	}

	var res []Endpoint
	for _, ip := range ips {
		res = append(res, inetEndpoint(prt, ip, port))
	}

	return res, nil
}

func inetEndpoint(prt libptc.NetworkProtocol, ip net.IP, port int) Endpoint {
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)

		return Endpoint{
			Network:  prt,
			Address:  fmt.Sprintf("%s:%d", v4.String(), port),
			Domain:   unix.AF_INET,
			SockType: sockTypeOf(prt),
			SA:       sa,
		}
	}

	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())

	return Endpoint{
		Network:  prt,
		Address:  fmt.Sprintf("[%s]:%d", ip.String(), port),
		Domain:   unix.AF_INET6,
		SockType: sockTypeOf(prt),
		SA:       sa,
	}
}

// FormatSockaddr renders a kernel address the way the matching endpoint
// would print it.
func FormatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%s:%d", net.IP(a.Addr[:]).String(), a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", net.IP(a.Addr[:]).String(), a.Port)
	case *unix.SockaddrUnix:
		return a.Name
	}

	return ""
}
