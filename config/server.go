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

package config

import (
	"strings"

	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	libptc "github.com/nabbar/golib/network/protocol"
	libsiz "github.com/nabbar/golib/size"

	sckfrm "github.com/drnp/bsp/framing"
)

// Server describes one configured listener.
type Server struct {
	// Name labels the listener in logs and status dumps.
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`

	// Addr is the host portion: IP literal, bracketed IPv6, DNS name,
	// or absolute path for local networks. Empty binds every family.
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" toml:"addr"`

	// Port is ignored for local networks.
	Port int `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"gte=0,lte=65535"`

	// Network is one of tcp, udp, unix, unixgram.
	Network string `mapstructure:"network" json:"network" yaml:"network" toml:"network" validate:"omitempty,oneof=tcp udp unix unixgram"`

	// Framing is one of packet, stream, datagram.
	Framing string `mapstructure:"framing" json:"framing" yaml:"framing" toml:"framing" validate:"omitempty,oneof=packet stream raw datagram dgram"`

	// Backlog is the kernel accept queue depth.
	Backlog int `mapstructure:"backlog" json:"backlog" yaml:"backlog" toml:"backlog" validate:"gte=0"`

	// MaxClients caps concurrent connections; above it new fds close
	// at once without any callback.
	MaxClients int `mapstructure:"max_clients" json:"max_clients" yaml:"max_clients" toml:"max_clients" validate:"gte=0"`

	// MaxPacketLength bounds one packet-mode frame, header included.
	MaxPacketLength libsiz.Size `mapstructure:"max_packet_length" json:"max_packet_length" yaml:"max_packet_length" toml:"max_packet_length"`

	// HeartbeatTTL is the idle window before the reaper closes a
	// connection; 0 disables reaping for this listener.
	HeartbeatTTL libdur.Duration `mapstructure:"heartbeat_check" json:"heartbeat_check" yaml:"heartbeat_check" toml:"heartbeat_check"`

	// CloseOnOverflow closes the connection when the outbound buffer
	// crosses the high-water mark instead of dropping the append.
	CloseOnOverflow bool `mapstructure:"close_on_overflow" json:"close_on_overflow" yaml:"close_on_overflow" toml:"close_on_overflow"`

	// ObjectPayload routes packet payloads through the document codec
	// before dispatch.
	ObjectPayload bool `mapstructure:"object_payload" json:"object_payload" yaml:"object_payload" toml:"object_payload"`

	// Script handler names; empty slots fire nothing.
	OnConnect string `mapstructure:"script_func_on_connect" json:"script_func_on_connect" yaml:"script_func_on_connect" toml:"script_func_on_connect"`
	OnData    string `mapstructure:"script_func_on_data" json:"script_func_on_data" yaml:"script_func_on_data" toml:"script_func_on_data"`
	OnClose   string `mapstructure:"script_func_on_close" json:"script_func_on_close" yaml:"script_func_on_close" toml:"script_func_on_close"`
	OnError   string `mapstructure:"script_func_on_error" json:"script_func_on_error" yaml:"script_func_on_error" toml:"script_func_on_error"`
}

// SetDefaults fills the per-listener defaults.
func (s *Server) SetDefaults() {
	if len(s.Network) < 1 {
		s.Network = libptc.NetworkTCP.Code()
	}

	if s.Backlog < 1 {
		s.Backlog = DefaultBacklog
	}

	if s.MaxClients < 1 {
		s.MaxClients = DefaultMaxClients
	}

	if s.MaxPacketLength < 1 {
		s.MaxPacketLength = DefaultMaxPacket
	}
}

// Protocol maps the configured network string onto the protocol enum.
func (s *Server) Protocol() libptc.NetworkProtocol {
	switch strings.ToLower(strings.TrimSpace(s.Network)) {
	case libptc.NetworkUDP.Code():
		return libptc.NetworkUDP
	case libptc.NetworkUnix.Code():
		return libptc.NetworkUnix
	case libptc.NetworkUnixGram.Code():
		return libptc.NetworkUnixGram
	}

	return libptc.NetworkTCP
}

// Mode maps the configured framing string onto the framing mode; datagram
// networks always frame per datagram.
func (s *Server) Mode() sckfrm.Mode {
	p := s.Protocol()
	if p == libptc.NetworkUDP || p == libptc.NetworkUnixGram {
		return sckfrm.ModeDatagram
	}

	return sckfrm.ParseMode(s.Framing)
}

// Check verifies the cross-field constraints validator tags cannot carry.
func (s *Server) Check() liberr.Error {
	p := s.Protocol()

	if p == libptc.NetworkUnix || p == libptc.NetworkUnixGram {
		if !strings.HasPrefix(s.Addr, "/") {
			return ErrorConfigEndpoint.Error(nil)
		}
	} else if s.Port < 1 {
		return ErrorConfigEndpoint.Error(nil)
	}

	if s.Mode() == sckfrm.ModePacket && s.MaxPacketLength.Int64() <= sckfrm.HeaderSize {
		return ErrorConfigPacketLen.Error(nil)
	}

	return nil
}
