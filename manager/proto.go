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

package manager

import (
	sckcdc "github.com/drnp/bsp/codec"
	sckscr "github.com/drnp/bsp/script"
)

// Control channel frame tags. The channel reuses the standard packet
// framing; bodies are codec documents.
const (
	TagRegister uint32 = 0x4D01
	TagCommand  uint32 = 0x4D02
	TagStatus   uint32 = 0x4D03
	TagAck      uint32 = 0x4D04
)

// Command operations pushed from the manager to a worker process.
const (
	OpReload     = "reload"
	OpReopenLogs = "reopen_logs"
	OpStatus     = "status"
	OpShutdown   = "shutdown"
)

// Register is the worker announcement sent right after the channel opens.
type Register struct {
	App      int    `json:"app"`
	Instance string `json:"instance"`
	Pid      int    `json:"pid"`
}

func (r Register) value() sckscr.Value {
	return sckscr.Object(map[string]sckscr.Value{
		"app":      sckscr.Int(int64(r.App)),
		"instance": sckscr.String(r.Instance),
		"pid":      sckscr.Int(int64(r.Pid)),
	})
}

// EncodeRegister renders a worker announcement body.
func EncodeRegister(cdc sckcdc.Codec, r Register) ([]byte, error) {
	return cdc.Encode(r.value())
}

// DecodeRegister parses a worker announcement body.
func DecodeRegister(cdc sckcdc.Codec, p []byte) (Register, error) {
	v, err := cdc.Decode(p)
	if err != nil {
		return Register{}, err
	}

	return Register{
		App:      int(v.Get("app").Int()),
		Instance: v.Get("instance").StringVal(),
		Pid:      int(v.Get("pid").Int()),
	}, nil
}

// EncodeCommand renders a command body.
func EncodeCommand(cdc sckcdc.Codec, op string) ([]byte, error) {
	return cdc.Encode(sckscr.Object(map[string]sckscr.Value{
		"op": sckscr.String(op),
	}))
}

// DecodeCommand parses a command body.
func DecodeCommand(cdc sckcdc.Codec, p []byte) (string, error) {
	v, err := cdc.Decode(p)
	if err != nil {
		return "", err
	}

	return v.Get("op").StringVal(), nil
}
