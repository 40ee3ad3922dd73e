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

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorEndpointNetwork liberr.CodeError = iota + liberr.MinAvailable + 30
	ErrorEndpointPath
	ErrorEndpointPort
	ErrorEndpointResolve
	ErrorSocketCreate
	ErrorSocketBind
	ErrorSocketListen
	ErrorSocketConnect
	ErrorSocketClose
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorEndpointNetwork)
	liberr.RegisterIdFctMessage(ErrorEndpointNetwork, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorEndpointNetwork:
		return "network protocol is not usable for an endpoint"
	case ErrorEndpointPath:
		return "local endpoint requires an absolute path"
	case ErrorEndpointPort:
		return "endpoint port is out of range"
	case ErrorEndpointResolve:
		return "unable to resolve endpoint host"
	case ErrorSocketCreate:
		return "unable to create kernel socket"
	case ErrorSocketBind:
		return "unable to bind socket to endpoint"
	case ErrorSocketListen:
		return "unable to switch socket to listening state"
	case ErrorSocketConnect:
		return "unable to connect socket to endpoint"
	case ErrorSocketClose:
		return "error while closing socket"
	}

	return ""
}
