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

package server

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 210
	ErrorEngineRunning
	ErrorEngineStopped
	ErrorConnUnknown
	ErrorConnClosed
	ErrorConnOverflow
	ErrorSendPayload
	ErrorWorkerStart
	ErrorListenerStart
	ErrorConnectorStart
	ErrorScriptLoad
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorParamEmpty)
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamEmpty:
		return "at least one given parameter is empty or nil"
	case ErrorEngineRunning:
		return "engine is already running"
	case ErrorEngineStopped:
		return "engine is not running"
	case ErrorConnUnknown:
		return "no living connection for this id"
	case ErrorConnClosed:
		return "connection is closed or draining"
	case ErrorConnOverflow:
		return "outbound buffer exceeds high-water mark"
	case ErrorSendPayload:
		return "payload cannot be framed for this connection"
	case ErrorWorkerStart:
		return "unable to start worker event loop"
	case ErrorListenerStart:
		return "unable to start listener"
	case ErrorConnectorStart:
		return "unable to open outbound channel"
	case ErrorScriptLoad:
		return "script host load failed"
	}

	return ""
}
