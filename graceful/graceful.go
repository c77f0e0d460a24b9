//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graceful wraps a net.Listener so that it can be closed
// exactly once and the connections it accepted can be waited for.
package graceful

import (
	"net"
	"sync"
	"syscall"
)

type gracefulConn struct {
	net.Conn
	once *sync.Once
	wg   *sync.WaitGroup
}

func (w gracefulConn) Close() error {
	err := w.Conn.Close()
	w.once.Do(w.wg.Done)
	return err
}

type Listener struct {
	net.Listener
	lk      sync.Mutex
	stopped bool
	conns   sync.WaitGroup
}

func NewListener(l net.Listener) *Listener {
	return &Listener{Listener: l}
}

// Close stops accepting. Closing twice returns EINVAL.
func (gl *Listener) Close() error {
	gl.lk.Lock()
	defer gl.lk.Unlock()
	if gl.stopped {
		return syscall.EINVAL
	}
	gl.stopped = true
	return gl.Listener.Close()
}

func (gl *Listener) Stopped() bool {
	gl.lk.Lock()
	defer gl.lk.Unlock()
	return gl.stopped
}

func (gl *Listener) Accept() (net.Conn, error) {
	c, err := gl.Listener.Accept()
	if err != nil {
		return nil, err
	}
	gl.conns.Add(1)
	return gracefulConn{Conn: c, once: &sync.Once{}, wg: &gl.conns}, nil
}

// Wait blocks until every accepted connection has been closed.
func (gl *Listener) Wait() {
	gl.conns.Wait()
}
