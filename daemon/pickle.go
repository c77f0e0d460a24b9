//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
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

package daemon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	pickle "github.com/hydrogen18/stalecucumber"
	"github.com/tgres/wmd/graceful"
	"github.com/tgres/wmd/misc"
	"github.com/tgres/wmd/resource"
)

const maxPickleLength = 1 << 20

// pickleServiceManager accepts batches of samples from python
// pollers: a 4-byte big-endian length followed by a pickled list of
// (resource-id, stat, value) tuples.
type pickleServiceManager struct {
	rcvr       sampleQueuer
	listener   *graceful.Listener
	listenSpec string
	timeout    time.Duration
	stop       int32
}

func (g *pickleServiceManager) Stop() {
	if g.stopped() {
		return
	}
	atomic.StoreInt32(&(g.stop), 1)
	if g.listener != nil {
		log.Printf("Closing listener %s", g.listenSpec)
		g.listener.Close()
	}
}

func (g *pickleServiceManager) Wait() {
	if g.listener != nil {
		g.listener.Wait()
	}
}

func (g *pickleServiceManager) Addr() net.Addr {
	if g.listener != nil {
		return g.listener.Addr()
	}
	return nil
}

func (g *pickleServiceManager) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

func (g *pickleServiceManager) Start() error {
	if g.listenSpec == "" {
		log.Printf("Not starting Pickle Protocol because pickle-listen-spec is blank.")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting Pickle Protocol: %v", err)
	}

	g.listener = graceful.NewListener(gl)

	log.Printf("Pickle protocol Listening on %s", gl.Addr())

	go serveTCP("pickleServer", g.listener, g.stopped, g.handlePickleProtocol)

	return nil
}

func (g *pickleServiceManager) handlePickleProtocol(conn net.Conn) {

	defer conn.Close() // decrements the graceful listener count

	var err error
	for {
		var length uint32

		if g.stopped() {
			return
		}

		if g.timeout != 0 {
			conn.SetDeadline(time.Now().Add(g.timeout))
		}

		if err = binary.Read(conn, binary.BigEndian, &length); err != nil {
			break
		}
		if length > maxPickleLength {
			err = fmt.Errorf("pickle too large: %d bytes", length)
			break
		}

		buff := make([]byte, length)
		if _, err = io.ReadFull(conn, buff); err != nil {
			err = fmt.Errorf("incomplete read, length: %v: %v", length, err)
			break
		}

		var samples []pickledSample
		if samples, err = unpickleSamples(buff); err != nil {
			break
		}
		for _, s := range samples {
			g.rcvr.QueueSample(s.id, s.kind, s.value)
		}
	}

	if err != nil && err != io.EOF {
		if !strings.Contains(err.Error(), "use of closed") {
			log.Printf("handlePickleProtocol(): Error reading: %v", err)
		}
	}
}

type pickledSample struct {
	id    resource.ID
	kind  resource.StatKind
	value uint64
}

// unpickleSamples decodes one message. A malformed tuple fails the
// whole message.
func unpickleSamples(buff []byte) ([]pickledSample, error) {
	items, err := pickle.ListOrTuple(pickle.Unpickle(bytes.NewBuffer(buff)))
	if err != nil {
		return nil, err
	}

	result := make([]pickledSample, 0, len(items))
	for _, item := range items {
		tuple, err := pickle.ListOrTuple(item, nil)
		if err != nil {
			return nil, err
		}
		if len(tuple) != 3 {
			return nil, fmt.Errorf("sample wrong length: %d", len(tuple))
		}

		var (
			id, stat string
			value    int64
		)
		id, err = pickle.String(tuple[0], err)
		stat, err = pickle.String(tuple[1], err)
		value, err = pickle.Int(tuple[2], err)
		if err != nil {
			return nil, err
		}

		kind, err := parseSampleStat(stat)
		if err != nil {
			return nil, err
		}
		if value < 0 {
			return nil, fmt.Errorf("%s %s: negative value %d", id, stat, value)
		}
		result = append(result, pickledSample{
			id:    resource.ID(misc.SanitizeId(id)),
			kind:  kind,
			value: uint64(value),
		})
	}
	return result, nil
}
