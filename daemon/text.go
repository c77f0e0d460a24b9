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
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tgres/wmd/graceful"
	"github.com/tgres/wmd/misc"
	"github.com/tgres/wmd/resource"
)

type sampleQueuer interface {
	QueueSample(id resource.ID, kind resource.StatKind, v uint64)
}

// textServiceManager accepts samples one per line,
// "<resource-id> <stat> <value>", over TCP or UDP.
type textServiceManager struct {
	rcvr       sampleQueuer
	listenSpec string
	udp        bool
	stop       int32

	// TCP
	listener *graceful.Listener
	timeout  time.Duration

	// UDP
	conn  net.Conn
	udpWg sync.WaitGroup
}

func (g *textServiceManager) Stop() {
	if g.stopped() {
		return
	}
	atomic.StoreInt32(&(g.stop), 1)
	if g.conn != nil {
		log.Printf("Closing UDP listener %s", g.listenSpec)
		g.conn.Close()
	}
	if g.listener != nil {
		log.Printf("Closing TCP listener %s", g.listenSpec)
		g.listener.Close()
	}
}

func (g *textServiceManager) Wait() {
	if g.listener != nil {
		g.listener.Wait()
	}
	g.udpWg.Wait()
}

func (g *textServiceManager) Addr() net.Addr {
	if g.conn != nil {
		return g.conn.LocalAddr()
	}
	if g.listener != nil {
		return g.listener.Addr()
	}
	return nil
}

func (g *textServiceManager) Start() error {
	if g.udp {
		return g.startUDP()
	}
	return g.startTCP()
}

func (g *textServiceManager) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

func (g *textServiceManager) startUDP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting UDP text protocol because udp-listen-spec is blank.")
		return nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", processListenSpec(g.listenSpec))
	if err == nil {
		g.conn, err = net.ListenUDP("udp", udpAddr)
	}
	if err != nil {
		return fmt.Errorf("Error starting UDP text protocol: %v", err)
	}

	log.Printf("UDP text protocol Listening on %s", g.conn.LocalAddr())

	// UDP only has one connection, unlike TCP
	g.udpWg.Add(1)
	go func(conn net.Conn) {
		defer g.udpWg.Done()
		g.handleTextProtocol(conn)
	}(g.conn)

	return nil
}

func (g *textServiceManager) startTCP() error {
	if g.listenSpec == "" {
		log.Printf("Not starting text protocol because text-listen-spec is blank.")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting text protocol: %v", err)
	}

	g.listener = graceful.NewListener(gl)

	log.Printf("Text protocol Listening on %s", gl.Addr())

	go serveTCP("textTCPServer", g.listener, g.stopped, g.handleTextProtocol)

	return nil
}

// serveTCP accepts connections until the listener is closed.
func serveTCP(name string, l net.Listener, stopped func() bool, handle func(net.Conn)) error {

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()

		// This code comes from the golang http lib, it attempts to
		// retry accepting a connection when too many files are open
		// under heavy load.
		if err != nil {
			if stopped() {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Printf("%s(): Accept error: %v; retrying in %v", name, err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			log.Printf("%s(): Accept error: %v", name, err)
			return err
		}
		tempDelay = 0

		go handle(conn)
	}
}

// Handles incoming requests for both TCP and UDP
func (g *textServiceManager) handleTextProtocol(conn net.Conn) {
	defer conn.Close() // decrements the graceful listener count

	if g.timeout != 0 {
		conn.SetDeadline(time.Now().Add(g.timeout))
	}

	// We use Scanner, becase it has a MaxScanTokenSize of 64K
	connbuf := bufio.NewScanner(conn)

	for connbuf.Scan() {
		line := connbuf.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if id, kind, v, err := parseSampleLine(line); err != nil {
			log.Printf("handleTextProtocol(): bad line: %v", err)
		} else {
			g.rcvr.QueueSample(id, kind, v)
		}

		if g.timeout != 0 {
			conn.SetDeadline(time.Now().Add(g.timeout))
		}

		if g.stopped() {
			return
		}
	}

	if err := connbuf.Err(); err != nil {
		if !strings.Contains(err.Error(), "use of closed") {
			log.Printf("handleTextProtocol(): Error reading: %v", err)
		}
	}
}

func parseSampleLine(line string) (resource.ID, resource.StatKind, uint64, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", 0, 0, fmt.Errorf("expected <resource-id> <stat> <value>: %q", line)
	}
	kind, err := parseSampleStat(fields[1])
	if err != nil {
		return "", 0, 0, err
	}
	v, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid value in %q: %v", line, err)
	}
	return resource.ID(misc.SanitizeId(fields[0])), kind, v, nil
}

// parseSampleStat is resource.ParseStatKind without the "all" wildcard.
func parseSampleStat(s string) (resource.StatKind, error) {
	kind, err := resource.ParseStatKind(s)
	if err != nil {
		return 0, err
	}
	if kind == 0 {
		return 0, fmt.Errorf("a sample needs a specific stat, got %q", s)
	}
	return kind, nil
}
