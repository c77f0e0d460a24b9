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

package daemon

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tgres/wmd/graceful"
	h "github.com/tgres/wmd/http"
	"github.com/tgres/wmd/metrics"
	"github.com/tgres/wmd/watermark"
)

func httpMux(eng *watermark.Engine, rcvr sampleQueuer, fl h.Flusher, exp *metrics.Exporter) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/watermarks", h.WatermarksHandler(eng))
	mux.HandleFunc("/clear", h.ClearHandler(eng, fl))
	mux.HandleFunc("/interval", h.IntervalHandler(eng))
	mux.HandleFunc("/sample", h.SampleHandler(rcvr))

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { fmt.Fprintf(w, "OK\n") })

	if exp != nil {
		mux.Handle("/metrics", exp.Handler())
	}
	return mux
}

type wwwServer struct {
	eng        *watermark.Engine
	rcvr       sampleQueuer
	flusher    h.Flusher
	exporter   *metrics.Exporter
	listener   *graceful.Listener
	listenSpec string
	stop       int32
}

func (g *wwwServer) Stop() {
	if g.stopped() {
		return
	}
	atomic.StoreInt32(&(g.stop), 1)
	if g.listener != nil {
		log.Printf("Closing listener %s", g.listenSpec)
		g.listener.Close()
	}
}

func (g *wwwServer) Wait() {
	if g.listener != nil {
		g.listener.Wait()
	}
}

func (g *wwwServer) Addr() net.Addr {
	if g.listener != nil {
		return g.listener.Addr()
	}
	return nil
}

func (g *wwwServer) stopped() bool {
	return atomic.LoadInt32(&(g.stop)) != 0
}

func (g *wwwServer) Start() error {
	if g.listenSpec == "" {
		log.Printf("Not starting HTTP server because http-listen-spec is blank.")
		return nil
	}

	gl, err := net.Listen("tcp", processListenSpec(g.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting HTTP protocol: %v", err)
	}

	g.listener = graceful.NewListener(gl)

	log.Printf("HTTP protocol Listening on %s", gl.Addr())

	server := &http.Server{
		Handler:        httpMux(g.eng, g.rcvr, g.flusher, g.exporter),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	// idle keep-alive connections would hold up Wait
	server.SetKeepAlivesEnabled(false)

	go func() {
		if err := server.Serve(g.listener); err != nil && !g.stopped() {
			log.Printf("wwwServer: %v", err)
		}
	}()

	return nil
}
