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
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	h "github.com/tgres/wmd/http"
	"github.com/tgres/wmd/metrics"
	"github.com/tgres/wmd/watermark"
)

type wmService interface {
	Start() error
	Stop()
	Wait()
	Addr() net.Addr
}

type serviceMap map[string]wmService
type serviceManager struct {
	services serviceMap
}

func newServiceManager(eng *watermark.Engine, rcvr sampleQueuer, fl h.Flusher, exp *metrics.Exporter, cfg *Config) *serviceManager {
	return &serviceManager{
		services: serviceMap{
			"text":   &textServiceManager{rcvr: rcvr, listenSpec: cfg.TextListenSpec, timeout: 30 * time.Second},
			"udp":    &textServiceManager{rcvr: rcvr, listenSpec: cfg.UdpListenSpec, udp: true},
			"pickle": &pickleServiceManager{rcvr: rcvr, listenSpec: cfg.PickleListenSpec, timeout: 30 * time.Second},
			"www":    &wwwServer{eng: eng, rcvr: rcvr, flusher: fl, exporter: exp, listenSpec: cfg.HttpListenSpec},
		},
	}
}

func processListenSpec(listenSpec string) string {
	if os.Getenv("WMD_BIND") != "" {
		return strings.Replace(listenSpec, "0.0.0.0", os.Getenv("WMD_BIND"), 1)
	}
	return listenSpec
}

func (r *serviceManager) names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// run starts every service. If one fails, the ones already started
// are stopped.
func (r *serviceManager) run() error {
	var started []wmService
	for _, name := range r.names() {
		service := r.services[name]
		if err := service.Start(); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return err
		}
		started = append(started, service)
	}
	return nil
}

func (r *serviceManager) closeListeners(wait bool) {
	for _, service := range r.services {
		service.Stop()
	}
	if wait {
		log.Printf("Waiting for all connections to finish...")
		for _, service := range r.services {
			service.Wait()
		}
		log.Printf("Connections finished.")
	}
}
