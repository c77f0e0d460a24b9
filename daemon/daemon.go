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

// Package daemon runs wmd: it reads the config, builds the watermark
// engine for the configured ports, wires the receiver, publisher and
// metrics exporter to it, starts the listeners and waits for signals.
package daemon

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tgres/wmd/metrics"
	"github.com/tgres/wmd/publisher"
	"github.com/tgres/wmd/receiver"
	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/serde"
	"github.com/tgres/wmd/watermark"
)

// wmd is everything Init builds, in the order it is stopped.
type wmd struct {
	sm       *serviceManager
	rcvr     *receiver.Receiver
	eng      *watermark.Engine
	pub      *publisher.Publisher
	db       serde.SerDe
	exporter *metrics.Exporter
}

var savePid = func(pidPath string) error {
	f, err := os.Create(pidPath)
	if err != nil {
		return fmt.Errorf("Unable to create pid file '%s': (%v)", pidPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "%d\n", os.Getpid())
	log.Printf("Pid saved in %s.", pidPath)
	return nil
}

var getCwd = func() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Unable to determine current directory: %v", err)
	}
	return wd
}

var initDb = func(connectString, prefix string) (serde.SerDe, error) {
	if connectString == "" {
		return serde.NewMemSerDe(), nil
	}
	return serde.InitDb(connectString, prefix)
}

var createRegistry = func(cfg *Config) (*resource.Registry, error) {
	rs, err := resource.Enumerate(cfg.portLayouts())
	if err != nil {
		return nil, err
	}
	return resource.NewRegistry(rs)
}

var createReceiver = func(cfg *Config, eng *watermark.Engine, exp *metrics.Exporter) *receiver.Receiver {
	r := receiver.New(eng, exp)
	if cfg.Workers > 0 {
		r.NWorkers = cfg.Workers
	}
	return r
}

var createPublisher = func(cfg *Config, db serde.SerDe, exp *metrics.Exporter) (*publisher.Publisher, error) {
	return publisher.New(db.Flusher(), publisher.Config{
		Interval:            cfg.PublishInterval.Duration,
		MaxFlushesPerSecond: cfg.MaxPublishesPerSecond,
		CacheSize:           cfg.PublishCacheSize,
		Stats:               exp,
	})
}

var startServices = func(sm *serviceManager) error {
	return sm.run()
}

// Init starts the daemon and returns once it has been told to exit.
// It is not to be confused with init().
func Init(cfgPath string) {

	runtime.GOMAXPROCS(runtime.NumCPU())

	log.Printf("wmd starting.")

	cfg, err := readConfig(cfgPath)
	if err != nil {
		log.Printf("Error reading config file %s: %v", cfgPath, err)
		return
	}

	if err := processConfig(configer(cfg), getCwd()); err != nil { // This validates the config
		log.Printf("Error in config file %s: %v", cfgPath, err)
		return
	}

	if err := savePid(cfg.PidPath); err != nil {
		log.Printf("%v", err)
		return
	}
	defer os.Remove(cfg.PidPath)

	d, err := start(cfg)
	if err != nil {
		log.Printf("Exiting: %v", err)
		return
	}

	waitForSignal(d, cfgPath)

	log.Printf("wmd exiting.")
	closeLog()
}

// start builds and starts everything. On error whatever was started
// is stopped again.
func start(cfg *Config) (*wmd, error) {
	reg, err := createRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("resource registry: %v", err)
	}
	log.Printf("Tracking %d resources, %d watermark entries.", reg.Len(), len(reg.Keys()))

	eng, err := watermark.NewEngine(reg, cfg.TelemetryInterval.Duration, nil)
	if err != nil {
		return nil, err
	}

	db, err := initDb(cfg.DbConnectString, cfg.DbTablePrefix)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to the DB: %v", err)
	}
	// state is not carried across restarts
	if err := db.Truncate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error emptying watermark tables: %v", err)
	}
	log.Printf("Initialized DB connection.")

	exp := metrics.New()

	pub, err := createPublisher(cfg, db, exp)
	if err != nil {
		db.Close()
		return nil, err
	}

	d := &wmd{
		rcvr:     createReceiver(cfg, eng, exp),
		eng:      eng,
		pub:      pub,
		db:       db,
		exporter: exp,
	}

	eng.OnViewChanged(exp.ViewChanged)
	eng.OnViewChanged(pub.ViewChanged)
	// every view starts out published, zeros included
	eng.Announce(exp.ViewChanged)
	eng.Announce(pub.ViewChanged)

	pub.Start()
	d.rcvr.Start()
	if err := eng.Start(); err != nil {
		d.rcvr.Stop()
		pub.Stop()
		db.Close()
		return nil, err
	}

	d.sm = newServiceManager(eng, d.rcvr, pub, exp, cfg)
	if err := startServices(d.sm); err != nil {
		d.sm = nil
		d.stop()
		return nil, fmt.Errorf("Could not run the service manager: %v", err)
	}

	return d, nil
}

// stop shuts down in dependency order: no new samples, drain the
// receiver, stop the window timer, then write what is pending.
func (d *wmd) stop() {
	log.Printf("Gracefully exiting...")

	if d.sm != nil {
		d.sm.closeListeners(true)
	}

	d.rcvr.Stop()
	d.eng.Stop()
	d.pub.Stop()

	if err := d.db.Close(); err != nil {
		log.Printf("Error closing the DB: %v", err)
	}
}

// reload applies the parts of the config that can change at runtime.
// Only telemetry-interval can, the rest needs a restart.
func (d *wmd) reload(cfgPath string) {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		log.Printf("reload: error reading config file %s: %v", cfgPath, err)
		return
	}
	if err := cfg.processTelemetryInterval(); err != nil {
		log.Printf("reload: %v", err)
		return
	}
	if cfg.TelemetryInterval.Duration == d.eng.Interval() {
		log.Printf("reload: telemetry-interval unchanged (%v).", d.eng.Interval())
		return
	}
	if err := d.eng.ConfigureInterval(int(cfg.TelemetryInterval.Duration / time.Second)); err != nil {
		log.Printf("reload: %v", err)
		return
	}
	log.Printf("reload: telemetry-interval is now %v.", cfg.TelemetryInterval.Duration)
}

var waitForSignal = func(d *wmd, cfgPath string) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ch)

	for s := range ch {
		log.Printf("Got signal: %v", s)
		if s == syscall.SIGHUP {
			d.reload(cfgPath)
			continue
		}
		d.stop()
		return
	}
}
