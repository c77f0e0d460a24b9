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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tgres/wmd/misc"
	"github.com/tgres/wmd/resource"
	"github.com/tgres/wmd/watermark"
)

type Config struct { // Needs to be exported for TOML to work
	PidPath               string   `toml:"pid-file"`
	LogPath               string   `toml:"log-file"`
	LogCycle              duration `toml:"log-cycle-interval"`
	DbConnectString       string   `toml:"db-connect-string"`
	DbTablePrefix         string   `toml:"db-table-prefix"`
	TelemetryInterval     duration `toml:"telemetry-interval"`
	TextListenSpec        string   `toml:"text-listen-spec"`
	UdpListenSpec         string   `toml:"udp-listen-spec"`
	PickleListenSpec      string   `toml:"pickle-listen-spec"`
	HttpListenSpec        string   `toml:"http-listen-spec"`
	Workers               int
	PublishInterval       duration     `toml:"publish-interval"`
	MaxPublishesPerSecond int          `toml:"max-publishes-per-second"`
	PublishCacheSize      int          `toml:"publish-cache-size"`
	Ports                 []ConfigPort `toml:"port"`
}

// duration accepts everything misc.BetterParseDuration does, e.g. "2min".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = misc.BetterParseDuration(string(text))
	return err
}

// Needs to be exported for TOML
type ConfigPort struct {
	Name           string
	Queues         int
	UnicastQueues  *int `toml:"unicast-queues"`
	PriorityGroups int  `toml:"priority-groups"`
}

var readConfig = func(cfgPath string) (*Config, error) {
	cfg := &Config{}
	_, err := toml.DecodeFile(cfgPath, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) processConfigPidFile(wd string) error {
	if c.PidPath == "" {
		return fmt.Errorf("pid-file setting empty")
	}
	if !filepath.IsAbs(c.PidPath) {
		if wd == "" {
			return fmt.Errorf("pid-file must be absolute path if working directory cannot be determined")
		}
		c.PidPath = filepath.Join(wd, c.PidPath)
	}
	pidDir, _ := filepath.Split(c.PidPath)
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", pidDir, err)
	}
	return nil
}

func (c *Config) processConfigLogFile(wd string) error {
	if os.Getenv("WMD_LOG") != "" {
		c.LogPath = os.Getenv("WMD_LOG")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log-file setting empty")
	}
	if !filepath.IsAbs(c.LogPath) {
		if wd == "" {
			return fmt.Errorf("log-file must be absolute path if working directory cannot be determined")
		}
		c.LogPath = filepath.Join(wd, c.LogPath)
	}
	logDir, _ := filepath.Split(c.LogPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("Unable to create directory: '%s' (%v).", logDir, err)
	}

	log.Printf("Logs will be written to '%s'.", c.LogPath)
	return nil
}

func (c *Config) processConfigLogCycleInterval() error {
	if c.LogCycle.Duration == 0 {
		return fmt.Errorf("log-cycle-interval setting empty")
	}
	log.Printf("Will cycle logs every %v (log-cycle-interval).", c.LogCycle.Duration)

	logDir, _ := filepath.Split(c.LogPath)
	log.Printf("All further status messages will be written to log file(s) in '%s'.", logDir)
	logFileCycler(c.LogPath, c.LogCycle.Duration)
	log.Print("Server starting.")

	return nil
}

func (c *Config) processDbConnectString() error {
	if os.Getenv("WMD_DB_CONNECT") != "" {
		c.DbConnectString = os.Getenv("WMD_DB_CONNECT")
	}
	if c.DbConnectString == "" {
		log.Printf("db-connect-string empty, watermarks will not be published to a database.")
	}
	return nil
}

func (c *Config) processTelemetryInterval() error {
	if c.TelemetryInterval.Duration == 0 {
		c.TelemetryInterval.Duration = watermark.DefaultInterval
		log.Printf("telemetry-interval unspecified, defaults to %v", c.TelemetryInterval.Duration)
		return nil
	}
	if c.TelemetryInterval.Duration < time.Second {
		return fmt.Errorf("telemetry-interval (%v) must be at least one second", c.TelemetryInterval.Duration)
	}
	if c.TelemetryInterval.Duration%time.Second != 0 {
		return fmt.Errorf("telemetry-interval (%v) must be a whole number of seconds", c.TelemetryInterval.Duration)
	}
	log.Printf("Periodic watermarks will be taken every %v (telemetry-interval).", c.TelemetryInterval.Duration)
	return nil
}

func (c *Config) processWorkers() error {
	if c.Workers == 0 {
		return fmt.Errorf("workers missing, must be an integer")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers (%d) must be positive", c.Workers)
	}
	log.Printf("Number of receiver workers will be %d.", c.Workers)
	return nil
}

func (c *Config) processPublish() error {
	if c.PublishInterval.Duration == 0 {
		c.PublishInterval.Duration = time.Second
		log.Printf("publish-interval unspecified, defaults to %v", c.PublishInterval.Duration)
	}
	if c.MaxPublishesPerSecond < 0 {
		return fmt.Errorf("max-publishes-per-second (%d) cannot be negative", c.MaxPublishesPerSecond)
	} else if c.MaxPublishesPerSecond == 0 {
		log.Printf("Publishing is not rate limited (max-publishes-per-second).")
	} else {
		log.Printf("Publishing is limited to %d per second (max-publishes-per-second).", c.MaxPublishesPerSecond)
	}
	if c.PublishCacheSize < 0 {
		return fmt.Errorf("publish-cache-size (%d) cannot be negative", c.PublishCacheSize)
	}
	return nil
}

func (c *Config) processPorts() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("no [[port]] configured, there is nothing to watch")
	}
	seen := make(map[string]bool, len(c.Ports))
	for _, p := range c.Ports {
		if seen[p.Name] {
			return fmt.Errorf("port %q configured more than once", p.Name)
		}
		seen[p.Name] = true
	}
	// Enumerate has the rest of the checks
	if _, err := resource.Enumerate(c.portLayouts()); err != nil {
		return err
	}
	log.Printf("Watching %d port(s).", len(c.Ports))
	return nil
}

func (c *Config) portLayouts() []resource.PortLayout {
	result := make([]resource.PortLayout, len(c.Ports))
	for i, p := range c.Ports {
		result[i] = resource.PortLayout{
			Name:           p.Name,
			Queues:         p.Queues,
			UnicastQueues:  p.UnicastQueues,
			PriorityGroups: p.PriorityGroups,
		}
	}
	return result
}

type configer interface {
	processConfigPidFile(string) error
	processConfigLogFile(string) error
	processConfigLogCycleInterval() error
	processDbConnectString() error
	processTelemetryInterval() error
	processWorkers() error
	processPublish() error
	processPorts() error
}

var processConfig = func(c configer, wd string) error {

	if err := c.processConfigPidFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogFile(wd); err != nil {
		return err
	}
	if err := c.processConfigLogCycleInterval(); err != nil {
		return err
	}
	if err := c.processDbConnectString(); err != nil {
		return err
	}
	if err := c.processTelemetryInterval(); err != nil {
		return err
	}
	if err := c.processWorkers(); err != nil {
		return err
	}
	if err := c.processPublish(); err != nil {
		return err
	}
	if err := c.processPorts(); err != nil {
		return err
	}
	return nil
}
