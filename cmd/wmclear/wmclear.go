//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
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

// wmclear clears watermarks of a running wmd, or changes its
// telemetry interval.
//
//   wmclear queue watermark {unicast|multicast|all}
//   wmclear queue persistent-watermark {unicast|multicast|all}
//   wmclear priority-group watermark {shared|headroom}
//   wmclear priority-group persistent-watermark {shared|headroom}
//   wmclear -interval 30
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type clearRequest struct {
	view, class, subtype, stat string
}

func (c clearRequest) values() url.Values {
	v := url.Values{"view": {c.view}, "class": {c.class}}
	if c.subtype != "" {
		v.Set("subtype", c.subtype)
	}
	if c.stat != "" {
		v.Set("stat", c.stat)
	}
	return v
}

const usage = `usage:
  wmclear [-addr URL] queue {watermark|persistent-watermark} {unicast|multicast|all}
  wmclear [-addr URL] priority-group {watermark|persistent-watermark} {shared|headroom}
  wmclear [-addr URL] -interval SECONDS`

func parseClearArgs(args []string) (clearRequest, error) {
	var req clearRequest
	if len(args) != 3 {
		return req, fmt.Errorf("expected 3 arguments, got %d", len(args))
	}

	switch args[1] {
	case "watermark":
		req.view = "user"
	case "persistent-watermark":
		req.view = "persistent"
	default:
		return req, fmt.Errorf("invalid watermark type: %q (valid: watermark, persistent-watermark)", args[1])
	}

	switch args[0] {
	case "queue":
		req.class = "queue"
		switch args[2] {
		case "unicast", "multicast":
			req.subtype = args[2]
		case "all":
		default:
			return req, fmt.Errorf("invalid queue type: %q (valid: unicast, multicast, all)", args[2])
		}
		req.stat = "shared"
	case "priority-group":
		req.class = "priority-group"
		switch args[2] {
		case "shared", "headroom":
			req.stat = args[2]
		default:
			return req, fmt.Errorf("invalid priority group statistic: %q (valid: shared, headroom)", args[2])
		}
	default:
		return req, fmt.Errorf("invalid resource: %q (valid: queue, priority-group)", args[0])
	}
	return req, nil
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

type result struct {
	Cleared int    `json:"cleared"`
	Seconds int    `json:"seconds"`
	Error   string `json:"error"`
}

func post(endpoint string, vals url.Values) (int, result, error) {
	var res result
	resp, err := httpClient.PostForm(endpoint, vals)
	if err != nil {
		return 0, res, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return resp.StatusCode, res, fmt.Errorf("%s: %s", endpoint, resp.Status)
	}
	return resp.StatusCode, res, nil
}

// clearWatermarks returns an error for anything but success or
// "nothing matched", the latter is only a warning.
func clearWatermarks(addr string, req clearRequest, stdout, stderr io.Writer) error {
	status, res, err := post(strings.TrimRight(addr, "/")+"/clear", req.values())
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		fmt.Fprintf(stdout, "Cleared %d %s watermark(s).\n", res.Cleared, req.view)
		return nil
	case http.StatusNotFound:
		fmt.Fprintf(stderr, "Warning: %s\n", res.Error)
		return nil
	}
	return fmt.Errorf("clear failed: %s", res.Error)
}

func setInterval(addr string, seconds int, stdout io.Writer) error {
	status, res, err := post(strings.TrimRight(addr, "/")+"/interval", url.Values{"seconds": {strconv.Itoa(seconds)}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("interval not changed (still %d seconds): %s", res.Seconds, res.Error)
	}
	fmt.Fprintf(stdout, "Telemetry interval set to %d seconds.\n", res.Seconds)
	return nil
}

func main() {
	var (
		addr     string
		interval int
	)
	flag.StringVar(&addr, "addr", "http://127.0.0.1:8888", "wmd http address")
	flag.IntVar(&interval, "interval", 0, "set the telemetry interval, in seconds")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if interval != 0 {
		if flag.NArg() != 0 {
			flag.Usage()
			os.Exit(2)
		}
		if err := setInterval(addr, interval, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	req, err := parseClearArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	if err := clearWatermarks(addr, req, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
