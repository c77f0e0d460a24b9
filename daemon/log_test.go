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
	"testing"
	"time"
)

func Test_renameLogFile(t *testing.T) {
	save_timeNow, save_osRename := timeNow, osRename
	defer func() { timeNow, osRename = save_timeNow, save_osRename }()

	timeNow = func() time.Time { return time.Date(2017, 3, 4, 5, 6, 7, 0, time.UTC) }
	var from, to string
	osRename = func(a, b string) error {
		from, to = a, b
		return nil
	}

	renameLogFile("/var/log/wmd/wmd.log")
	if from != "/var/log/wmd/wmd.log" || to != "/var/log/wmd/wmd.log-20170304_050607" {
		t.Errorf("renamed %q to %q", from, to)
	}
}
