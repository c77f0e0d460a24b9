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

// Package misc is misc stuff.
package misc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	sanitizeRegexSpace       = regexp.MustCompile(`\s+`)
	sanitizeRegexSlash       = regexp.MustCompile("/")
	sanitizeRegexNonAlphaNum = regexp.MustCompile(`[^a-zA-Z_\-0-9\.:]`)
)

// SanitizeId makes a resource id received over the wire safe to log
// and look up: whitespace becomes "_", "/" becomes "-" and anything
// other than letters, digits, "_", "-", "." and ":" is dropped.
func SanitizeId(id string) string {
	id = sanitizeRegexSpace.ReplaceAllString(strings.TrimSpace(id), "_")
	id = sanitizeRegexSlash.ReplaceAllString(id, "-")
	return sanitizeRegexNonAlphaNum.ReplaceAllString(id, "")
}

// BetterParseDuration is time.ParseDuration which also understands
// "min", "hour", "d" (day), "w" (week), "mon" (30 days) and "y" (365
// days). A bare number is taken as seconds.
func BetterParseDuration(s string) (time.Duration, error) {

	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}

	if strings.HasSuffix(s, "min") {
		s = s[0 : len(s)-2] // min -> m
	} else if strings.HasSuffix(s, "hour") {
		s = s[0 : len(s)-3] // hour -> h
	} else if strings.HasSuffix(s, "mon") {
		fd, err := strconv.ParseFloat(s[0:len(s)-3], 64)
		if err != nil {
			return 0, err
		}
		s = fmt.Sprintf("%vh", fd*30*24)
	}
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	if len(s) > 1 {
		if n, perr := strconv.ParseInt(s[0:len(s)-1], 10, 64); perr == nil {
			switch s[len(s)-1] {
			case 'd':
				return time.Duration(n*24) * time.Hour, nil
			case 'w':
				return time.Duration(n*168) * time.Hour, nil
			case 'y':
				return time.Duration(n*8760) * time.Hour, nil
			}
		}
	}
	return d, err
}
