// Copyright 2015 Google Inc. All Rights Reserved.
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

package fuse3

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// The on-disk form of the options in MountConfig that make sense in a file.
// Durations use Go syntax, e.g. "1s" or "250ms".
type mountConfigFile struct {
	FSName              string `yaml:"fs_name"`
	Subtype             string `yaml:"subtype"`
	ReadOnly            bool   `yaml:"read_only"`
	AllowOther          bool   `yaml:"allow_other"`
	OpenCache           string `yaml:"open_cache"`
	EntryTimeout        string `yaml:"entry_timeout"`
	AttrTimeout         string `yaml:"attr_timeout"`
	NegativeTimeout     string `yaml:"negative_timeout"`
	UnmountRetryTimeout string `yaml:"unmount_retry_timeout"`
	LockOSThread        bool   `yaml:"lock_os_thread"`
}

// Parse a YAML document into a MountConfig. Unknown keys are an error. An
// empty document yields the zero config.
func ParseMountConfig(data []byte) (cfg *MountConfig, err error) {
	var f mountConfigFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("Decode: %v", err)
		return
	}

	err = nil
	cfg = &MountConfig{
		FSName:       f.FSName,
		Subtype:      f.Subtype,
		ReadOnly:     f.ReadOnly,
		AllowOther:   f.AllowOther,
		LockOSThread: f.LockOSThread,
	}

	if cfg.OpenCache, err = parseOpenCachePolicy(f.OpenCache); err != nil {
		return
	}

	durations := []struct {
		key string
		s   string
		dst *time.Duration
	}{
		{"entry_timeout", f.EntryTimeout, &cfg.EntryTimeout},
		{"attr_timeout", f.AttrTimeout, &cfg.AttrTimeout},
		{"negative_timeout", f.NegativeTimeout, &cfg.NegativeTimeout},
		{"unmount_retry_timeout", f.UnmountRetryTimeout, &cfg.UnmountRetryTimeout},
	}

	for _, d := range durations {
		if d.s == "" {
			continue
		}

		if *d.dst, err = time.ParseDuration(d.s); err != nil {
			err = fmt.Errorf("%s: %v", d.key, err)
			return
		}

		if *d.dst < 0 {
			err = fmt.Errorf("%s: negative duration %v", d.key, *d.dst)
			return
		}
	}

	return
}

// Read and parse the YAML file at the given path.
func LoadMountConfig(path string) (cfg *MountConfig, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("ReadFile: %v", err)
		return
	}

	cfg, err = ParseMountConfig(data)
	if err != nil {
		err = fmt.Errorf("%s: %v", path, err)
		return
	}

	return
}
