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

// A simple tool for mounting sample handlers.
//
// Usage:
//
//     mount_sample --type memfs --mount_point /mnt/memfs [--config mount.yaml]
//
// The tool stays in the foreground until the file system is unmounted, either
// from outside or by sending it SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/jacobsa/timeutil"
	"github.com/juergengeck/one.fuse3"
	"github.com/juergengeck/one.fuse3/samples/dynamicfs"
	"github.com/juergengeck/one.fuse3/samples/hellofs"
	"github.com/juergengeck/one.fuse3/samples/memfs"
	"github.com/juergengeck/one.fuse3/samples/roloopbackfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var fType = flag.String("type", "", "The name of the samples/ sub-dir: dynamicfs, hellofs, memfs or roloopbackfs.")
var fLoopbackDir = flag.String("loopback_dir", "", "For roloopbackfs, the directory to mirror.")
var fMountPoint = flag.String("mount_point", "", "Path to mount point.")
var fConfig = flag.String("config", "", "Optional YAML file of mount options.")
var fReadOnly = flag.Bool("read_only", false, "Mount in read-only mode.")
var fMetricsAddr = flag.String("metrics_addr", "", "If set, serve Prometheus metrics on this address.")

func currentIDs() (uid uint32, gid uint32, err error) {
	user, err := user.Current()
	if err != nil {
		err = fmt.Errorf("user.Current: %v", err)
		return
	}

	u, err := strconv.ParseUint(user.Uid, 10, 32)
	if err != nil {
		err = fmt.Errorf("ParseUint: %v", err)
		return
	}

	g, err := strconv.ParseUint(user.Gid, 10, 32)
	if err != nil {
		err = fmt.Errorf("ParseUint: %v", err)
		return
	}

	uid, gid = uint32(u), uint32(g)
	return
}

func makeHandler() (handler interface{}, err error) {
	switch *fType {
	default:
		err = fmt.Errorf("Unknown handler type: %q", *fType)

	case "dynamicfs":
		handler = dynamicfs.NewDynamicFS(timeutil.RealClock())

	case "hellofs":
		handler = &hellofs.HelloFS{
			Clock: timeutil.RealClock(),
		}

	case "memfs":
		var uid, gid uint32
		uid, gid, err = currentIDs()
		if err != nil {
			return
		}

		handler = memfs.NewMemFS(uid, gid, timeutil.RealClock())

	case "roloopbackfs":
		if *fLoopbackDir == "" {
			err = fmt.Errorf("You must set --loopback_dir.")
			return
		}

		handler, err = roloopbackfs.NewReadonlyLoopbackFS(
			*fLoopbackDir,
			log.New(os.Stderr, "roloopbackfs: ", log.LstdFlags))
	}

	return
}

func makeConfig() (cfg *fuse3.MountConfig, err error) {
	cfg = &fuse3.MountConfig{}
	if *fConfig != "" {
		cfg, err = fuse3.LoadMountConfig(*fConfig)
		if err != nil {
			return
		}
	}

	if *fReadOnly {
		cfg.ReadOnly = true
	}

	if cfg.Subtype == "" {
		cfg.Subtype = *fType
	}

	return
}

// Serve metrics in the background. Failures are logged, not fatal.
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Serving metrics: %v", err)
		}
	}()
}

func main() {
	flag.Parse()

	if *fMountPoint == "" {
		log.Fatalf("You must set --mount_point.")
	}

	// Create an appropriate handler.
	handler, err := makeHandler()
	if err != nil {
		log.Fatalf("makeHandler: %v", err)
	}

	cfg, err := makeConfig()
	if err != nil {
		log.Fatalf("makeConfig: %v", err)
	}

	if *fMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.Registerer = reg
		serveMetrics(*fMetricsAddr, reg)
	}

	// Mount the file system.
	session, err := fuse3.Mount(*fMountPoint, handler, cfg)
	if err != nil {
		log.Fatalf("Mount: %v", err)
	}

	// Unmount on request.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range signals {
			log.Printf("Received %v; unmounting", sig)
			if err := session.Unmount(); err != nil {
				log.Printf("Unmount: %v", err)
				continue
			}

			return
		}
	}()

	// Wait for it to be unmounted.
	if err = session.Join(context.Background()); err != nil {
		log.Fatalf("Join: %v", err)
	}
}
