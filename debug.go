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
	"flag"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"fuse3.debug",
	false,
	"Write fuse3 debugging messages to stderr.")

const logFlags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile

var gLogger *log.Logger
var gLoggerOnce sync.Once

// Used until flags have been parsed, so that a library user who never calls
// flag.Parse doesn't crash us.
var gDiscardLogger = log.New(ioutil.Discard, "", 0)

func initLogger() {
	var writer io.Writer = ioutil.Discard
	if *fEnableDebug {
		writer = os.Stderr
	}

	gLogger = log.New(writer, "fuse3: ", logFlags)
}

func getLogger() *log.Logger {
	if !flag.Parsed() {
		return gDiscardLogger
	}

	gLoggerOnce.Do(initLogger)
	return gLogger
}

func defaultErrorLogger() *log.Logger {
	return log.New(os.Stderr, "fuse3: ", logFlags)
}
