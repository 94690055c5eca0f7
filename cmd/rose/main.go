// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
This command provides an executable version of rose with the built-in
engines.

For the list of command line options, run:

	rose -help

A minimal start with a route file:

	rose -routes-file routes.yaml

The route file can be downloaded from an http(s) URL, too. The mapping
is served on :9090, the metrics and the introspection of the mapping on
the support listener, :9911 by default:

	curl localhost:9911/rose-info/tree
	curl 'localhost:9911/rose-info/count?prefix=/items&end'
*/
package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/rose"
	"github.com/zalando/rose/config"
)

var (
	version string
	commit  string
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	if cfg.PrintVersion {
		fmt.Printf("rose version %s (commit: %s)\n", version, commit)
		return
	}

	log.SetLevel(cfg.ApplicationLogLevel)

	if err := rose.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
