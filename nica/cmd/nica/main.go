// Copyright 2026 The NICA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/config"
	"github.com/nicaproject/nica/nica/mgmtapi"
	"github.com/nicaproject/nica/nica/underlay"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/processmetrics"
	"github.com/nicaproject/nica/pkg/private/serrors"
	"github.com/nicaproject/nica/private/app/launcher"
	"github.com/nicaproject/nica/private/env"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "NICA Engine",
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	engine, err := nica.NewFromConfig(&globalCfg, log.Root())
	if err != nil {
		return serrors.Wrap("creating engine", err)
	}
	nica.NewCollector(engine)
	if err := processmetrics.Init(); err != nil {
		log.Info("Process metrics unavailable", "err", err)
	}
	for _, ik := range engine.Ikernels() {
		log.Info("Ikernel installed", "index", ik.Index, "kind", ik.Kind, "uuid", ik.UUID)
	}

	links, err := underlay.Open(globalCfg.Underlay)
	if err != nil {
		return err
	}

	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		runConfig := nica.RunConfig{
			TickInterval:  globalCfg.Engine.TickInterval.Duration,
			TicksPerBatch: globalCfg.Engine.TicksPerBatch,
		}
		if err := engine.Run(errCtx, runConfig); err != nil {
			return serrors.Wrap("running engine", err)
		}
		return nil
	})
	if len(links) > 0 {
		u := &underlay.Underlay{
			Engine:  engine,
			Links:   links,
			Metrics: underlay.NewMetrics(),
		}
		g.Go(func() error {
			defer log.HandlePanic()
			return u.Run(errCtx)
		})
	}
	// Initialize and start the management API.
	if globalCfg.API.Addr != "" {
		server := mgmtapi.Server{
			ID:     globalCfg.General.ID,
			Engine: engine,
		}
		log.Info("Exposing API", "addr", globalCfg.API.Addr)
		mgmtServer := &http.Server{
			Addr:    globalCfg.API.Addr,
			Handler: server.Handler(),
		}
		g.Go(func() error {
			defer log.HandlePanic()
			if err := env.Serve(errCtx, mgmtServer); err != nil {
				return serrors.Wrap("serving management API", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})
	return g.Wait()
}
