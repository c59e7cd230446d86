/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/provideplatform/ident/token"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"

	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/payment"
	"github.com/provideplatform/datapool/pool"
	"github.com/provideplatform/datapool/registry"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond
const shutdownTimeout = 10 * time.Second

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *http.Server
	wg  sync.WaitGroup
)

func init() {
	util.RequireJWTVerifiers()
	util.RequireGin()
}

func main() {
	common.Log.Debugf("starting datapool API...")
	installSignalHandlers()

	pools, err := requirePools()
	if err != nil {
		common.Log.Panicf("failed to initialize datapool API; %s", err.Error())
	}

	pool.RequireOracleSubscriptions(&wg, pools)
	runAPI(pools)

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// tick... no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			srv.Shutdown(ctx)
			cancel()
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting datapool API")
	cancelF()
}

// requirePools initializes the pool registry with the configured proof registry and
// notification dispatcher
func requirePools() (*registry.Registry, error) {
	proofs, err := registry.RequireProofRegistry()
	if err != nil {
		return nil, err
	}

	var dispatcher pool.Dispatcher
	if common.DispatchNATSNotifications {
		dispatcher = &pool.NATSDispatcher{}
	}

	return registry.NewRegistry(proofs, payment.NewLedger(), dispatcher), nil
}

func installSignalHandlers() {
	common.Log.Debug("installing signal handlers for datapool API")
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down datapool API")
		cancelF()
	}
}

func shuttingDown() bool {
	return (atomic.LoadUint32(&closing) > 0)
}

func runAPI(pools pool.Directory) {
	r := gin.Default()
	r.Use(gin.Recovery())
	r.Use(provide.CORSMiddleware())
	r.GET("/status", statusHandler)
	r.Use(token.AuthMiddleware())

	pool.InstallAPI(r, pools)

	srv = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%s", common.ListenPort),
		Handler: r,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			common.Log.Warningf("datapool API listener exited; %s", err.Error())
			shutdown()
		}
	}()

	common.Log.Debugf("listening on %s", srv.Addr)
}

func statusHandler(c *gin.Context) {
	provide.Render(nil, 204, c)
}
