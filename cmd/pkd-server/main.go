// Command pkd-server runs the directory ingestion, validation and
// query service in one process, grounded on the teacher's
// cmd/boulder-wfe2/main.go: a flag-selected JSON config file, a
// debug/metrics listener started in a goroutine, the collaborators
// wired up in dependency order, an http.Server handed the api
// package's Handler, and a signal-triggered graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icao-pkd/pkd/internal/api"
	"github.com/icao-pkd/pkd/internal/config"
	"github.com/icao-pkd/pkd/internal/db"
	"github.com/icao-pkd/pkd/internal/directory"
	"github.com/icao-pkd/pkd/internal/log"
	"github.com/icao-pkd/pkd/internal/metrics"
	"github.com/icao-pkd/pkd/internal/pa"
	"github.com/icao-pkd/pkd/internal/parser"
	"github.com/icao-pkd/pkd/internal/pool"
	"github.com/icao-pkd/pkd/internal/reconciler"
	"github.com/icao-pkd/pkd/internal/repository"
	"github.com/icao-pkd/pkd/internal/scheduler"
	"github.com/icao-pkd/pkd/internal/trustchain"
)

func failOnError(logger log.Logger, err error, msg string) {
	if err != nil {
		logger.AuditErr(fmt.Errorf("%s: %w", msg, err))
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

func buildDSN(c *config.Config) string {
	if c.DBDialect == config.DialectB {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// pollPoolStats runs forever, exporting pool occupancy gauges every
// ten seconds, the same periodic-export shape as the teacher's
// cmd.ProfileCmd but scoped to what this module actually has to
// report (no bespoke GC/runtime stats infrastructure here).
func pollPoolStats(scope *metrics.Scope, dbPool, dirPool *pool.Pool) {
	for range time.Tick(10 * time.Second) {
		dbStats := dbPool.Stats()
		scope.Gauge("pool_free", float64(dbStats.Free), "db")
		scope.Gauge("pool_outstanding", float64(dbStats.Outstanding), "db")
		dirStats := dirPool.Stats()
		scope.Gauge("pool_free", float64(dirStats.Free), "directory")
		scope.Gauge("pool_outstanding", float64(dirStats.Outstanding), "directory")
	}
}

func debugServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Get().Warning("debug server exited: " + err.Error())
	}
}

func catchSignals(logger log.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	sig := <-sigChan
	logger.Info(fmt.Sprintf("caught %s, shutting down", sig))
	callback()
}

func main() {
	configFile := flag.String("config", "", "file path to the JSON configuration file")
	flag.Parse()
	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New("pkd-server")
	log.Set(logger)

	c, err := config.Load(*configFile)
	failOnError(logger, err, "reading configuration file")

	scope := metrics.NewScope(prometheus.DefaultRegisterer, "pkd")
	go debugServer(c.DebugAddr)

	dbMap, err := db.NewDbMap(db.DialectName(c.DBDialect), buildDSN(c), logger)
	failOnError(logger, err, "connecting to the relational store")
	dialect := db.DialectName(c.DBDialect)

	dbPool := pool.New(pool.NewDBFactory(dbMap.Db), c.PoolDBMin, c.PoolDBMax,
		c.PoolAcquireTimeoutSeconds.Duration, logger)

	dirBind := pool.BindConfig{
		Addr:         fmt.Sprintf("%s:%d", c.DirectoryHost, c.DirectoryPort),
		BindDN:       c.DirectoryBindDN,
		BindPassword: c.DirectoryBindPassword.String(),
		NetTimeout:   c.PoolAcquireTimeoutSeconds.Duration,
	}
	dirPool := pool.New(pool.NewDirectoryFactory(dirBind), c.PoolDirectoryMin, c.PoolDirectoryMax,
		c.PoolAcquireTimeoutSeconds.Duration, logger)
	dirAdapter := directory.New(c.DirectoryBaseDN, dirPool, nil, logger)

	go pollPoolStats(scope, dbPool, dirPool)

	certs := repository.NewCertificateRepository(dbMap, dialect)
	crls := repository.NewCRLRepository(dbMap, dialect)
	masterLists := repository.NewMasterListRepository(dbMap, dialect)
	uploads := repository.NewUploadRepository(dbMap, dialect)
	validations := repository.NewValidationRepository(dbMap, dialect)
	pas := repository.NewPARepository(dbMap, dialect)
	runs := repository.NewReconciliationRepository(dbMap, dialect)
	notifications := repository.NewCatalogNotificationRepository(dbMap, dialect)

	validator := trustchain.New(dirAdapter, logger)
	broker := parser.NewBroker()
	pipeline := parser.New(uploads, certs, crls, masterLists, validations, validator, broker, logger)
	verifier := pa.New(certs, pas, validator, logger)
	recon := reconciler.New(certs, crls, runs, dirAdapter, logger)

	sched := scheduler.New(recon, validations, notifications, nil, logger,
		c.SchedulerReconcileHour, c.SchedulerRevalidateOnSync)
	if c.SchedulerEnabled {
		failOnError(logger, sched.Start(), "starting scheduler")
	}

	svc := api.New(pipeline, broker, certs, crls, masterLists, uploads, validations, verifier, pas, recon, runs, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.ServerPort),
		Handler: svc.Handler(),
	}

	logger.Info(fmt.Sprintf("listening on %s", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			failOnError(logger, err, "running HTTP server")
		}
	}()

	done := make(chan struct{})
	go catchSignals(logger, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeoutSeconds.Duration)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-sched.Stop().Done()
		_ = dbPool.Close()
		_ = dirPool.Close()
		close(done)
	})
	<-done
}
