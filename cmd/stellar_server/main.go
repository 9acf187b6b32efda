package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stellar_server/internal/data"
	"stellar_server/internal/game"
	"stellar_server/internal/locker"
	"stellar_server/internal/routes"
	"stellar_server/pkg/arguments"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
	"stellar_server/pkg/metrics"
)

// usage :
// Displays the usage of the server. Typically requires a
// configuration file to be able to fetch the configuration
// variables to use during the execution of the server.
func usage() {
	fmt.Println("Usage:")
	fmt.Println("-config=[file] for configuration file to use (local/staging/production)")
}

// main :
// Wires the simulation, the persistence bridge and the
// request adapter together, then runs until interrupted.
// The shutdown order matters: the scheduler stops first so
// that no tick produces writes once the bridge drains.
func main() {
	help := flag.Bool("h", false, "Print usage")
	config := flag.String("config", "", "Configuration file to customize the server")
	flag.Parse()

	if *help {
		usage()
		return
	}

	metadata := arguments.Parse(*config)

	log := logger.NewStdLogger(metadata.InstanceID)
	defer log.Release()

	log.Trace(logger.Notice, "main", fmt.Sprintf("Starting instance %s (environment: %s)", metadata.InstanceID, metadata.Environment))

	// Persistence.
	dbase := db.NewPool(log)
	defer dbase.Stop()

	if err := data.ApplySchema(dbase, log); err != nil {
		log.Trace(logger.Fatal, "main", fmt.Sprintf("Unable to apply the database schema (err: %v)", err))
		os.Exit(1)
	}

	cl := locker.NewConcurrentLocker(log)
	bridge := data.NewBridge(dbase, cl, log)
	bridge.Start()
	defer bridge.Stop()

	// Simulation.
	rules := game.ParseRules()
	world := game.NewWorld(rules, log)
	world.WithPersister(bridge)

	collector := metrics.NewCollector()

	server := routes.NewServer(metadata.Port, world, bridge, dbase, collector, log)
	world.WithSink(server.Hub())

	if err := data.NewHydrator(bridge, log).Run(world); err != nil {
		log.Trace(logger.Fatal, "main", fmt.Sprintf("Unable to hydrate the world (err: %v)", err))
		os.Exit(1)
	}

	scheduler := game.NewScheduler(world, collector, log).WithSave(func() error {
		return bridge.SaveAll(world.Snapshots())
	})
	if err := scheduler.Start(); err != nil {
		log.Trace(logger.Fatal, "main", fmt.Sprintf("Unable to start the simulation loop (err: %v)", err))
		os.Exit(1)
	}

	// Serve until interrupted.
	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve()
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		log.Trace(logger.Fatal, "main", fmt.Sprintf("Server stopped unexpectedly (err: %v)", err))
	case sig := <-interrupts:
		log.Trace(logger.Notice, "main", fmt.Sprintf("Caught signal %v, shutting down", sig))
	}

	scheduler.Stop()

	if err := server.Shutdown(10 * time.Second); err != nil {
		log.Trace(logger.Warning, "main", fmt.Sprintf("Unclean server shutdown (err: %v)", err))
	}
}
