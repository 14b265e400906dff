// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Gatehouse is an admission-controlled credential gateway. It sits in
// front of an upstream HTTP service, verifies bearer credentials,
// applies per-route admission policies (rate limiting and blackout
// schedules), journals every decision, and forwards admitted requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bureau-foundation/gatehouse/admission"
	"github.com/bureau-foundation/gatehouse/credential"
	"github.com/bureau-foundation/gatehouse/gateway"
	"github.com/bureau-foundation/gatehouse/identity"
	"github.com/bureau-foundation/gatehouse/journal"
	"github.com/bureau-foundation/gatehouse/lib/clock"
	"github.com/bureau-foundation/gatehouse/lib/process"
	"github.com/bureau-foundation/gatehouse/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var routesPath string
	var listenAddress string
	var showVersion bool

	flag.StringVar(&configPath, "config", "gatehouse.yaml", "path to the YAML config file")
	flag.StringVar(&routesPath, "routes", "routes.jsonc", "path to the JSONC route table")
	flag.StringVar(&listenAddress, "listen", "", "listen address override (takes precedence over the config file)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("gatehouse")
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config, err := gateway.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenAddress != "" {
		config.ListenAddress = listenAddress
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	routes, err := gateway.LoadRoutes(routesPath)
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}

	logger.Info("starting gatehouse",
		"version", version.Info(),
		"listen", config.ListenAddress,
		"upstream", config.Upstream,
		"routes", routes.Len(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accessSecret, refreshSecret, err := credential.LoadSecrets(config.Secrets.Access, config.Secrets.Refresh)
	if err != nil {
		return err
	}
	defer accessSecret.Close()
	defer refreshSecret.Close()

	signer, err := credential.NewSigner(credential.SignerConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     config.Credentials.AccessTTL.Std(),
		RefreshTTL:    config.Credentials.RefreshTTL.Std(),
	})
	if err != nil {
		return err
	}
	defer signer.Close()

	assertionSecret, err := credential.LoadSecret(config.Secrets.Assertion)
	if err != nil {
		return err
	}
	verifier, err := identity.NewHMACVerifier(assertionSecret, config.Identity.AssertionMaxAge.Std())
	assertionSecret.Close()
	if err != nil {
		return err
	}
	defer verifier.Close()

	location, err := config.Location()
	if err != nil {
		return err
	}
	schedule, err := admission.ParseSchedule(config.Blackout.Weekdays, config.Blackout.Hours, location)
	if err != nil {
		return fmt.Errorf("blackout schedule: %w", err)
	}

	controller := admission.NewController(admission.ControllerConfig{
		Rate: admission.RateConfig{
			Retention:       config.Rate.Retention.Std(),
			Cooldown:        config.Rate.Cooldown.Std(),
			BurstHits:       config.Rate.BurstHits,
			BurstIdentities: config.Rate.BurstIdentities,
		},
		Schedule: schedule,
		Clock:    clock.Real(),
		Logger:   logger,
	})

	var store *journal.Store
	if config.Journal.Path != "" {
		store, err = journal.Open(journal.StoreConfig{
			Path:      config.Journal.Path,
			Retention: config.Journal.Retention.Std(),
			Clock:     clock.Real(),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("decision journal open", "path", config.Journal.Path)
	}

	forwarder, err := gateway.NewForwarder(gateway.ForwarderConfig{
		Upstream: config.Upstream,
		Shield:   config.Shield,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	g, err := gateway.New(gateway.GatewayConfig{
		Routes:     routes,
		Controller: controller,
		Signer:     signer,
		Verifier:   verifier,
		Forwarder:  forwarder,
		Journal:    store,
		Clock:      clock.Real(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	server := gateway.NewServer(gateway.ServerConfig{
		Address:         config.ListenAddress,
		Handler:         g.Handler(),
		ShutdownTimeout: config.ShutdownTimeout.Std(),
		Logger:          logger,
	})

	// Background maintenance: the admission sweeper drops expired
	// rate records, and the journal retention loop prunes old rows.
	// Both exit when the signal context is cancelled.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.RunSweeper(ctx)
	}()
	if store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RunRetention(ctx)
		}()
	}

	err = server.Serve(ctx)
	wg.Wait()
	return err
}
