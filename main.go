package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"medialib/internal/agentapi"
	"medialib/internal/cache"
	"medialib/internal/logging"
	"medialib/internal/memory"
	"medialib/internal/pipeline"
	"medialib/internal/syncclient"

	"github.com/gorilla/mux"
)

// Sleep between scan cycles; shorter when the last cycle found nothing.
const (
	cycleSleep     = 300 * time.Second
	idleCycleSleep = 60 * time.Second
	rootsPollSleep = 10 * time.Second
	errorRetry     = 15 * time.Second
)

func main() {
	clearCache := flag.Bool("clear-cache", false, "Clear the local agent cache on startup")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <server-addr>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Scans configured roots and uploads results to the catalog server.\n")
		fmt.Fprintf(os.Stderr, "The server address may be a bare IP or host; port defaults to %d.\n\n", syncclient.DefaultServerPort)
		flag.PrintDefaults()
	}
	flag.Parse()

	memory.ConfigureFromEnv()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cachePath, err := resolveCachePath()
	if err != nil {
		logging.Fatal("Failed to resolve cache path: %v", err)
	}

	if *clearCache {
		if err := cache.Remove(cachePath); err != nil {
			logging.Warn("Failed to clear agent cache: %v", err)
		} else {
			logging.Info("Cleared agent cache at %s", cachePath)
		}
	}

	store, err := cache.Open(context.Background(), cachePath)
	if err != nil {
		logging.Fatal("Failed to open agent cache: %v", err)
	}
	defer store.Close()

	client, err := syncclient.New(flag.Arg(0), store)
	if err != nil {
		logging.Fatal("Invalid server address: %v", err)
	}
	logging.Info("Catalog server: %s", client.BaseURL())

	scanner := pipeline.NewScanner(store, client)

	// Control API for remote browsing and maintenance. A failed bind is
	// fatal: without it the server operator cannot pick roots.
	controlPort := controlAPIPort()
	router := mux.NewRouter()
	agentapi.New(scanner, store, client).Routes(router)
	controlSrv := &http.Server{
		Addr:         ":" + controlPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logging.Info("Control API listening on :%s", controlPort)
		if err := controlSrv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("Control API error: %v", err)
		}
	}()

	ctx := context.Background()

	// Redeliver anything a previous run left behind
	if drained, err := client.DrainOutbox(ctx, false); err != nil {
		logging.Warn("Outbox drain failed: %v", err)
	} else if drained > 0 {
		logging.Info("Drained %d record(s) from local outbox", drained)
	}

	runLoop(ctx, scanner, client)
}

// runLoop is the agent's main cycle: poll config, scan, sleep, repeat.
func runLoop(ctx context.Context, scanner *pipeline.Scanner, client *syncclient.Client) {
	for {
		cfg, err := client.FetchConfig(ctx)
		if err != nil {
			logging.Error("Failed to fetch config: %v. Retrying in %v...", err, errorRetry)
			time.Sleep(errorRetry)
			continue
		}

		if len(cfg.RemoteRoots) == 0 {
			logging.Info("No remote roots configured on server. Waiting...")
			time.Sleep(rootsPollSleep)
			continue
		}

		if !scanner.TryStart() {
			// A scan_now trigger is running; check back shortly
			time.Sleep(rootsPollSleep)
			continue
		}

		logging.Info("Starting scan of %d root(s)", len(cfg.RemoteRoots))
		uploaded, err := scanner.RunCycle(ctx, cfg)
		scanner.Finish()
		if err != nil {
			logging.Error("Scan cycle error: %v. Retrying in %v...", err, errorRetry)
			time.Sleep(errorRetry)
			continue
		}

		sleep := cycleSleep
		if uploaded == 0 {
			sleep = idleCycleSleep
		}
		logging.Info("Cycle complete, uploaded %d. Sleeping %v before next pass...", uploaded, sleep)
		time.Sleep(sleep)
	}
}

// resolveCachePath returns the agent cache location, defaulting to
// ~/.medialib/agent_cache.db.
func resolveCachePath() (string, error) {
	if p := os.Getenv("AGENT_CACHE_PATH"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".medialib", "agent_cache.db"), nil
}

func controlAPIPort() string {
	if p := os.Getenv("AGENT_CONTROL_PORT"); p != "" {
		return p
	}
	return agentapi.DefaultPort
}
