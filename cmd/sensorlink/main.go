package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/sensor.link/internal/api"
	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/config"
	"github.com/banshee-data/sensor.link/internal/db"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/monitoring"
	"github.com/banshee-data/sensor.link/internal/relay"
	"github.com/banshee-data/sensor.link/internal/sampler"
	"github.com/banshee-data/sensor.link/internal/sensor"
	"github.com/banshee-data/sensor.link/internal/source"
	"github.com/banshee-data/sensor.link/internal/timeutil"
	"github.com/banshee-data/sensor.link/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON link config (defaults apply when empty)")
	role        = flag.String("role", "", "Node role: emitter, receiver or both (default emitter, or both with --dev)")
	devMode     = flag.Bool("dev", false, "Run both ends over an in-process loopback link")
	listen      = flag.String("listen", ":8080", "Listen address for the HTTP API (empty disables it)")
	dbPath      = flag.String("db", "", "SQLite database holding stored link configs (optional)")
	replayPath  = flag.String("replay", "", "Replay samples from a text fixture instead of the simulator")
	verbose     = flag.Bool("verbose", false, "Log every emitted and received frame")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg := config.DefaultLinkConfig()
	if *configPath != "" {
		loaded, err := config.LoadLinkConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	nodeRole, err := parseRole(*role, *devMode)
	if err != nil {
		log.Fatal(err)
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if !*devMode {
			stored, err := database.GetEnabledLinkConfigs()
			if err != nil {
				log.Fatalf("failed to read link configs: %v", err)
			}
			if name, ok := applyStoredLink(cfg, stored); ok {
				log.Printf("using stored link config %q", name)
			}
		}
	}
	if *devMode {
		loopback := config.TransportLoopback
		cfg.Transport = &loopback
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeLink, peerLink, err := openLinks(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s link: %v", cfg.GetTransport(), err)
	}
	defer nodeLink.Close()
	if peerLink != nil {
		defer peerLink.Close()
	}
	log.Printf("%s node %q on %s link, peer %q", nodeRole, cfg.GetNodeID(), cfg.GetTransport(), cfg.GetPeerID())

	// Create a wait group for the HTTP server, link monitors and relay routines
	var wg sync.WaitGroup

	for _, l := range []link.Link{nodeLink, peerLink} {
		if l == nil {
			continue
		}
		wg.Add(1)
		go func(l link.Link) {
			defer wg.Done()
			if err := l.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("link monitor for %s failed: %v", l.LocalID(), err)
			}
			log.Printf("monitor routine for %s terminated", l.LocalID())
		}(l)
	}

	var emitter *relay.Emitter
	if nodeRole == roleEmitter || nodeRole == roleBoth {
		emitter = relay.NewEmitter(sampler.New(cfg.GetMinInterval()), codec.Codec{}, nodeLink, cfg.GetPeerID()).
			WithPath(cfg.GetMessagePath())
		samples := make(chan sensor.Sample, 64)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(samples)
			if err := runSource(ctx, cfg, samples); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("sample source stopped: %v", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := emitter.Run(ctx, samples); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("emitter stopped: %v", err)
			}
			log.Printf("emitter routine terminated: %+v", emitter.Stats())
		}()
	}

	var receiver *relay.Receiver
	var board *relay.Board
	if nodeRole == roleReceiver || nodeRole == roleBoth {
		inbound := nodeLink
		if nodeRole == roleBoth && peerLink != nil {
			inbound = peerLink
		}
		board = relay.NewBoard(cfg.GetWindowSize())
		receiver = relay.NewReceiver(codec.Codec{}, timeutil.NewRealClock(), board.Record).
			WithPath(cfg.GetMessagePath())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := receiver.Run(ctx, inbound); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("receiver stopped: %v", err)
			}
			log.Printf("receiver routine terminated: %+v", receiver.Stats())
		}()
	}

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			srv := api.NewServer(nodeLink, database)
			if emitter != nil {
				srv.WithEmitter(emitter)
			}
			if receiver != nil {
				srv.WithReceiver(receiver, board)
			}
			mux := srv.ServeMux()
			nodeLink.AttachAdminRoutes(mux)
			if database != nil {
				database.AttachAdminRoutes(mux)
			}

			server := &http.Server{
				Addr:    *listen,
				Handler: api.LoggingMiddleware(mux),
			}

			// Start server in a goroutine so it doesn't block
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()

			// Wait for context cancellation to shut down server
			<-ctx.Done()
			log.Println("shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				// Force close the server if graceful shutdown fails
				if err := server.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}

			log.Printf("HTTP server routine stopped")
		}()
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// runSource feeds samples from the replay fixture when one is given, else
// from the simulator, until ctx is done.
func runSource(ctx context.Context, cfg *config.LinkConfig, out chan<- sensor.Sample) error {
	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			return fmt.Errorf("failed to open replay file: %w", err)
		}
		defer f.Close()
		n, err := source.ScanLines(ctx, f, out)
		log.Printf("replayed %d samples from %s", n, *replayPath)
		return err
	}

	types, err := cfg.GetSensors()
	if err != nil {
		return err
	}
	return source.NewSimulator(timeutil.NewRealClock(), cfg.GetSampleInterval(), types...).Run(ctx, out)
}
