// Package main provides the Yggdrasil CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/orneryd/yggdrasil/internal/config"
	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/layout"
	"github.com/orneryd/yggdrasil/internal/physics/gpuexec"
	"github.com/orneryd/yggdrasil/internal/realtime"
	"github.com/orneryd/yggdrasil/internal/telemetry"
	"github.com/orneryd/yggdrasil/internal/upstream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "yggdrasil",
		Short: "Yggdrasil - real-time 3D force-directed graph visualization server",
		Long: `Yggdrasil renders a knowledge graph's force-directed layout in real time,
streaming packed binary position updates over a websocket to every
connected viewer while a single physics tick loop advances the
simulation on the server.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("yggdrasil v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the visualization server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Config file path")
	serveCmd.Flags().String("addr", "", "Bind address host:port, overrides config")
	rootCmd.AddCommand(serveCmd)

	buildGraphCmd := &cobra.Command{
		Use:   "build-graph",
		Short: "Build a graph from a metadata file and print or save its nodes (edges are not written)",
		RunE:  runBuildGraph,
	}
	buildGraphCmd.Flags().String("metadata", "", "Path to the metadata JSON file")
	buildGraphCmd.Flags().String("out", "", "Output path; stdout if omitted")
	_ = buildGraphCmd.MarkFlagRequired("metadata")
	rootCmd.AddCommand(buildGraphCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		settings.Server.BindAddress, settings.Server.Port = splitAddr(addr, settings.Server.BindAddress, settings.Server.Port)
	}

	logger := telemetry.New("yggdrasil")
	logger.Printf("starting yggdrasil v%s", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	data, err := graph.WaitAndBuild(ctx, settings.MetadataPath, graph.DecodeMetadataStore, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("yggdrasil: loading initial graph: %w", err)
	}
	logger.Printf("built graph: %d nodes, %d edges", len(data.Nodes), len(data.Edges))

	hub := realtime.NewHub(logger)
	layoutSvc := layout.New(data, settings.Physics, logger, hub.BroadcastBinary)
	layoutSvc.EnableGPU(ctx, gpuexec.DefaultConfig())

	var chat upstream.ChatClient
	if settings.Upstream.ChatURL != "" {
		chat = upstream.NewHTTPChatClient(settings.Upstream.ChatURL, settings.Upstream.ChatAPIKey, "")
	}
	var speech upstream.SpeechClient
	if settings.Upstream.SpeechURL != "" {
		speech = upstream.NewHTTPSpeechClient(settings.Upstream.SpeechURL, settings.Upstream.SpeechAPIKey, "")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		EnableCompression: settings.WebSocket.CompressionEnabled,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("websocket upgrade failed: %v", err)
			return
		}
		session := realtime.NewSession(conn, hub, layoutSvc, chat, speech, logger)
		go session.Run(ctx)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, hub.Count())
	})

	bindAddr := fmt.Sprintf("%s:%d", settings.Server.BindAddress, settings.Server.Port)
	server := &http.Server{Addr: bindAddr, Handler: mux}

	go layoutSvc.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", bindAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("yggdrasil: server: %w", err)
	}
	return nil
}

func runBuildGraph(cmd *cobra.Command, args []string) error {
	metadataPath, _ := cmd.Flags().GetString("metadata")
	outPath, _ := cmd.Flags().GetString("out")

	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("yggdrasil: reading metadata file: %w", err)
	}
	store, err := graph.DecodeMetadataStore(raw)
	if err != nil {
		return err
	}

	data, err := graph.Build(store, buildGraphSeed)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(data.Nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("yggdrasil: encoding built graph: %w", err)
	}

	if outPath == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(outPath, out, 0o644)
}

// buildGraphSeed is fixed so repeated build-graph invocations against the
// same metadata are byte-for-byte reproducible.
const buildGraphSeed int64 = 1

const shutdownGrace = 5 * time.Second

// splitAddr parses a host:port override, falling back to the existing
// values for whichever half is absent.
func splitAddr(addr, fallbackHost string, fallbackPort int) (string, int) {
	host, port := fallbackHost, fallbackPort
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			if h := addr[:i]; h != "" {
				host = h
			}
			if p := addr[i+1:]; p != "" {
				fmt.Sscanf(p, "%d", &port)
			}
			return host, port
		}
	}
	return host, port
}
