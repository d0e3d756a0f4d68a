// ABOUTME: Entry point for the Nu coordinating server
// ABOUTME: Parses CLI flags, loads the installation setup and serves players and controllers
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/nu-go/internal/server"
	"github.com/Resonate-Protocol/nu-go/internal/version"
)

type serverFlags struct {
	port      int
	name      string
	setupPath string
	origins   []string
	logFile   string
	debug     bool
	noMDNS    bool
	noTUI     bool
}

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	f := &serverFlags{}

	cmd := &cobra.Command{
		Use:          "nu-server",
		Short:        "Runs the Nu coordinating node",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return run(f)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.port, "port", 8927, "WebSocket and HTTP port")
	flags.StringVar(&f.name, "name", "", "Server friendly name (default: hostname-nu-server)")
	flags.StringVar(&f.setupPath, "setup", "", "Installation setup JSON (coordinates and initial params)")
	flags.StringSliceVar(&f.origins, "allow-origin", nil, "Allowed CORS origins for the control API (default: any)")
	flags.StringVar(&f.logFile, "log-file", "nu-server.log", "Log file path")
	flags.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&f.noMDNS, "no-mdns", false, "Disable mDNS advertisement")
	flags.BoolVar(&f.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")

	return cmd
}

func run(f *serverFlags) error {
	logOut, err := os.OpenFile(f.logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logOut.Close()

	if f.noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, logOut))
	} else {
		log.SetOutput(logOut)
	}

	serverName := f.name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-nu-server", hostname)
	}

	var setup *server.Setup
	if f.setupPath != "" {
		setup, err = server.LoadSetup(f.setupPath)
		if err != nil {
			return err
		}
		log.Printf("Loaded setup %s: %d receivers", f.setupPath, len(setup.Coordinates))
	}

	log.Printf("Starting %s %s: %s on port %d", version.Product, version.Version, serverName, f.port)
	if f.debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", f.logFile)

	srv, err := server.New(server.Config{
		Port:           f.port,
		Name:           serverName,
		EnableMDNS:     !f.noMDNS,
		Debug:          f.debug,
		UseTUI:         !f.noTUI,
		Setup:          setup,
		AllowedOrigins: f.origins,
	})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Printf("Server stopped")
	return nil
}
