// ABOUTME: Entry point for the Nu player
// ABOUTME: Parses CLI flags and runs one installation node until interrupted
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/nu-go/internal/app"
	"github.com/Resonate-Protocol/nu-go/internal/version"
)

type playerFlags struct {
	serverAddr  string
	port        int
	name        string
	index       int
	x, y        float64
	assets      []string
	sampleRate  int
	noTUI       bool
	noAudio     bool
	logFile     string
	debug       bool
	metricsAddr string
}

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	f := &playerFlags{}

	cmd := &cobra.Command{
		Use:     "nu-player",
		Short:   "Runs a Nu installation node",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hasPosition := cmd.Flags().Changed("x") || cmd.Flags().Changed("y")
			return run(f, hasPosition)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&f.serverAddr, "server", "", "Manual server address host:port (skip mDNS)")
	flags.IntVar(&f.port, "port", 8928, "Port advertised over mDNS")
	flags.StringVar(&f.name, "name", "", "Player friendly name (default: hostname-nu-player)")
	flags.IntVar(&f.index, "index", -1, "Requested player index (-1 = any free index)")
	flags.Float64Var(&f.x, "x", 0, "Player x coordinate")
	flags.Float64Var(&f.y, "y", 0, "Player y coordinate")
	flags.StringArrayVar(&f.assets, "asset", nil, "Audio asset (MP3, FLAC, WAV); repeat for ids 0, 1, ...")
	flags.IntVar(&f.sampleRate, "sample-rate", app.DefaultSampleRate, "Output sample rate")
	flags.BoolVar(&f.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")
	flags.BoolVar(&f.noAudio, "no-audio", false, "Discard audio instead of opening a device")
	flags.StringVar(&f.logFile, "log-file", "nu-player.log", "Log file path")
	flags.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&f.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")

	return cmd
}

func run(f *playerFlags, hasPosition bool) error {
	useTUI := !f.noTUI

	logOut, err := os.OpenFile(f.logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logOut.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(logOut)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, logOut))
	}

	playerName := f.name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-nu-player", hostname)
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, playerName)
	if f.debug {
		log.Printf("Debug logging enabled")
	}

	p := app.New(app.Config{
		ServerAddr:  f.serverAddr,
		Port:        f.port,
		Name:        playerName,
		Index:       f.index,
		X:           f.x,
		Y:           f.y,
		HasPosition: hasPosition,
		Assets:      f.assets,
		SampleRate:  f.sampleRate,
		NoAudio:     f.noAudio,
		UseTUI:      useTUI,
		Debug:       f.debug,
		MetricsAddr: f.metricsAddr,
	})

	done := make(chan error, 1)
	go func() { done <- p.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case err = <-done:
		// TUI quit or startup failure
	}

	p.Stop()
	log.Printf("Player stopped")
	return err
}
