// ABOUTME: Entry point for the offline path renderer
// ABOUTME: Computes a path's IR for every receiver of a setup and writes one WAV per receiver
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/nu-go/internal/version"
)

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	job := defaultJob()

	cmd := &cobra.Command{
		Use:          "nu-render",
		Short:        "Renders a path to one WAV file per receiver",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			files, err := job.run()
			for _, f := range files {
				log.Printf("Wrote %s", f)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&job.setupPath, "setup", "", "Installation setup JSON with receiver coordinates")
	flags.StringVar(&job.assetPath, "asset", "", "Audio asset to render (MP3, FLAC, WAV)")
	flags.Float64SliceVar(&job.path, "path", nil, "Path as flat t,x,y triples")
	flags.StringVar(&job.outDir, "out", ".", "Output directory")
	flags.IntVar(&job.sampleRate, "sample-rate", 0, "Resample the asset to this rate (0 keeps it)")
	flags.Float64Var(&job.prop.Speed, "speed", job.prop.Speed, "Propagation speed in units per second")
	flags.Float64Var(&job.prop.Gain, "gain", job.prop.Gain, "Gain per unit of distance")
	flags.Float64Var(&job.prop.MinAudibleGain, "min-gain", job.prop.MinAudibleGain, "Taps below this gain are dropped")
	flags.Float64Var(&job.render.MasterGain, "master-gain", job.render.MasterGain, "Output gain")
	flags.Float64Var(&job.render.Perc, "perc", job.render.Perc, "Fraction of the asset each tap plays")
	flags.BoolVar(&job.render.Loop, "loop", job.render.Loop, "Wrap read starts past the asset end")
	flags.Float64Var(&job.render.Slope, "acc-slope", job.render.Slope, "Read speed-up per second of delay")
	flags.Float64Var(&job.render.StartFraction, "time-bound", job.render.StartFraction, "Read start as a fraction of the tap delay")
	cmd.MarkFlagRequired("setup")
	cmd.MarkFlagRequired("asset")
	cmd.MarkFlagRequired("path")

	return cmd
}
