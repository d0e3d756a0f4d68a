// ABOUTME: Offline render job
// ABOUTME: Runs the propagation model and tap renderer without any network or device
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Resonate-Protocol/nu-go/internal/server"
	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
	"github.com/Resonate-Protocol/nu-go/pkg/render"
)

type job struct {
	setupPath  string
	assetPath  string
	path       []float64
	outDir     string
	sampleRate int
	prop       propagation.Params
	render     render.Params
}

func defaultJob() *job {
	return &job{
		outDir: ".",
		prop:   propagation.DefaultParams(),
		render: render.DefaultParams(),
	}
}

// run renders every receiver and returns the files written
func (j *job) run() ([]string, error) {
	setup, err := server.LoadSetup(j.setupPath)
	if err != nil {
		return nil, err
	}
	receivers := setup.Receivers()
	if len(receivers) == 0 {
		return nil, fmt.Errorf("setup %s has no coordinates", j.setupPath)
	}

	buf, err := decode.File(j.assetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", j.assetPath, err)
	}
	if j.sampleRate > 0 {
		buf = resample.Buffer(buf, j.sampleRate)
	}

	return j.renderAll(buf, receivers)
}

func (j *job) renderAll(buf audio.Buffer, receivers []propagation.Receiver) ([]string, error) {
	path, err := propagation.ParsePath(j.path)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}

	if err := os.MkdirAll(j.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", j.outDir, err)
	}

	irs := propagation.Compute(path, receivers, j.prop)

	var files []string
	for _, rx := range receivers {
		res := render.Render(buf, irs[rx.ID], j.render)

		name := filepath.Join(j.outDir, fmt.Sprintf("receiver-%02d.wav", rx.ID))
		if err := writeWAV(name, res); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}

func writeWAV(name string, res render.Result) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	if err := encode.WAV(f, res.Buffer, res.Gain); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
