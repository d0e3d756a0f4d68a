package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/encode"
)

func writeFixtures(t *testing.T, setup string) *job {
	t.Helper()
	dir := t.TempDir()

	setupPath := filepath.Join(dir, "setup.json")
	require.NoError(t, os.WriteFile(setupPath, []byte(setup), 0o644))

	buf := audio.NewBuffer(1000, 1000)
	for i := range buf.Samples {
		buf.Samples[i] = 0.5
	}
	assetPath := filepath.Join(dir, "click.wav")
	f, err := os.Create(assetPath)
	require.NoError(t, err)
	require.NoError(t, encode.WAV(f, buf, 1))
	require.NoError(t, f.Close())

	j := defaultJob()
	j.setupPath = setupPath
	j.assetPath = assetPath
	j.outDir = filepath.Join(dir, "out")
	j.path = []float64{0, 0, 0}
	return j
}

func TestRenderWritesOneFilePerReceiver(t *testing.T) {
	j := writeFixtures(t, `{"coordinates": [[0, 0], [3, 4]]}`)

	files, err := j.run()
	require.NoError(t, err)
	require.Len(t, files, 2)

	near, err := decode.File(files[0])
	require.NoError(t, err)
	far, err := decode.File(files[1])
	require.NoError(t, err)

	// asset plus one second of tail, plus the tap delay
	require.Equal(t, 2000, near.Len())
	require.Equal(t, 7000, far.Len())
	require.Equal(t, "receiver-01.wav", filepath.Base(files[1]))
}

func TestRenderErrors(t *testing.T) {
	j := writeFixtures(t, `{"coordinates": []}`)
	_, err := j.run()
	require.ErrorContains(t, err, "no coordinates")

	j = writeFixtures(t, `{"coordinates": [[0, 0]]}`)
	j.path = []float64{0, 1}
	_, err = j.run()
	require.Error(t, err)

	j = writeFixtures(t, `{"coordinates": [[0, 0]]}`)
	j.assetPath = filepath.Join(t.TempDir(), "missing.wav")
	_, err = j.run()
	require.Error(t, err)
}

func TestCommandFlags(t *testing.T) {
	cmd := command()
	require.NoError(t, cmd.ParseFlags([]string{"--path", "0,1,2,0.5,3,4", "--speed", "2", "--loop=false"}))

	path, err := cmd.Flags().GetFloat64Slice("path")
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 2, 0.5, 3, 4}, path)

	speed, err := cmd.Flags().GetFloat64("speed")
	require.NoError(t, err)
	require.Equal(t, 2.0, speed)
}
