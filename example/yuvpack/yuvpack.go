// yuvpack converts an image to packed 4:2:2 YUYV and semi-planar 4:2:0 NV12
// raw files and reports how long each conversion took.
//
// Usage:
//
//	yuvpack [--workers N] [--iterations N] <image>
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/swdee/go-opencva"
	"github.com/swdee/go-opencva/preprocess"
	"gonum.org/v1/gonum/stat"
)

var CLI struct {
	Image      string `arg:"" name:"image" help:"Source image" type:"existingfile"`
	Out        string `help:"Directory the .yuyv and .nv12 files are written to" default:"." type:"existingdir"`
	Workers    int    `help:"Row band workers, 1 converts serially" default:"0"`
	Iterations int    `help:"Conversions to time per format" default:"10"`
	Std        bool   `help:"Decode with the pure Go codecs instead of OpenCV"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("yuvpack"),
		kong.Description("Convert an image to raw YUYV and NV12 buffers."),
		kong.UsageOnError(),
	)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var codec opencva.Codec = opencva.GocvCodec{}

	if CLI.Std {
		codec = opencva.StdCodec{}
	}

	src, err := codec.Decode(CLI.Image)

	if err != nil {
		log.Fatal().Err(err).Msg("error reading image")
	}

	workers := CLI.Workers

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	conv := preprocess.Converter{Workers: workers}
	base := strings.TrimSuffix(filepath.Base(CLI.Image), filepath.Ext(CLI.Image))

	var yuyv opencva.Frame

	ms := timeRuns(CLI.Iterations, func() error {
		yuyv, err = conv.PackYUYV(src)
		return err
	})

	if err != nil {
		log.Fatal().Err(err).Msg("YUYV conversion failed")
	}

	report("YUYV", ms)
	write(log, filepath.Join(CLI.Out, base+".yuyv"), yuyv.Data())

	var nv12 opencva.PlanarFrame

	ms = timeRuns(CLI.Iterations, func() error {
		nv12, err = conv.PackNV12(src)
		return err
	})

	if err != nil {
		log.Fatal().Err(err).Msg("NV12 conversion failed")
	}

	report("NV12", ms)
	write(log, filepath.Join(CLI.Out, base+".nv12"), nv12.Packed().Data())

	log.Info().Int("width", src.Width()).Int("height", src.Height()).
		Int("workers", workers).Msg("done")
}

// timeRuns calls fn n times and returns each duration in milliseconds,
// stopping at the first error
func timeRuns(n int, fn func() error) []float64 {

	ms := make([]float64, 0, n)

	for i := 0; i < max(n, 1); i++ {
		start := time.Now()

		if err := fn(); err != nil {
			return ms
		}

		ms = append(ms, float64(time.Since(start).Microseconds())/1000)
	}

	return ms
}

func report(name string, ms []float64) {

	if len(ms) == 0 {
		return
	}

	mean, std := stat.MeanStdDev(ms, nil)

	if len(ms) == 1 {
		std = 0
	}

	fmt.Printf("%-5s %8.3fms +/- %.3fms over %d runs\n", name, mean, std, len(ms))
}

func write(log zerolog.Logger, path string, data []byte) {

	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("error writing file")
	}

	log.Info().Str("path", path).Int("bytes", len(data)).Msg("saved")
}
