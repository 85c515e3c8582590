// ocabench measures OpenCV operations on the RZ/V OpenCV Accelerator by
// running each one with its accelerator units disabled and then enabled.
//
// Usage:
//
//	ocabench [flags] <image>
package main

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/swdee/go-opencva"
	"github.com/swdee/go-opencva/bench"
)

var CLI struct {
	Image     string        `arg:"" name:"image" help:"Source image, resized to --width x --height before each operation" type:"existingfile"`
	Out       string        `help:"Directory output images are written to" default:"." type:"existingdir" env:"OCABENCH_OUT"`
	Ext       string        `help:"Output image format" default:"png" enum:"png,jpg,bmp,tiff" env:"OCABENCH_EXT"`
	Ops       []string      `help:"Operations to run by number, tag or name, eg: 1,OCA5,Sobel.  Default runs all" env:"OCABENCH_OPS"`
	Repeat    int           `help:"Timed runs per mode" default:"1" env:"OCABENCH_REPEAT"`
	Width     int           `help:"Benchmark source width, 0 keeps the image size" default:"1920"`
	Height    int           `help:"Benchmark source height, 0 keeps the image size" default:"1080"`
	Letterbox bool          `help:"Keep the aspect ratio when resizing the source"`
	NoWarmup  bool          `help:"Skip the untimed warm up run" env:"OCABENCH_NO_WARMUP"`
	NoSave    bool          `help:"Do not write output images"`
	SyncDelay time.Duration `help:"Wait after syncing each output image to storage" default:"0s" env:"OCABENCH_SYNC_DELAY"`
	Driver    string        `help:"Accelerator driver, oca requires a build with -tags opencva" default:"oca" enum:"oca,nop" env:"OCABENCH_DRIVER"`
	Platform  string        `help:"Pin to the benchmark core of platform rzv2l|rzv2h|rzv2m|rzv2ma" env:"OCABENCH_PLATFORM"`
	AllCores  bool          `help:"Pin to all cores of --platform instead of a single core"`
	LogLevel  string        `help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"OCABENCH_LOG_LEVEL"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("ocabench"),
		kong.Description("Benchmark OpenCV operations with the OpenCV Accelerator disabled and enabled."),
		kong.UsageOnError(),
	)

	level, err := zerolog.ParseLevel(CLI.LogLevel)

	if err != nil {
		level = zerolog.WarnLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	if CLI.Platform != "" {
		ct := opencva.BenchCore

		if CLI.AllCores {
			ct = opencva.AllCores
		}

		if err := opencva.SetCPUAffinityByPlatform(CLI.Platform, ct); err != nil {
			log.Fatal().Err(err).Msg("failed to set CPU affinity")
		}
	}

	driver, err := newDriver(CLI.Driver)

	if err != nil {
		log.Fatal().Err(err).Msg("accelerator driver unavailable, use --driver=nop to run on the CPU only")
	}

	registry, err := bench.DefaultRegistry().Select(splitOps(CLI.Ops)...)

	if err != nil {
		log.Fatal().Err(err).Msg("invalid operation selection")
	}

	cfg := bench.DefaultConfig()
	cfg.SourceSize = image.Pt(CLI.Width, CLI.Height)
	cfg.Letterbox = CLI.Letterbox
	cfg.Repeat = CLI.Repeat
	cfg.OutDir = CLI.Out
	cfg.Ext = CLI.Ext
	cfg.WarmUp = !CLI.NoWarmup
	cfg.Persist = !CLI.NoSave

	ctrl := opencva.NewController(opencva.LogDriver{Next: driver, Log: log})
	codec := opencva.SyncCodec{Codec: opencva.GocvCodec{}, Delay: CLI.SyncDelay}

	h := bench.NewHarness(registry, codec, ctrl, cfg)
	h.Log = log

	fmt.Println(bench.TitleStyle.Render("RZ/V OPENCV ACCELERATOR BENCHMARK"))

	for _, d := range registry {
		fmt.Println(bench.FormatHeader(d))
	}

	fmt.Println()

	h.OnResult(func(r bench.Result) {
		fmt.Println(bench.FormatResult(r))
	})

	results := h.Run(CLI.Image)

	fmt.Println(bench.FormatSummary(bench.Summarize(results)))

	if !ctrl.State().IsNeutral() {
		log.Error().Str("state", ctrl.State().String()).Msg("accelerator left in a non neutral state")
	}

	for _, r := range results {
		if r.Status != bench.StatusOK {
			os.Exit(1)
		}
	}
}

// newDriver returns the accelerator driver by name
func newDriver(name string) (opencva.Driver, error) {

	switch name {
	case "nop":
		return opencva.NopDriver{}, nil
	case "oca":
		return opencva.NewOCADriver()
	}

	return nil, fmt.Errorf("unknown driver %q", name)
}

// splitOps accepts operations given as repeated flags or comma separated
func splitOps(ops []string) []string {

	var out []string

	for _, o := range ops {
		for _, p := range strings.Split(o, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}

	return out
}
