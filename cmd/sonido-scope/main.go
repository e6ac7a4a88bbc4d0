// Command sonido-scope decodes an audio file and shows a live semitone
// spectrum in the terminal while "playing" it at real-time speed.
//
// Usage:
//
//	sonido-scope [flags] <input>
//
// Examples:
//
//	sonido-scope song.flac
//	sonido-scope -strategy octave_cascade -buffer 8192 song.mp3
//	sonido-scope -env scope.env https://example.com/stream.mp3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-scope/algorithms/chroma"
	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/analysis"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/display"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/transcode"
)

// bar glyphs from empty to full
var glyphs = []rune(" ▁▂▃▄▅▆▇█")

// rangeDB is the span between a silent and a full bar
const rangeDB = 30.0

type options struct {
	input        string
	envFile      string
	strategy     string
	sampleRate   int
	bufferFrames int
	blockFrames  int
	ffmpeg       string
	ffprobe      string
	normalize    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.envFile, "env", "", "read SONIDO_* settings from this .env file")
	flag.StringVar(&opts.strategy, "strategy", "", "analysis strategy: phase_vocoder|octave_cascade")
	flag.IntVar(&opts.sampleRate, "rate", 44100, "output sample rate")
	flag.IntVar(&opts.bufferFrames, "buffer", 4096, "simulated output buffer in stereo frames")
	flag.IntVar(&opts.blockFrames, "block", 512, "stereo frames handed to the analyzer per callback")
	flag.StringVar(&opts.ffmpeg, "ffmpeg", "ffmpeg", "path to ffmpeg")
	flag.StringVar(&opts.ffprobe, "ffprobe", "ffprobe", "path to ffprobe")
	flag.BoolVar(&opts.normalize, "normalize", false, "loudness-normalize the input")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sonido-scope [flags] <input>\n\n")
		fmt.Fprintf(os.Stderr, "Shows a live semitone spectrum of an audio file or stream.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.input = flag.Arg(0)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "\nsonido-scope: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.blockFrames <= 0 || opts.bufferFrames < 0 {
		return errors.New("block must be positive and buffer non-negative")
	}
	if opts.strategy != "" {
		// flags win over .env files
		if err := os.Setenv("SONIDO_STRATEGY", opts.strategy); err != nil {
			return err
		}
	}

	var envFiles []string
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}
	cfg, err := config.LoadEnv(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoderCfg := transcode.DefaultDecoderConfig()
	decoderCfg.TargetSampleRate = opts.sampleRate
	decoderCfg.FFmpegPath = opts.ffmpeg
	decoderCfg.FFprobePath = opts.ffprobe
	decoderCfg.EnableNormalization = opts.normalize
	decoder := transcode.NewDecoder(decoderCfg)

	if md, err := decoder.Probe(ctx, opts.input); err != nil {
		logger.Warn("Probe failed, decoding anyway", logging.Fields{"error": err.Error()})
	} else {
		logger.Info("Input probed", logging.Fields{
			"codec":       md.Codec,
			"sample_rate": md.SampleRate,
			"channels":    md.Channels,
			"duration":    md.Duration,
		})
	}

	session, err := analysis.NewSession(cfg)
	if err != nil {
		return err
	}
	if err := session.SetOutputFormat(opts.sampleRate, opts.bufferFrames); err != nil {
		return err
	}
	if _, err := session.Start(); err != nil {
		return err
	}

	scale := session.Scale()
	disp, err := display.New(scale.Len(), cfg, session.Merger())
	if err != nil {
		return err
	}

	stream, err := decoder.Open(ctx, opts.input)
	if err != nil {
		return err
	}
	defer stream.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer session.Stop()
		return play(gctx, stream, session, opts)
	})

	g.Go(func() error {
		err := disp.Run(gctx, session.Queue, func(levels []float64) {
			fmt.Print("\r" + renderLine(scale, levels))
		})
		fmt.Println()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// play feeds the decoded stream to the session at real-time speed, keeping
// bufferFrames of audio queued ahead of the simulated playback position.
func play(ctx context.Context, stream *transcode.Stream, session *analysis.Session, opts options) error {
	block := make([]int16, 2*opts.blockFrames)
	blockDuration := time.Duration(opts.blockFrames) * time.Second / time.Duration(opts.sampleRate)
	prefill := opts.bufferFrames / opts.blockFrames

	ticker := time.NewTicker(blockDuration)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if i >= prefill {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		n, err := stream.Read(block)
		if n > 0 {
			if feedErr := session.Feed(block, 0, n); feedErr != nil {
				return feedErr
			}
		}
		if errors.Is(err, io.EOF) {
			logging.Info("End of input")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// renderLine draws one glyph per semitone. The strongest note is named at the
// end of the line; peaks that clearly stand out are drawn bold.
func renderLine(scale *chroma.NoteScale, levels []float64) string {
	notes := scale.NoteLevels(nil, levels)

	var sb strings.Builder
	for s, level := range notes {
		height := common.Clamp(display.Decibels(level, 0)/rangeDB, 0, 1)
		glyph := glyphs[int(height*float64(len(glyphs)-1))]

		centre := s * scale.SubBins()
		if display.Prominence(levels, centre) > 0.5 {
			sb.WriteString("\x1b[1m" + string(glyph) + "\x1b[0m")
		} else {
			sb.WriteRune(glyph)
		}
	}

	if peak := common.MaxIndex(levels); peak >= 0 && levels[peak] > common.Epsilon {
		fmt.Fprintf(&sb, " %-4s", scale.NoteName(peak))
	} else {
		sb.WriteString("     ")
	}
	return sb.String()
}
