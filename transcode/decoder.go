package transcode

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-scope/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`      // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"`     // Path to ffprobe binary
	ProbeTimeout     time.Duration `json:"probe_timeout"`
	Realtime         bool          `json:"realtime"` // let ffmpeg pace output at playback speed (-re)
	// Normalization options
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm", "compand"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    44100,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",  // Assume in PATH
		FFprobePath:         "ffprobe", // Assume in PATH
		ProbeTimeout:        15 * time.Second,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0, // Streaming standard
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder turns any input ffmpeg understands into interleaved 16-bit stereo
// PCM at a fixed rate, the format the analysis producer consumes.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// SampleRate returns the rate of the PCM Open produces
func (d *Decoder) SampleRate() int {
	return d.config.TargetSampleRate
}

// Stream is a running ffmpeg decode. Read returns interleaved stereo samples.
type Stream struct {
	reader *bufio.Reader
	closer io.Closer
	wait   func() error
	buf    []byte
	logger logging.Logger
}

func newStream(rc io.ReadCloser, wait func() error, logger logging.Logger) *Stream {
	return &Stream{
		reader: bufio.NewReaderSize(rc, 64*1024),
		closer: rc,
		wait:   wait,
		logger: logger,
	}
}

// Read fills dst with samples and returns how many were read. It always
// returns an even count (whole stereo frames) unless the stream ends mid
// frame, and io.EOF once the decoder has finished.
func (s *Stream) Read(dst []int16) (int, error) {
	dst = dst[:len(dst)&^1]
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.buf) < 2*len(dst) {
		s.buf = make([]byte, 2*len(dst))
	}
	buf := s.buf[:2*len(dst)]

	n, err := io.ReadAtLeast(s.reader, buf, 4)
	if err == nil && n%4 != 0 {
		// finish the partial frame so no bytes are lost between calls
		var m int
		m, err = io.ReadFull(s.reader, buf[n:n+4-n%4])
		n += m
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	n -= n % 4

	for i := 0; i < n/2; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n / 2, err
}

// Close stops the decoder and releases the subprocess
func (s *Stream) Close() error {
	closeErr := s.closer.Close()
	if s.wait == nil {
		return closeErr
	}
	waitErr := s.wait()
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		// killed by Close or context cancellation
		s.logger.Debug("FFmpeg exited", logging.Fields{
			"exit_code": exitErr.ExitCode(),
		})
		waitErr = nil
	}
	return errors.Join(closeErr, waitErr)
}

// Open starts decoding input, a file path or URL. The stream ends when the
// input does, when ctx is cancelled, or on Close.
func (d *Decoder) Open(ctx context.Context, input string) (*Stream, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "Open",
		"input":    input,
	})

	args := d.buildFFmpegArgs(input)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	logger.Debug("Running ffmpeg command", logging.Fields{
		"command": d.config.FFmpegPath + " " + strings.Join(args, " "),
	})

	if err := cmd.Start(); err != nil {
		logger.Error(err, "Failed to start ffmpeg")
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, msg)
			}
			return err
		}
		return nil
	}
	return newStream(stdout, wait, logger), nil
}

// Probe uses ffprobe to describe the first audio stream of input
func (d *Decoder) Probe(ctx context.Context, input string) (*AudioMetadata, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "Probe",
		"input":    input,
	})

	probeCtx := ctx
	if d.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, d.config.ProbeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		input,
	}
	cmd := exec.CommandContext(probeCtx, d.config.FFprobePath, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "FFprobe failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	metadata, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, err
	}

	logger.Debug("FFprobe completed", logging.Fields{
		"sample_rate": metadata.SampleRate,
		"channels":    metadata.Channels,
		"codec":       metadata.Codec,
		"duration":    metadata.Duration,
	})
	return metadata, nil
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100 // Fallback to common sample rate
	}
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}
	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the ffmpeg arguments for s16le stereo output on stdout
func (d *Decoder) buildFFmpegArgs(input string) []string {
	var args []string
	if d.config.Realtime {
		args = append(args, "-re")
	}
	args = append(args,
		"-i", input,
		"-vn",
		"-f", "s16le", // Interleaved 16-bit little-endian
		"-ac", "2",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	)

	var filters []string
	switch d.config.ResampleQuality {
	case "fast":
		filters = append(filters, "aresample=resampler=soxr:precision=16")
	case "medium":
		filters = append(filters, "aresample=resampler=soxr:precision=20")
	case "high":
		filters = append(filters, "aresample=resampler=soxr:precision=28")
	}
	if d.config.EnableNormalization {
		if norm := d.buildNormalizationFilter(); norm != "" {
			filters = append(filters, norm)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	// Suppress ffmpeg output
	args = append(args, "-v", "error", "pipe:1")
	return args
}

// buildNormalizationFilter builds the arguments based on the `DecoderConfig` for a normalization filter
func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128 loudness normalization
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)

	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"

	case "compand":
		// Compressor/limiter
		return fmt.Sprintf("compand=0.1,0.3:-90/-90,-%.1f/-%.1f,0/0:6:0:-90:0.1",
			math.Abs(d.config.TargetPeak),
			math.Abs(d.config.TargetPeak))

	default:
		return ""
	}
}
