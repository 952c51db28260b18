package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jfreymuth/pulse"
)

// Clip is one synthesized utterance in a provider output format such as
// pcm_22050 or mp3_44100_128.
type Clip struct {
	Format string
	Data   []byte
}

// Empty reports whether the clip carries no audio.
func (c Clip) Empty() bool {
	return len(c.Data) == 0
}

// Codec returns the format prefix, e.g. "pcm" or "mp3".
func (c Clip) Codec() string {
	codec, _, _ := strings.Cut(strings.ToLower(c.Format), "_")
	return codec
}

// SampleRate returns the rate encoded in Format, or 0 when absent.
func (c Clip) SampleRate() int {
	parts := strings.Split(c.Format, "_")
	if len(parts) < 2 {
		return 0
	}
	rate, err := strconv.Atoi(parts[1])
	if err != nil || rate <= 0 {
		return 0
	}
	return rate
}

// Player plays clips to completion.
type Player struct {
	command []string
	logger  *slog.Logger
}

// NewPlayer builds a player. command plays non-PCM clips given a file path as
// its final argument.
func NewPlayer(command []string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Player{command: append([]string(nil), command...), logger: logger}
}

// Play blocks until clip has played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, clip Clip) error {
	if clip.Empty() {
		return nil
	}
	if clip.Codec() == "pcm" {
		rate := clip.SampleRate()
		if rate == 0 {
			return fmt.Errorf("pcm clip format %q has no sample rate", clip.Format)
		}
		return PlayPCM16(ctx, decodePCM16(clip.Data), rate, "parley reply")
	}
	return p.playCommand(ctx, clip)
}

func (p *Player) playCommand(ctx context.Context, clip Clip) error {
	if len(p.command) == 0 {
		return fmt.Errorf("no playback command configured for %s clips", clip.Codec())
	}

	file, err := os.CreateTemp("", "parley-reply-*"+extensionFor(clip.Codec()))
	if err != nil {
		return fmt.Errorf("create reply audio file: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.Write(clip.Data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write reply audio file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close reply audio file: %w", err)
	}

	args := append(append([]string(nil), p.command[1:]...), path)
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("playback command output", "output", strings.TrimSpace(string(output)))
		return fmt.Errorf("run %s: %w", p.command[0], err)
	}
	return nil
}

// PlayPCM16 plays mono signed 16-bit samples through Pulse and waits for the
// stream to drain. Cancelling ctx ends the stream early.
func PlayPCM16(ctx context.Context, samples []int16, sampleRate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}

	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil && !errors.Is(err, pulse.EndOfData) {
		return fmt.Errorf("play pcm stream: %w", err)
	}
	return ctx.Err()
}

// decodePCM16 converts little-endian s16 bytes to samples, dropping a
// trailing odd byte.
func decodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

func extensionFor(codec string) string {
	switch codec {
	case "mp3":
		return ".mp3"
	case "opus":
		return ".opus"
	default:
		return "." + codec
	}
}
