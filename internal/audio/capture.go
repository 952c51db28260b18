package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	DefaultSampleRate = 16000
	chunkDuration     = 50 * time.Millisecond
)

// CaptureOptions configures one record stream.
type CaptureOptions struct {
	SampleRate int
	// KeepRaw retains every captured byte for debug dumps.
	KeepRaw bool
}

// ChunkSize returns the byte length of one 50ms mono s16 chunk.
func ChunkSize(sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return int(int64(sampleRate) * 2 * int64(chunkDuration) / int64(time.Second))
}

// chunker regroups arbitrarily sized PCM writes into fixed-size chunks.
type chunker struct {
	size    int
	pending []byte
}

// push appends b and returns every complete chunk now available.
func (k *chunker) push(b []byte) [][]byte {
	k.pending = append(k.pending, b...)
	var out [][]byte
	for len(k.pending) >= k.size {
		out = append(out, bytes.Clone(k.pending[:k.size]))
		k.pending = k.pending[k.size:]
	}
	return out
}

// flush returns the partial remainder, if any, and resets.
func (k *chunker) flush() []byte {
	rest := k.pending
	k.pending = nil
	if len(rest) == 0 {
		return nil
	}
	return rest
}

// Capture streams fixed-size PCM chunks from one Pulse source. Chunks closes
// once after Stop.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}

	mu      sync.Mutex
	chunker chunker
	raw     *bytes.Buffer
	stopped bool

	writers sync.WaitGroup
	bytes   atomic.Int64
}

// StartCapture opens a mono s16 record stream on selected. Cancelling ctx
// stops the capture.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions) (*Capture, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}

	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected, opts)
	c.client = client

	c.stream, err = client.NewRecord(
		pulse.NewWriter(pcmSink(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(opts.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(ChunkSize(opts.SampleRate))),
		pulse.RecordMediaName("parley conversation"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream.Start()

	stop := context.AfterFunc(ctx, func() { _ = c.Stop() })
	go func() {
		<-c.done
		stop()
	}()
	return c, nil
}

func newCapture(selected Device, opts CaptureOptions) *Capture {
	c := &Capture{
		device:  selected,
		chunker: chunker{size: ChunkSize(opts.SampleRate)},
		chunks:  make(chan []byte, 128),
		done:    make(chan struct{}),
	}
	if opts.KeepRaw {
		c.raw = new(bytes.Buffer)
	}
	return c
}

// Device returns the source being recorded.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// RawPCM returns a copy of everything captured when KeepRaw was set.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw == nil {
		return nil
	}
	return bytes.Clone(c.raw.Bytes())
}

// Stop halts the stream, delivers any partial chunk if there is room, and
// closes Chunks. Later calls do nothing.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.writers.Wait()

	c.mu.Lock()
	rest := c.chunker.flush()
	c.mu.Unlock()
	if rest != nil {
		select {
		case c.chunks <- rest:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// onPCM is the Pulse record callback.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Registered under mu so Stop cannot pass Wait before this write lands.
	c.writers.Add(1)
	defer c.writers.Done()
	if c.raw != nil {
		c.raw.Write(buffer)
	}
	ready := c.chunker.push(buffer)
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))
	for _, chunk := range ready {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buffer), nil
}
