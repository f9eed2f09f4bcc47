package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"seqbox/debug"
	"seqbox/synth"
)

// DefaultBufferSize is the player buffer in bytes: 10ms of stereo audio
const DefaultBufferSize = synth.SampleRate / 100 * synth.Channels * 2

// Output plays a Ring through the host audio device. The device pulls
// from the ring on its own goroutine, the way a USB host pulls frames.
type Output struct {
	ctx    *oto.Context
	player *oto.Player
}

// NewOutput opens the default audio device and starts playing src.
// bufferSize is the player buffer in bytes; 0 uses DefaultBufferSize.
func NewOutput(src io.Reader, bufferSize int) (*Output, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   synth.SampleRate,
		ChannelCount: synth.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / (synth.SampleRate * synth.Channels * 2),
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	p := ctx.NewPlayer(src)
	p.SetBufferSize(bufferSize)
	p.Play()
	debug.Log("render", "audio output started, buffer %d bytes", bufferSize)
	return &Output{ctx: ctx, player: p}, nil
}

// Playing reports whether the device is pulling
func (o *Output) Playing() bool {
	return o.player.IsPlaying()
}

// Close stops the player. The oto context stays alive for the process.
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("close audio player: %w", err)
	}
	return nil
}
