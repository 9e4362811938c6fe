// This file contains the Recognizer implementation backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/echoform/pkg/audio"
	"github.com/MrWong99/echoform/pkg/recognize"
)

// Compile-time assertion that Recognizer satisfies recognize.Recognizer.
var _ recognize.Recognizer = (*Recognizer)(nil)

const (
	defaultLanguage    = "en"
	defaultSampleRate  = 16000
	defaultSilenceMs   = 500
	defaultMaxBufferMs = 10_000

	// Frames with mean RMS below this are treated as silence for the
	// purpose of utterance segmentation.
	defaultRMSThreshold = 0.01
)

// Recognizer transcribes speech with whisper.cpp, loaded in-process through
// the CGO bindings. Frames accumulate in an internal buffer; a run of
// consecutive silence (or the buffer cap) closes the utterance and triggers
// one inference call, whose text comes back as a [recognize.Final] result.
//
// The model is loaded once in [New] and shared; each inference uses a fresh
// whisper context because contexts are not thread-safe.
type Recognizer struct {
	model    whisperlib.Model
	language string

	sampleRate  int
	silenceMs   int
	maxBufferMs int

	buffer    []float32
	hadSpeech bool
	silence   int // accumulated silence in ms since last speech
}

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// WithSampleRate sets the expected sample rate of incoming frames in Hz.
// Defaults to 16000, which is what whisper models are trained on.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) { r.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// closes an utterance and triggers inference. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(r *Recognizer) { r.silenceMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10 000 ms (10 s).
func WithMaxBufferDurationMs(ms int) Option {
	return func(r *Recognizer) { r.maxBufferMs = ms }
}

// New creates a Recognizer that loads the whisper.cpp model from the given
// file path. The caller must call Close when the recognizer is no longer
// needed.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:       model,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		silenceMs:   defaultSilenceMs,
		maxBufferMs: defaultMaxBufferMs,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Accept buffers one frame and returns a [recognize.Final] result when a
// silence gap (or the buffer cap) closes the current utterance.
func (r *Recognizer) Accept(f audio.Frame) (recognize.Result, error) {
	if r.model == nil {
		return recognize.Result{}, fmt.Errorf("whisper: %w", recognize.ErrUnavailable)
	}

	samples := audio.DownmixMono(f.Samples, f.Channels)
	frameMs := len(samples) * 1000 / r.sampleRate

	if rms(samples) < defaultRMSThreshold {
		if !r.hadSpeech {
			return recognize.Result{}, nil
		}
		// Trailing silence belongs to the utterance; whisper handles the
		// padding better than a hard cut.
		r.buffer = append(r.buffer, samples...)
		r.silence += frameMs
		if r.silence >= r.silenceMs {
			return r.Flush()
		}
		return recognize.Result{}, nil
	}

	r.hadSpeech = true
	r.silence = 0
	r.buffer = append(r.buffer, samples...)
	if len(r.buffer)*1000/r.sampleRate >= r.maxBufferMs {
		return r.Flush()
	}
	return recognize.Result{}, nil
}

// Flush transcribes the buffered speech, if any, and resets the buffer.
func (r *Recognizer) Flush() (recognize.Result, error) {
	if r.model == nil {
		return recognize.Result{}, fmt.Errorf("whisper: %w", recognize.ErrUnavailable)
	}

	pcm := r.buffer
	spoke := r.hadSpeech
	r.buffer = nil
	r.hadSpeech = false
	r.silence = 0

	if len(pcm) == 0 || !spoke {
		return recognize.Result{}, nil
	}

	text, err := r.infer(pcm)
	if err != nil {
		return recognize.Result{}, err
	}
	if text == "" {
		return recognize.Result{}, nil
	}
	return recognize.Result{Kind: recognize.Final, Text: text}, nil
}

// infer runs whisper.cpp inference on the samples using a fresh context and
// returns the concatenated segment text.
func (r *Recognizer) infer(samples []float32) (string, error) {
	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", r.language, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close releases the whisper model.
func (r *Recognizer) Close() error {
	if r.model == nil {
		return nil
	}
	err := r.model.Close()
	r.model = nil
	return err
}

// rms computes the root-mean-square amplitude of the samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
