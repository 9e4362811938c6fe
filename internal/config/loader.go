package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidRecognizerNames lists the recognizer engines this build knows how to
// construct. An empty name disables recognition.
var ValidRecognizerNames = []string{"whisper-native"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 0 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [0, 2]", cfg.Audio.Channels))
	}
	if cfg.Audio.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must not be negative", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.FrameQueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_queue_capacity %d must not be negative", cfg.Audio.FrameQueueCapacity))
	}

	// Analysis
	if cfg.Analysis.EnergyThreshold < 0 || cfg.Analysis.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("analysis.energy_threshold %.3f is out of range [0, 1]", cfg.Analysis.EnergyThreshold))
	}
	if cfg.Analysis.SilenceTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("analysis.silence_timeout_seconds %.1f must not be negative", cfg.Analysis.SilenceTimeoutSeconds))
	}

	// Recognizer
	if cfg.Recognizer.Name != "" {
		known := false
		for _, name := range ValidRecognizerNames {
			if cfg.Recognizer.Name == name {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Errorf("recognizer.name %q is unknown; valid values: %v", cfg.Recognizer.Name, ValidRecognizerNames))
		}
		if cfg.Recognizer.Name == "whisper-native" && cfg.Recognizer.ModelPath == "" {
			errs = append(errs, errors.New("recognizer.model_path is required for whisper-native"))
		}
	} else {
		slog.Warn("no recognizer configured; running analysis-only, wake word and turns are disabled")
	}

	// Conversation
	if cfg.Conversation.WakeWord == "" && cfg.Recognizer.Name != "" {
		slog.Warn("conversation.wake_word is empty; transcripts will never open a turn")
	}
	if cfg.Conversation.TurnTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("conversation.turn_timeout_seconds %.1f must not be negative", cfg.Conversation.TurnTimeoutSeconds))
	}

	// Visual
	if cfg.Visual.TickRateHz < 0 || cfg.Visual.TickRateHz > 240 {
		errs = append(errs, fmt.Errorf("visual.tick_rate_hz %d is out of range [0, 240]", cfg.Visual.TickRateHz))
	}
	if cfg.Visual.NumBlobPoints < 0 {
		errs = append(errs, fmt.Errorf("visual.num_blob_points %d must not be negative", cfg.Visual.NumBlobPoints))
	}
	if cfg.Visual.AnimationSpeed < 0 {
		errs = append(errs, fmt.Errorf("visual.animation_speed %.3f must not be negative", cfg.Visual.AnimationSpeed))
	}

	return errors.Join(errs...)
}
