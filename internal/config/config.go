// Package config provides the configuration schema and loader for the
// Echoform voice pipeline.
package config

// LogLevel controls log verbosity for the Echoform server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Echoform.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Recognizer   RecognizerConfig   `yaml:"recognizer"`
	Conversation ConversationConfig `yaml:"conversation"`
	Visual       VisualConfig       `yaml:"visual"`
}

// ServerConfig holds network and logging settings for the Echoform server.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on
	// (e.g., ":8080"). Empty disables the server entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds the capture-stream parameters.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of input channels. Default: 1.
	Channels int `yaml:"channels"`

	// ChunkSize is the number of samples per capture callback. Default: 4096.
	ChunkSize int `yaml:"chunk_size"`

	// DeviceID selects the input device; -1 (the default) uses the platform
	// default input.
	DeviceID *int `yaml:"device_id"`

	// FrameQueueCapacity bounds the capture queue. Default: 32 frames
	// (about two seconds at 16 kHz with 4096-sample chunks).
	FrameQueueCapacity int `yaml:"frame_queue_capacity"`
}

// AnalysisConfig tunes the voice-activity analyzer.
type AnalysisConfig struct {
	// EnergyThreshold is the scaled volume above which a frame counts as
	// speech. Default: 0.02.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// SilenceTimeoutSeconds is the speaking-flag hangover. Default: 3.0.
	SilenceTimeoutSeconds float64 `yaml:"silence_timeout_seconds"`

	// WindowSize is the volume-history ring length. Default: 60.
	WindowSize int `yaml:"window_size"`
}

// RecognizerConfig selects and tunes the speech-to-text engine.
type RecognizerConfig struct {
	// Name selects the engine: "whisper-native" or "" to disable
	// recognition (analysis-only mode).
	Name string `yaml:"name"`

	// ModelPath is the whisper.cpp model file. Required for whisper-native.
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 transcription language. Default: "en".
	Language string `yaml:"language"`

	// SilenceThresholdMs is the consecutive-silence duration that closes an
	// utterance. Default: 500.
	SilenceThresholdMs int `yaml:"silence_threshold_ms"`

	// MaxBufferDurationMs caps buffered audio before a forced transcription.
	// Default: 10000.
	MaxBufferDurationMs int `yaml:"max_buffer_duration_ms"`
}

// ConversationConfig tunes the turn-taking state machine.
type ConversationConfig struct {
	// WakeWord is the phrase that opens a turn, matched as a
	// case-insensitive substring of final transcripts.
	WakeWord string `yaml:"wake_word"`

	// WakeWordPhonetic additionally matches near-homophones of the wake
	// word (Double Metaphone + Jaro-Winkler).
	WakeWordPhonetic bool `yaml:"wake_word_phonetic"`

	// TurnTimeoutSeconds closes an open turn after this much inactivity.
	// Default: 30.
	TurnTimeoutSeconds float64 `yaml:"turn_timeout_seconds"`
}

// VisualConfig tunes the feedback animation.
type VisualConfig struct {
	// TickRateHz is the animation tick rate. Default: 60.
	TickRateHz int `yaml:"tick_rate_hz"`

	// AnimationSpeed is the phase advance per tick in radians. Default: 0.1.
	AnimationSpeed float64 `yaml:"animation_speed"`

	// BaseRadius is the resting blob radius in renderer units. Default: 100.
	BaseRadius float64 `yaml:"base_radius"`

	// NumBlobPoints is the blob polygon vertex count. Default: 16.
	NumBlobPoints int `yaml:"num_blob_points"`
}
