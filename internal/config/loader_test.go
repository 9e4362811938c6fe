package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/echoform/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
audio:
  sample_rate: 16000
  channels: 1
  chunk_size: 4096
  frame_queue_capacity: 32
analysis:
  energy_threshold: 0.02
  silence_timeout_seconds: 3.0
  window_size: 60
recognizer:
  name: whisper-native
  model_path: /models/ggml-base.en.bin
  language: en
conversation:
  wake_word: assistant
  wake_word_phonetic: true
  turn_timeout_seconds: 30
visual:
  tick_rate_hz: 60
  animation_speed: 0.1
  base_radius: 100
  num_blob_points: 16
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader returned error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Recognizer.Name != "whisper-native" {
		t.Errorf("Recognizer.Name = %q, want whisper-native", cfg.Recognizer.Name)
	}
	if cfg.Conversation.WakeWord != "assistant" {
		t.Errorf("WakeWord = %q, want assistant", cfg.Conversation.WakeWord)
	}
	if !cfg.Conversation.WakeWordPhonetic {
		t.Error("WakeWordPhonetic = false, want true")
	}
	if cfg.Visual.NumBlobPoints != 16 {
		t.Errorf("NumBlobPoints = %d, want 16", cfg.Visual.NumBlobPoints)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: 16000
  bit_depth: 24
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_WhisperRequiresModelPath(t *testing.T) {
	t.Parallel()
	yaml := `
recognizer:
  name: whisper-native
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error should mention model_path, got: %v", err)
	}
}

func TestValidate_UnknownRecognizer(t *testing.T) {
	t.Parallel()
	yaml := `
recognizer:
  name: vosk
  model_path: /models/whatever
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown recognizer, got nil")
	}
	if !strings.Contains(err.Error(), "recognizer.name") {
		t.Errorf("error should mention recognizer.name, got: %v", err)
	}
}

func TestValidate_JoinsMultipleFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
audio:
  channels: 7
visual:
  tick_rate_hz: 500
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "channels", "tick_rate_hz"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	t.Parallel()

	if err := config.Validate(&config.Config{}); err != nil {
		t.Errorf("Validate(empty) = %v, want nil (defaults apply downstream)", err)
	}
}
