package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is every setting of a run, read from the environment.
type Config struct {
	SourceLang string `env:"SOURCE_LANG" envDefault:"de"`
	TargetLang string `env:"TARGET_LANG" envDefault:"en"`

	// OutputDir overrides the project root. Empty means "{name}_transcript"
	// next to the source package.
	OutputDir string `env:"OUTPUT_DIR"`

	IOWorkers    int `env:"IO_WORKERS" envDefault:"4"`
	ModelWorkers int `env:"MODEL_WORKERS" envDefault:"1"`

	Converter  string `env:"CONVERTER" envDefault:"ffmpeg"`
	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	SoxPath    string `env:"SOX_PATH" envDefault:"sox"`

	STTProvider        string        `env:"STT_PROVIDER" envDefault:"whispercpp"`
	WhisperCPPPath     string        `env:"WHISPER_CPP_PATH" envDefault:"whisper-cli"`
	WhisperModelPath   string        `env:"WHISPER_MODEL_PATH"`
	WhisperURL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel       string        `env:"WHISPER_MODEL" envDefault:"medium"`
	WhisperTimeout     time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`
	WhisperBeamSize    int           `env:"WHISPER_BEAM_SIZE" envDefault:"5"`
	WhisperVAD         bool          `env:"WHISPER_VAD" envDefault:"true"`
	WhisperVADModel    string        `env:"WHISPER_VAD_MODEL_PATH"`
	DeepInfraAPIKey    string        `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel     string        `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`
	ElevenLabsSTTModel string        `env:"ELEVENLABS_STT_MODEL" envDefault:"scribe_v1"`
	STTPrompt          string        `env:"STT_PROMPT"`
	STTHotwords        string        `env:"STT_HOTWORDS"`

	TranslateProvider string        `env:"TRANSLATE_PROVIDER" envDefault:"ollama"`
	TranslateMaxChars int           `env:"TRANSLATE_MAX_CHARS" envDefault:"400"`
	TranslateTimeout  time.Duration `env:"TRANSLATE_TIMEOUT" envDefault:"5m"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OllamaURL         string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel       string        `env:"OLLAMA_MODEL" envDefault:"llama3.1"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	TTSProvider      string        `env:"TTS_PROVIDER" envDefault:"piper"`
	TTSTimeout       time.Duration `env:"TTS_TIMEOUT" envDefault:"5m"`
	PiperPath        string        `env:"PIPER_PATH" envDefault:"piper"`
	OpenAITTSModel   string        `env:"OPENAI_TTS_MODEL" envDefault:"tts-1"`
	ElevenLabsAPIKey string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel  string        `env:"ELEVENLABS_MODEL" envDefault:"eleven_multilingual_v2"`
	VoiceMapFile     string        `env:"VOICE_MAP_FILE"`

	S3 S3Config `envPrefix:"S3_"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"slidevoice/progress"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"slidevoice"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	MetricsTextfile bool   `env:"METRICS_TEXTFILE" envDefault:"true"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the optional S3 mirror of project outputs.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Enabled reports whether S3 mirroring is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile    string
	LogLevel   string
	OutputDir  string
	SourceLang string
	TargetLang string
}

// Load builds the configuration. Values are taken, highest first, from
// overrides, the process environment, the env file (".env" unless set) and
// the struct defaults. A missing env file is not an error.
func Load(overrides Overrides) (*Config, error) {
	if err := loadEnvFile(overrides.EnvFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	overrides.apply(&cfg)
	cfg.IOWorkers = max(cfg.IOWorkers, 1)
	cfg.ModelWorkers = max(cfg.ModelWorkers, 1)
	return &cfg, nil
}

func loadEnvFile(name string) error {
	if name == "" {
		name = ".env"
	}
	if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("env file %s: %w", name, err)
	}
	return nil
}

func (o Overrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.LogLevel, o.LogLevel)
	set(&cfg.OutputDir, o.OutputDir)
	set(&cfg.SourceLang, o.SourceLang)
	set(&cfg.TargetLang, o.TargetLang)
}
