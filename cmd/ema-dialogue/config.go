package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	ttsdeepgram "github.com/koscakluka/ema-dialogue/core/texttospeech/deepgram"
)

const (
	inputMiniaudio = "miniaudio"
	inputPortaudio = "portaudio"
)

type config struct {
	DeepgramAPIKey string
	Voice          string
	Language       string
	Input          string
	SampleRate     int

	AgentURL    string
	PromptsFile string
	HistoryPath string

	Turn orchestration.TurnConfig
}

// loadConfig reads flags of the named subcommand. Environment variables
// provide the defaults.
func loadConfig(name string, args []string) (config, error) {
	var cfg config
	defaults := orchestration.DefaultTurnConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.DeepgramAPIKey, "deepgram-key", os.Getenv("DEEPGRAM_API_KEY"), "Deepgram API key")
	fs.StringVar(&cfg.Voice, "voice", getEnv("EMA_VOICE", string(ttsdeepgram.DefaultVoice)), "Deepgram aura voice of the agent")
	fs.StringVar(&cfg.Language, "language", getEnv("EMA_LANGUAGE", speechtotext.DefaultLanguage), "Language of the user")
	fs.StringVar(&cfg.Input, "input", getEnv("EMA_INPUT", inputMiniaudio), "Microphone backend, miniaudio or portaudio")
	fs.IntVar(&cfg.SampleRate, "sample-rate", getEnvInt("EMA_SAMPLE_RATE", 16000), "Audio sample rate in Hz")
	fs.StringVar(&cfg.AgentURL, "url", os.Getenv("EMA_AGENT_URL"), "Websocket URL of the agent")
	fs.StringVar(&cfg.HistoryPath, "history", os.Getenv("EMA_HISTORY_DB"), "SQLite file to record turns in")
	fs.DurationVar(&cfg.Turn.SilenceWindow, "silence", getEnvDuration("EMA_SILENCE_WINDOW", defaults.SilenceWindow), "How long to wait for the user to speak")
	fs.IntVar(&cfg.Turn.MaxAttempts, "attempts", getEnvInt("EMA_MAX_ATTEMPTS", defaults.MaxAttempts), "Listening attempts per prompt")
	fs.DurationVar(&cfg.Turn.RetryDelay, "retry-delay", getEnvDuration("EMA_RETRY_DELAY", defaults.RetryDelay), "Pause before listening again")
	fs.DurationVar(&cfg.Turn.HardTimeout, "timeout", getEnvDuration("EMA_HARD_TIMEOUT", defaults.HardTimeout), "Upper bound of a single prompt")
	fs.StringVar(&cfg.Turn.RePrompt, "reprompt", getEnv("EMA_REPROMPT", defaults.RePrompt), "Phrase spoken before retrying")
	fs.BoolVar(&cfg.Turn.BargeIn, "barge-in", getEnvBool("EMA_BARGE_IN", false), "Let the user interrupt the agent (live only)")
	if name == "script" {
		fs.StringVar(&cfg.PromptsFile, "prompts", os.Getenv("EMA_PROMPTS_FILE"), "JSON file with the prompts")
	}

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if cfg.DeepgramAPIKey == "" {
		return config{}, fmt.Errorf("deepgram api key is required, set DEEPGRAM_API_KEY or -deepgram-key")
	}
	switch cfg.Input {
	case inputMiniaudio, inputPortaudio:
	default:
		return config{}, fmt.Errorf("unknown input %q", cfg.Input)
	}
	if name == "script" && cfg.PromptsFile == "" {
		return config{}, fmt.Errorf("prompts file is required")
	}
	if name == "live" && cfg.AgentURL == "" {
		return config{}, fmt.Errorf("agent url is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
