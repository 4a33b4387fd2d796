package orchestration

import "time"

const (
	DefaultSilenceWindow = 2 * time.Second
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultHardTimeout   = 30 * time.Second
	DefaultRePrompt      = "Can you hear me?"
)

// TurnConfig tunes the recovery policy of a turn.
type TurnConfig struct {
	// SilenceWindow is how long to keep listening without voice activity.
	SilenceWindow time.Duration
	// MaxAttempts is the total number of listening attempts per turn, 1 means
	// no retries.
	MaxAttempts int
	// RetryDelay is the pause between the re-prompt and the next attempt.
	RetryDelay time.Duration
	// RePrompt is spoken before retrying after silence or unmatched audio.
	RePrompt string
	// EchoPhrases are transcripts that are the agent hearing itself. The
	// re-prompt is always included.
	EchoPhrases []string
	// HardTimeout bounds a turn whose prompt carries no timeout of its own.
	HardTimeout time.Duration
	// BargeIn listens while the agent speaks so the user can interrupt it.
	// Only live sessions honor it.
	BargeIn bool
}

func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		SilenceWindow: DefaultSilenceWindow,
		MaxAttempts:   DefaultMaxAttempts,
		RetryDelay:    DefaultRetryDelay,
		RePrompt:      DefaultRePrompt,
		HardTimeout:   DefaultHardTimeout,
	}
}

// withDefaults fills unset fields from [DefaultTurnConfig].
func (c TurnConfig) withDefaults() TurnConfig {
	defaults := DefaultTurnConfig()
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = defaults.SilenceWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.RePrompt == "" {
		c.RePrompt = defaults.RePrompt
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = defaults.HardTimeout
	}
	c.EchoPhrases = append([]string{c.RePrompt}, c.EchoPhrases...)
	return c
}
