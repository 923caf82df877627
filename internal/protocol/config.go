// internal/protocol/config.go
package protocol

import (
	"time"

	"github.com/rs/zerolog"
)

// Default handshake budgets.
const (
	DefaultPollInterval = time.Millisecond
	DefaultPollBudget   = 2000
	DefaultReadyRetries = 10
)

// Config tunes one Link. It is fixed at construction; callers cannot
// shorten or extend budgets per operation.
type Config struct {
	Registers RegisterMap

	// PollInterval is the delay before every trigger write, between status
	// reads and after every data window.
	PollInterval time.Duration

	// PollBudget is the number of status reads per wait attempt.
	PollBudget int

	// ReadyRetries is the number of attempts for the device-ready wait.
	// Other waits are attempted once.
	ReadyRetries int

	// Sleep suspends the caller; nil means time.Sleep.
	Sleep func(time.Duration)

	Logger zerolog.Logger
}

// DefaultConfig returns the eSP876 defaults with logging disabled.
func DefaultConfig() Config {
	return Config{
		Registers:    ESP876Registers,
		PollInterval: DefaultPollInterval,
		PollBudget:   DefaultPollBudget,
		ReadyRetries: DefaultReadyRetries,
		Sleep:        time.Sleep,
		Logger:       zerolog.Nop(),
	}
}

// normalize fills zero fields with defaults.
func (c Config) normalize() Config {
	if c.Registers == (RegisterMap{}) {
		c.Registers = ESP876Registers
	}
	if c.PollInterval < 0 {
		c.PollInterval = 0
	}
	if c.PollBudget <= 0 {
		c.PollBudget = DefaultPollBudget
	}
	if c.ReadyRetries <= 0 {
		c.ReadyRetries = DefaultReadyRetries
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}
