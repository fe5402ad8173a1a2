package errorhandler

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Strategy decides what happens after a node failure.
type Strategy string

const (
	StrategyStop     Strategy = "stop"
	StrategyContinue Strategy = "continue"
	StrategyRetry    Strategy = "retry"
	StrategySkip     Strategy = "skip"
)

// Backoff is the growth function applied to the retry delay.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Notification channel names.
const (
	ChannelEmail    = "email"
	ChannelSlack    = "slack"
	ChannelWebhook  = "webhook"
	ChannelEventBus = "eventbus"
)

const (
	// BackoffMultiplier is the growth factor of exponential backoff.
	BackoffMultiplier = 2

	DefaultRetryAttempts       = 3
	DefaultRetryDelay          = time.Second
	DefaultMaxDelay            = 60 * time.Second
	DefaultNotificationTimeout = 10 * time.Second
)

// Config is the error handling policy.
type Config struct {
	Strategy                  Strategy      `json:"strategy"                  validate:"required,oneof=stop continue retry skip"`
	RetryAttempts             int           `json:"retryAttempts"             validate:"min=0"`
	RetryDelay                time.Duration `json:"retryDelay"                validate:"min=0"`
	RetryBackoff              Backoff       `json:"retryBackoff"              validate:"required,oneof=fixed linear exponential"`
	Jitter                    bool          `json:"jitter"`
	MaxDelay                  time.Duration `json:"maxDelay"                  validate:"gt=0"`
	ContinueOnFail            bool          `json:"continueOnFail"`
	SaveDataOnError           bool          `json:"saveDataOnError"`
	NotifyOnError             bool          `json:"notifyOnError"`
	ErrorNotificationChannels []string      `json:"errorNotificationChannels" validate:"dive,oneof=email slack webhook eventbus"`
	NotificationTimeout       time.Duration `json:"notificationTimeout"       validate:"min=0"`
}

// DefaultConfig returns the default error handling policy.
func DefaultConfig() Config {
	return Config{
		Strategy:                  StrategyStop,
		RetryAttempts:             DefaultRetryAttempts,
		RetryDelay:                DefaultRetryDelay,
		RetryBackoff:              BackoffExponential,
		MaxDelay:                  DefaultMaxDelay,
		ContinueOnFail:            false,
		SaveDataOnError:           true,
		NotifyOnError:             true,
		ErrorNotificationChannels: []string{ChannelEmail},
		NotificationTimeout:       DefaultNotificationTimeout,
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config fields against their allowed values.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid error handler config: %w", err)
	}

	return nil
}

// ConfigUpdate is a partial Config; nil fields are left unchanged.
type ConfigUpdate struct {
	Strategy                  *Strategy
	RetryAttempts             *int
	RetryDelay                *time.Duration
	RetryBackoff              *Backoff
	Jitter                    *bool
	MaxDelay                  *time.Duration
	ContinueOnFail            *bool
	SaveDataOnError           *bool
	NotifyOnError             *bool
	ErrorNotificationChannels []string
	NotificationTimeout       *time.Duration
}

// Apply returns c with the non-nil fields of u applied.
func (u ConfigUpdate) Apply(c Config) Config {
	if u.Strategy != nil {
		c.Strategy = *u.Strategy
	}

	if u.RetryAttempts != nil {
		c.RetryAttempts = *u.RetryAttempts
	}

	if u.RetryDelay != nil {
		c.RetryDelay = *u.RetryDelay
	}

	if u.RetryBackoff != nil {
		c.RetryBackoff = *u.RetryBackoff
	}

	if u.Jitter != nil {
		c.Jitter = *u.Jitter
	}

	if u.MaxDelay != nil {
		c.MaxDelay = *u.MaxDelay
	}

	if u.ContinueOnFail != nil {
		c.ContinueOnFail = *u.ContinueOnFail
	}

	if u.SaveDataOnError != nil {
		c.SaveDataOnError = *u.SaveDataOnError
	}

	if u.NotifyOnError != nil {
		c.NotifyOnError = *u.NotifyOnError
	}

	if u.ErrorNotificationChannels != nil {
		c.ErrorNotificationChannels = append([]string(nil), u.ErrorNotificationChannels...)
	}

	if u.NotificationTimeout != nil {
		c.NotificationTimeout = *u.NotificationTimeout
	}

	return c
}
