package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JaimeStill/curator/pkg/notify"
)

const (
	EnvAutomationRetrievalFunctionARN = "CURATOR_AUTOMATION_RETRIEVAL_FUNCTION_ARN"
	EnvAutomationParserPrefix         = "CURATOR_AUTOMATION_PARSER_PREFIX"
	EnvAutomationPersistOnFailure     = "CURATOR_AUTOMATION_PERSIST_ON_NOTIFICATION_FAILURE"
)

var notifyEnv = &notify.Env{
	Sender: "CURATOR_AUTOMATION_SENDER",
}

// AutomationConfig holds scheduling and notification settings for sources.
type AutomationConfig struct {
	// RetrievalFunctionARN is the function every scheduled rule targets.
	// Required when AWS is enabled.
	RetrievalFunctionARN string `toml:"retrieval_function_arn"`
	ParserPrefix         string `toml:"parser_prefix"`

	PersistOnNotificationFailure bool          `toml:"persist_on_notification_failure"`
	Notify                       notify.Config `toml:"notify"`
}

// Finalize applies defaults, environment variable overrides, and validation.
// awsEnabled reports whether rules are written to AWS, where every rule needs
// a retrieval function to target.
func (c *AutomationConfig) Finalize(awsEnabled bool) error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	if err := c.validate(awsEnabled); err != nil {
		return err
	}
	if err := c.Notify.Finalize(notifyEnv); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *AutomationConfig) Merge(overlay *AutomationConfig) {
	if overlay.RetrievalFunctionARN != "" {
		c.RetrievalFunctionARN = overlay.RetrievalFunctionARN
	}
	if overlay.ParserPrefix != "" {
		c.ParserPrefix = overlay.ParserPrefix
	}
	if overlay.PersistOnNotificationFailure {
		c.PersistOnNotificationFailure = true
	}
	c.Notify.Merge(&overlay.Notify)
}

func (c *AutomationConfig) loadDefaults() {
	if c.ParserPrefix == "" {
		c.ParserPrefix = "curator-parser-"
	}
}

func (c *AutomationConfig) loadEnv() error {
	setFromEnv(EnvAutomationRetrievalFunctionARN, &c.RetrievalFunctionARN)
	setFromEnv(EnvAutomationParserPrefix, &c.ParserPrefix)
	if v := os.Getenv(EnvAutomationPersistOnFailure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAutomationPersistOnFailure, err)
		}
		c.PersistOnNotificationFailure = b
	}
	return nil
}

func (c *AutomationConfig) validate(awsEnabled bool) error {
	if c.RetrievalFunctionARN == "" {
		if awsEnabled {
			return fmt.Errorf("retrieval_function_arn is required when aws is enabled")
		}
		return nil
	}
	if !strings.HasPrefix(c.RetrievalFunctionARN, "arn:") {
		return fmt.Errorf("invalid retrieval_function_arn: %q", c.RetrievalFunctionARN)
	}
	return nil
}
