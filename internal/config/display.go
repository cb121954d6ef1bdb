package config

import (
	"fmt"
	"strings"
)

// String renders the configuration for the show-config command. Secrets are
// masked, never printed.
func (c *Config) String() string {
	mask := func(v string) string {
		if v == "" {
			return "(not set)"
		}
		return "********"
	}

	sutMode := string(c.SUTMode)
	if sutMode == "" {
		sutMode = "(not set)"
	}

	baseURL := c.API.BaseURL
	if baseURL == "" {
		baseURL = "(not set)"
	}

	var b strings.Builder
	b.WriteString("Current Configuration:\n")
	b.WriteString("======================\n")
	fmt.Fprintf(&b, "SUT Mode:        %s\n", sutMode)
	fmt.Fprintf(&b, "Base URL:        %s\n", baseURL)
	fmt.Fprintf(&b, "Auth Mode:       %s\n", c.Auth.Mode)
	fmt.Fprintf(&b, "API Key:         %s\n", mask(c.Auth.APIKey))
	fmt.Fprintf(&b, "OAuth Token URL: %s\n", orNotSet(c.Auth.TokenURL))
	fmt.Fprintf(&b, "OAuth Client:    %s\n", orNotSet(c.Auth.ClientID))
	fmt.Fprintf(&b, "Client Secret:   %s\n", mask(c.Auth.ClientSecret))
	fmt.Fprintf(&b, "Legacy Token:    %s\n", mask(c.Auth.LegacyToken))
	fmt.Fprintf(&b, "Timeout:         %s\n", c.Timeout)
	fmt.Fprintf(&b, "Verify TLS:      %t\n", c.VerifyTLS)
	fmt.Fprintf(&b, "Report Dir:      %s\n", orNotSet(c.Reports.Dir))
	fmt.Fprintf(&b, "Encryption Key:  %s\n", mask(c.EncryptionKey))

	if c.DBEnabled {
		fmt.Fprintf(&b, "DB Driver:       %s\n", c.DB.Driver)
		fmt.Fprintf(&b, "DB Checks File:  %s\n", c.DB.ChecksFile)
	} else {
		b.WriteString("DB Checks:       (disabled)\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func orNotSet(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
