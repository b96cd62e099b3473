package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	if c.Auth.Realm == "" {
		errs = append(errs, fmt.Errorf("auth.realm must not be empty"))
	}

	if c.Auth.Registration.QuestionTTL < 0 {
		errs = append(errs, fmt.Errorf("auth.registration.question_ttl must not be negative, got %s", c.Auth.Registration.QuestionTTL))
	}

	if c.Notes.PageLimit <= 0 {
		errs = append(errs, fmt.Errorf("notes.page_limit must be > 0, got %d", c.Notes.PageLimit))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.path must not be empty when metrics are enabled"))
	}

	return errors.Join(errs...)
}
