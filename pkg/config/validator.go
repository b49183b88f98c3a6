package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, collect("fetch", validation.Errors{
		"max_attempts": validation.Validate(c.Fetch.MaxAttempts, validation.Min(1), validation.Max(10)),
		"timeout":      validation.Validate(c.Fetch.Timeout, validation.Min(time.Second)),
		"retry_delay":  validation.Validate(c.Fetch.RetryDelay, validation.Min(time.Duration(0))),
		"rate_limit": validation.Validate(c.Fetch.RateLimit, validation.By(func(value any) error {
			if v, _ := value.(float64); v <= 0 {
				return validation.NewError("config.fetch.rate_limit", "must be positive")
			}
			return nil
		})),
	})...)

	errs = append(errs, collect("parser", validation.Errors{
		"ignore_hosts":      validation.Validate(c.Parser.IgnoreHosts, validation.Each(validation.Required)),
		"ignore_extensions": validation.Validate(c.Parser.IgnoreExtensions, validation.Each(validation.Required, validation.By(extensionRule))),
		"sharing_params":    validation.Validate(c.Parser.SharingParams, validation.Each(validation.Required)),
	})...)

	for section, labels := range map[string]LabelConfig{"tags": c.Tags, "categories": c.Categories} {
		errs = append(errs, collect(section, validation.Errors{
			"add":      validation.Validate(labels.Add, validation.Each(validation.Required, validation.Length(1, 64))),
			"override": validation.Validate(labels.Override, validation.Each(validation.Required, validation.Length(1, 64))),
			"default":  validation.Validate(labels.Default, validation.Each(validation.Required, validation.Length(1, 64))),
		})...)
	}

	errs = append(errs, collect("processing", validation.Errors{
		"workers":      validation.Validate(c.Processing.Workers, validation.Min(1), validation.Max(32)),
		"max_run_time": validation.Validate(c.Processing.MaxRunTime, validation.Min(time.Duration(0))),
		"note_timeout": validation.Validate(c.Processing.NoteTimeout, validation.Min(time.Duration(0))),
	})...)

	errs = append(errs, collect("database", validation.Errors{
		"url":        validation.Validate(c.Database.URL, validation.By(databaseURLRule)),
		"table_name": validation.Validate(c.Database.TableName, validation.Required, validation.Match(tableNamePattern)),
		"batch_size": validation.Validate(c.Database.BatchSize, validation.Min(1)),
	})...)

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func extensionRule(value any) error {
	ext, _ := value.(string)
	if !strings.HasPrefix(ext, ".") {
		return validation.NewError("config.parser.extension_format", fmt.Sprintf("invalid extension format: %s", ext))
	}
	return nil
}

func databaseURLRule(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return validation.NewError("config.database.url_invalid", "invalid database URL")
	}
	return nil
}

// collect flattens ozzo errors into section-qualified field errors.
func collect(section string, err error) []ValidationError {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	var out []ValidationError
	for field, fieldErr := range verrs {
		if fieldErr == nil {
			continue
		}
		out = append(out, ValidationError{
			Field:   section + "." + field,
			Message: fieldErr.Error(),
		})
	}
	return out
}
