package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their config key, not the Go field name
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, translate(fe))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	names := make(map[string]struct{}, len(c.Connections))
	for i, conn := range c.Connections {
		if _, ok := names[conn.Name]; ok {
			return fmt.Errorf("connections[%d]: duplicate name %q", i, conn.Name)
		}
		names[conn.Name] = struct{}{}

		if conn.Driver != "sqlite" && conn.Host == "" {
			return fmt.Errorf("connections[%d] host is required for driver %s", i, conn.Driver)
		}
		if conn.Slack.WebhookURL == "" && (conn.Slack.Token == "") != (conn.Slack.SubDomain == "") {
			return fmt.Errorf("connections[%d] slack.token and slack.subdomain must be set together", i)
		}
	}

	if c.DefaultConnection != "" {
		if _, ok := names[c.DefaultConnection]; !ok {
			return fmt.Errorf("default_connection=%q not found in connections list", c.DefaultConnection)
		}
	}

	if c.S3.Backend == "local" && c.S3.LocalPath == "" {
		return fmt.Errorf("s3.local_path is required when s3.backend is local")
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("s3.access_key and s3.secret_key must be set together")
	}

	return nil
}

func translate(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range (%s %s)", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}
