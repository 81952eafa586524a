package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Parameter is one value the service resolves from SSM at startup through a
// <EnvVar>_SSM_PARAM variable.
type Parameter struct {
	EnvVar   string
	Key      string
	Secure   bool
	Validate func(value string) error
}

// Inventory lists every parameter the bootstrap tool manages.
func Inventory() []Parameter {
	return []Parameter{
		{EnvVar: "DATABASE_URL", Key: "database/url", Secure: true, Validate: validateDatabaseURL},
		{EnvVar: "REDIS_URL", Key: "redis/url", Secure: true, Validate: validateRedisURL},
		{EnvVar: "GOOGLE_CREDENTIALS_JSON", Key: "google/credentials_json", Secure: true, Validate: validateServiceAccount},
		{EnvVar: "FCM_CREDENTIALS_JSON", Key: "fcm/credentials_json", Secure: true, Validate: validateServiceAccount},
		{EnvVar: "SQS_DLQ", Key: "sqs/dlq_url", Validate: validateHTTPURL},
		{EnvVar: "SNS_TOPIC_ARN_PREFIX", Key: "sns/topic_arn_prefix", Validate: validateARNPrefix},
	}
}

// Outcome of seeding one parameter.
type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeExists  Outcome = "exists"
	OutcomeAbsent  Outcome = "absent"
)

// Result records what happened to one parameter.
type Result struct {
	Parameter Parameter
	Path      string
	Outcome   Outcome
}

// Seeder copies values from a dotenv source into Parameter Store.
type Seeder struct {
	Store     *ParameterStore
	Overwrite bool
}

// Seed writes every inventory parameter present in values. Existing
// parameters are left alone unless Overwrite is set. All values are
// validated before anything is written.
func (s *Seeder) Seed(ctx context.Context, values map[string]string) ([]Result, error) {
	inventory := Inventory()

	var errs []error
	for _, p := range inventory {
		v := values[p.EnvVar]
		if v == "" || p.Validate == nil {
			continue
		}
		if err := p.Validate(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.EnvVar, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(inventory))
	for _, p := range inventory {
		r := Result{Parameter: p, Path: s.Store.Path(p.Key), Outcome: OutcomeAbsent}
		v := values[p.EnvVar]
		if v == "" {
			results = append(results, r)
			continue
		}

		if !s.Overwrite {
			exists, err := s.Store.Exists(ctx, r.Path)
			if err != nil {
				return results, err
			}
			if exists {
				r.Outcome = OutcomeExists
				results = append(results, r)
				continue
			}
		}

		if err := s.Store.Put(ctx, r.Path, v, p.Secure, s.Overwrite); err != nil {
			return results, err
		}
		r.Outcome = OutcomeWritten
		results = append(results, r)
	}
	return results, nil
}

// ReadSource loads a dotenv file of parameter values. A value of the form
// @path is replaced by the contents of that file, which is how service
// account JSON is usually supplied.
func ReadSource(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for k, v := range values {
		file, ok := strings.CutPrefix(v, "@")
		if !ok {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: reading %s: %w", k, file, err)
		}
		values[k] = strings.TrimSpace(string(data))
	}
	return values, nil
}

// ExportEnv writes a dotenv file pointing every seeded parameter at its SSM
// path, ready for LoadConfig to resolve.
func ExportEnv(path, env string, results []Result) error {
	out := map[string]string{"APP_ENV": env}
	for _, r := range results {
		if r.Outcome == OutcomeAbsent {
			continue
		}
		out[r.Parameter.EnvVar+"_SSM_PARAM"] = r.Path
	}
	if err := godotenv.Write(out, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}

// Summary renders results one per line, sorted by variable.
func Summary(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("  %-26s %-8s %s", r.Parameter.EnvVar, r.Outcome, r.Path))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func validateDatabaseURL(v string) error {
	if !strings.HasPrefix(v, "postgres://") && !strings.HasPrefix(v, "postgresql://") {
		return errors.New("must be a postgres:// connection string")
	}
	if _, err := pgx.ParseConfig(v); err != nil {
		return fmt.Errorf("invalid connection string: %w", err)
	}
	return nil
}

func validateRedisURL(v string) error {
	if _, err := redis.ParseURL(v); err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	return nil
}

// validateServiceAccount checks the fields the Google client libraries need
// from a service account key.
func validateServiceAccount(v string) error {
	var key struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal([]byte(v), &key); err != nil {
		return fmt.Errorf("not a JSON key file: %w", err)
	}
	if key.Type != "service_account" {
		return fmt.Errorf("type is %q, want service_account", key.Type)
	}
	if key.ProjectID == "" || key.ClientEmail == "" || key.PrivateKey == "" {
		return errors.New("project_id, client_email and private_key are required")
	}
	return nil
}

func validateHTTPURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validateARNPrefix(v string) error {
	if !strings.HasPrefix(v, "arn:aws:sns:") {
		return errors.New("must start with arn:aws:sns:")
	}
	return nil
}
