package config

import "context"

// SecretProvider resolves secret values by path. SSMProvider is the
// production implementation; tests supply their own.
type SecretProvider interface {
	// GetParametersBatch returns a map of key -> plaintext value for every
	// key that could be resolved. Keys that do not exist are omitted or
	// reported as an error, depending on the implementation.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
