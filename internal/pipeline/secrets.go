package pipeline

import "context"

// SecretProvider resolves the candidate verification secrets configured for
// a provider, newest first, so VerifySignature can support rotation without
// the pipeline knowing where secrets are stored (internal/infrastructure/secretcache).
type SecretProvider interface {
	SecretsFor(ctx context.Context, provider string) ([]string, error)
}
