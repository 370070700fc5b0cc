package pipeline

import (
	"context"

	apperrors "payhook.dev/ledger/internal/domain/errors"
)

// VerifyStage resolves the provider's candidate secrets and checks the
// request signature. An unverifiable or missing signature classifies the
// claim as SIGNATURE_FAILED; the error is Continue-marked, so the remaining
// stages still run and persist-claim records the attempt.
type VerifyStage struct {
	Secrets SecretProvider
}

func NewVerifyStage(secrets SecretProvider) *VerifyStage {
	return &VerifyStage{Secrets: secrets}
}

func (s *VerifyStage) Name() string { return "verify" }

func (s *VerifyStage) Run(ctx context.Context, claim *Context) error {
	if claim.SkipSignatureVerification {
		claim.SignatureValid = true
		return nil
	}

	secrets, err := s.Secrets.SecretsFor(ctx, claim.Provider)
	if err != nil {
		return apperrors.Storage("failed to load provider secrets", err)
	}
	if len(secrets) == 0 {
		claim.SignatureValid = false
		return apperrors.Signature("no verification secret configured for provider")
	}

	ok := claim.Adapter.VerifySignature(claim.RawBody, claim.Headers, secrets)
	claim.SignatureValid = ok
	if !ok {
		return apperrors.Signature("signature verification failed")
	}
	return nil
}
