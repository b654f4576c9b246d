package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/metrics"
)

// SubmissionService is the whistleblower registry. Content is stored as
// opaque ciphertext; the registry never needs the plaintext except when an
// authorized party asks for a revealed submission to be opened with the
// escrow key.
type SubmissionService struct {
	subs   domain.SubmissionStore
	access *AccessService
	cipher domain.Cipher
	escrow *crypto.EscrowKey
	events *EventPublisher
	logger *slog.Logger
}

// NewSubmissionService creates a SubmissionService. escrow may be nil, in
// which case DecryptSubmission reports domain.ErrEscrowUnavailable.
func NewSubmissionService(
	subs domain.SubmissionStore,
	access *AccessService,
	cipher domain.Cipher,
	escrow *crypto.EscrowKey,
	events *EventPublisher,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subs:   subs,
		access: access,
		cipher: cipher,
		escrow: escrow,
		events: events,
		logger: logger,
	}
}

// Submit stores a new unrevealed submission. encryptedContent must be
// non-empty 0x-prefixed hex.
func (s *SubmissionService) Submit(ctx context.Context, submitter, encryptedContent string, conditions []string) (domain.Submission, error) {
	if !crypto.IsHex(encryptedContent) {
		return domain.Submission{}, fmt.Errorf("submission_service: submit: content must be 0x-prefixed hex: %w", domain.ErrInvalidInput)
	}
	conds := make([]string, len(conditions))
	copy(conds, conditions)

	sub, err := s.subs.Create(ctx, domain.Submission{
		EncryptedContent: encryptedContent,
		Conditions:       conds,
		Submitter:        submitter,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submission_service: submit: %w", err)
	}

	metrics.Submissions.Inc()
	s.events.Emit(ctx, domain.EventSubmissionCreated, map[string]any{
		"submission_id": sub.ID,
		"conditions":    sub.Conditions,
	})
	s.logger.InfoContext(ctx, "submission_service: submission stored",
		slog.Uint64("submission_id", sub.ID),
		slog.Int("conditions", len(sub.Conditions)),
	)
	return sub, nil
}

// Reveal marks a submission revealed. Only authorized parties may reveal;
// revealing twice succeeds without a second event.
func (s *SubmissionService) Reveal(ctx context.Context, caller string, id uint64) (domain.Submission, error) {
	if _, err := s.subs.GetByID(ctx, id); err != nil {
		return domain.Submission{}, fmt.Errorf("submission_service: reveal %d: %w", id, err)
	}
	if err := s.access.require(ctx, caller); err != nil {
		metrics.Reveals.WithLabelValues(metrics.StatusOf(err)).Inc()
		return domain.Submission{}, fmt.Errorf("submission_service: reveal %d: %w", id, err)
	}

	sub, changed, err := s.subs.MarkRevealed(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submission_service: reveal %d: %w", id, err)
	}
	if !changed {
		metrics.Reveals.WithLabelValues("already_revealed").Inc()
		return sub, nil
	}

	metrics.Reveals.WithLabelValues("revealed").Inc()
	s.events.Emit(ctx, domain.EventSubmissionRevealed, map[string]any{
		"submission_id": sub.ID,
		"revealed_by":   caller,
	})
	s.logger.InfoContext(ctx, "submission_service: submission revealed",
		slog.Uint64("submission_id", sub.ID),
		slog.String("caller", caller),
	)
	return sub, nil
}

// Get returns a submission regardless of the caller; authorization gates
// decryption, not metadata.
func (s *SubmissionService) Get(ctx context.Context, id uint64) (domain.Submission, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submission_service: get %d: %w", id, err)
	}
	return sub, nil
}

// List returns a page of submissions in ID order.
func (s *SubmissionService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Submission, error) {
	subs, err := s.subs.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("submission_service: list: %w", err)
	}
	return subs, nil
}

// EncryptData encrypts hex plaintext to a hex public key with the configured
// cipher.
func (s *SubmissionService) EncryptData(_ context.Context, plaintextHex, publicKeyHex string) (string, error) {
	data, err := crypto.DecodeHex(plaintextHex)
	if err != nil {
		return "", fmt.Errorf("submission_service: encrypt: data: %w", err)
	}
	key, err := crypto.DecodeHex(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("submission_service: encrypt: key: %w", err)
	}
	ct, err := s.cipher.Encrypt(data, key)
	if err != nil {
		return "", fmt.Errorf("submission_service: encrypt: %w", err)
	}
	return crypto.EncodeHex(ct), nil
}

// DecryptData decrypts hex ciphertext with a caller-supplied private key.
// The caller must be an authorized party.
func (s *SubmissionService) DecryptData(ctx context.Context, caller, ciphertextHex, privateKeyHex string) (string, error) {
	if err := s.access.require(ctx, caller); err != nil {
		metrics.DecryptDenials.WithLabelValues(metrics.StatusOf(err)).Inc()
		return "", fmt.Errorf("submission_service: decrypt: %w", err)
	}
	ct, err := crypto.DecodeHex(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt: data: %w", err)
	}
	key, err := crypto.DecodeHex(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt: key: %w", err)
	}
	pt, err := s.cipher.Decrypt(ct, key)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt: %w", err)
	}
	return crypto.EncodeHex(pt), nil
}

// DecryptSubmission opens a revealed submission with the escrow key on
// behalf of an authorized caller.
func (s *SubmissionService) DecryptSubmission(ctx context.Context, caller string, id uint64) (plaintextHex string, err error) {
	defer func() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			metrics.DecryptDenials.WithLabelValues(metrics.StatusOf(err)).Inc()
		}
	}()

	if s.escrow == nil {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, domain.ErrEscrowUnavailable)
	}
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, err)
	}
	if err := s.access.require(ctx, caller); err != nil {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, err)
	}
	if !sub.Revealed {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, domain.ErrNotRevealed)
	}

	ct, err := crypto.DecodeHex(sub.EncryptedContent)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, err)
	}
	pt, err := s.cipher.Decrypt(ct, s.escrow.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("submission_service: decrypt %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "submission_service: submission decrypted",
		slog.Uint64("submission_id", id),
		slog.String("caller", caller),
	)
	return crypto.EncodeHex(pt), nil
}

// EscrowPublicKey returns the hex public key submitters should encrypt to.
func (s *SubmissionService) EscrowPublicKey() (string, error) {
	if s.escrow == nil {
		return "", domain.ErrEscrowUnavailable
	}
	return crypto.EncodeHex(s.escrow.PublicKey), nil
}

// Scheme names the configured cipher.
func (s *SubmissionService) Scheme() string {
	return s.cipher.Scheme()
}
