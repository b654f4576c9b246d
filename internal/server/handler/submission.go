package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// SubmissionService is the slice of the submission registry the handlers
// need.
type SubmissionService interface {
	Submit(ctx context.Context, submitter, encryptedContent string, conditions []string) (domain.Submission, error)
	Reveal(ctx context.Context, caller string, id uint64) (domain.Submission, error)
	Get(ctx context.Context, id uint64) (domain.Submission, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Submission, error)
	EncryptData(ctx context.Context, plaintextHex, publicKeyHex string) (string, error)
	DecryptData(ctx context.Context, caller, ciphertextHex, privateKeyHex string) (string, error)
	DecryptSubmission(ctx context.Context, caller string, id uint64) (string, error)
	EscrowPublicKey() (string, error)
	Scheme() string
}

// SubmissionHandler serves the whistleblower registry and the cipher
// endpoints.
type SubmissionHandler struct {
	subs   SubmissionService
	logger *slog.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(subs SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{subs: subs, logger: logger}
}

type submitRequest struct {
	EncryptedContent string   `json:"encrypted-content"`
	Content          string   `json:"encrypted_content"`
	Conditions       []string `json:"conditions"`
}

// Submit stores an encrypted submission and returns its ID.
// POST /api/submissions
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	content := req.EncryptedContent
	if content == "" {
		content = req.Content
	}
	sub, err := h.subs.Submit(r.Context(), caller(r), content, req.Conditions)
	writeResult(w, r, h.logger, sub.ID, err, false)
}

// GetSubmission returns {revealed, encrypted-content, conditions}.
// GET /api/submissions/{id}
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	sub, err := h.subs.Get(r.Context(), id)
	writeResult(w, r, h.logger, sub.View(), err, false)
}

// ListSubmissions returns a page of submissions.
// GET /api/submissions
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	subs, err := h.subs.List(r.Context(), opts)
	writeResult(w, r, h.logger, page(subs, 0, opts), err, false)
}

// RevealSubmission marks a submission revealed. The caller must be an
// authorized party.
// POST /api/submissions/{id}/reveal
func (h *SubmissionHandler) RevealSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	_, err = h.subs.Reveal(r.Context(), caller(r), id)
	writeResult(w, r, h.logger, true, err, false)
}

// DecryptSubmission opens a revealed submission with the escrow key.
// POST /api/submissions/{id}/decrypt
func (h *SubmissionHandler) DecryptSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	pt, err := h.subs.DecryptSubmission(r.Context(), caller(r), id)
	writeResult(w, r, h.logger, pt, err, false)
}

type cipherRequest struct {
	Data       string `json:"data"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Encrypt encrypts hex data to a hex public key.
// POST /api/crypto/encrypt
func (h *SubmissionHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req cipherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	ct, err := h.subs.EncryptData(r.Context(), req.Data, req.PublicKey)
	writeResult(w, r, h.logger, ct, err, false)
}

// Decrypt decrypts hex data with a hex private key. Only authorized
// parties may call it.
// POST /api/crypto/decrypt
func (h *SubmissionHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req cipherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	pt, err := h.subs.DecryptData(r.Context(), caller(r), req.Data, req.PrivateKey)
	writeResult(w, r, h.logger, pt, err, false)
}

type escrowKeyView struct {
	Scheme    string `json:"scheme"`
	PublicKey string `json:"public_key"`
}

// EscrowKey returns the public key submitters should encrypt to.
// GET /api/crypto/escrow-key
func (h *SubmissionHandler) EscrowKey(w http.ResponseWriter, r *http.Request) {
	pub, err := h.subs.EscrowPublicKey()
	writeResult(w, r, h.logger, escrowKeyView{Scheme: h.subs.Scheme(), PublicKey: pub}, err, false)
}
