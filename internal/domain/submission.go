package domain

import "time"

// Submission is an encrypted whistleblower record with its reveal
// conditions. EncryptedContent is opaque 0x-prefixed hex.
type Submission struct {
	ID               uint64     `json:"id"`
	EncryptedContent string     `json:"encrypted-content"`
	Conditions       []string   `json:"conditions"`
	Revealed         bool       `json:"revealed"`
	Submitter        string     `json:"submitter,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	RevealedAt       *time.Time `json:"revealed_at,omitempty"`
}

// SubmissionView is the read contract of getSubmission.
type SubmissionView struct {
	Revealed         bool     `json:"revealed"`
	EncryptedContent string   `json:"encrypted-content"`
	Conditions       []string `json:"conditions"`
}

// View projects the submission onto its read contract.
func (s Submission) View() SubmissionView {
	conds := s.Conditions
	if conds == nil {
		conds = []string{}
	}
	return SubmissionView{
		Revealed:         s.Revealed,
		EncryptedContent: s.EncryptedContent,
		Conditions:       conds,
	}
}

// AuthorizedParty is one entry of the access control table.
type AuthorizedParty struct {
	Party      string    `json:"party"`
	Authorized bool      `json:"authorized"`
	UpdatedAt  time.Time `json:"updated_at"`
}
