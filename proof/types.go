package proof

import "strings"

// Type of an eligibility proof a seller may be asked for
type Type string

// proof types
const (
	TypeAgeVerification         Type = "age_verification"
	TypeNationalityVerification Type = "nationality_verification"
	TypeDocumentVerification    Type = "document_verification"
	TypeInvitationBased         Type = "invitation_based"
	TypeCustom                  Type = "custom"
)

// Valid returns true if the proof type is one of the enumerated types
func (t Type) Valid() bool {
	switch t {
	case TypeAgeVerification, TypeNationalityVerification, TypeDocumentVerification, TypeInvitationBased, TypeCustom:
		return true
	}
	return false
}

// Source identifies the oracle which supplied a proof value
type Source string

// proof sources; both are accepted by the same ledger logic
const (
	SourceDirect Source = "direct"
	SourceOracle Source = "oracle"
)

// Requirement is a named eligibility condition of a pool
type Requirement struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        Type   `json:"proof_type"`
	Required    bool   `json:"required"`
}

// Submission is the per-seller record of a proof requirement
type Submission struct {
	Submitted bool   `json:"submitted"`
	Handle    string `json:"handle,omitempty"`
	Source    Source `json:"source,omitempty"`
}

// ParseType parses the given proof type, tolerating case and dashes
func ParseType(str string) (Type, bool) {
	t := Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(str)), "-", "_"))
	return t, t.Valid()
}
