package model

// LinkType classifies a candidate link by its relationship to the target
// domain and by verification-intent signals.
type LinkType string

const (
	LinkTypeExactDomain           LinkType = "exact_domain"
	LinkTypeContainsDomain        LinkType = "contains_domain"
	LinkTypeVerificationIndicator LinkType = "verification_indicator"
	LinkTypeOther                 LinkType = "other"
)

// DomainMatch reports whether t ties the link to the target domain.
func (t LinkType) DomainMatch() bool {
	return t == LinkTypeExactDomain || t == LinkTypeContainsDomain
}

// CodeCandidate is a verification code found in one message.
type CodeCandidate struct {
	Value string

	// Tier is the 1-based index of the strategy that produced Value.
	Tier int
}

// LinkCandidate is a URL found in one message with its classification.
type LinkCandidate struct {
	URL        string
	BaseDomain string
	Type       LinkType
}

// MessageResult is the extraction outcome for a single message.
type MessageResult struct {
	MessageID string
	Sender    string
	Code      string
	Link      string
	LinkType  LinkType
	Timestamp int64
}

// AggregateResult is the answer for a batch. Empty fields are absent.
type AggregateResult struct {
	Code   string `json:"code"`
	Link   string `json:"link"`
	Sender string `json:"sender"`
}

// IsEmpty reports whether neither a code nor a link was found.
func (r AggregateResult) IsEmpty() bool {
	return r.Code == "" && r.Link == ""
}
