package domain

import "time"

// VerdictState is the overall deliverability classification of one address.
type VerdictState string

const (
	StateDeliverable   VerdictState = "deliverable"
	StateUndeliverable VerdictState = "undeliverable"
	StateRisky         VerdictState = "risky"
	StateUnknown       VerdictState = "unknown"
)

// VerifyOptions enumerates the recognized per-request verification switches.
type VerifyOptions struct {
	SkipDisposable bool `json:"skipDisposable"`
	SkipRole       bool `json:"skipRole"`
	SkipTypo       bool `json:"skipTypo"`
}

// Verdict is the structured result of verifying a single address.
type Verdict struct {
	Email        string       `json:"email"`
	State        VerdictState `json:"state"`
	Reason       string       `json:"reason,omitempty"`
	Score        int          `json:"score"`
	SyntaxValid  bool         `json:"syntaxValid"`
	DNSValid     bool         `json:"dnsValid"`
	Disposable   bool         `json:"disposable"`
	RoleBased    bool         `json:"roleBased"`
	FreeProvider bool         `json:"freeProvider"`
	CatchAll     bool         `json:"catchAll"`
	DidYouMean   string       `json:"didYouMean,omitempty"`
	Domain       string       `json:"domain,omitempty"`
	MXRecords    []string     `json:"mxRecords,omitempty"`
	VerifiedAt   time.Time    `json:"verifiedAt"`
	DurationMs   int64        `json:"durationMs"`
}

// TypoDetected reports whether the verifier suggested a correction.
func (v Verdict) TypoDetected() bool {
	return v.DidYouMean != ""
}

// UnknownVerdict builds the verdict used when verification could not reach a conclusion.
func UnknownVerdict(email, reason string) Verdict {
	return Verdict{
		Email:      email,
		State:      StateUnknown,
		Reason:     reason,
		VerifiedAt: time.Now().UTC(),
	}
}

// VerifyRequest is the body of a single-address verification.
type VerifyRequest struct {
	Email   string         `json:"email" binding:"required"`
	Options *VerifyOptions `json:"options,omitempty"`
}

// VerifyResponse wraps a single verdict.
type VerifyResponse struct {
	Success bool    `json:"success"`
	Result  Verdict `json:"result"`
}
