package imageedit

import (
	"strings"
)

// Signature names a recognized provider failure.
type Signature int

const (
	SignatureUnknown Signature = iota
	SignatureMaskRequired
	SignatureSafetyRejected
)

func (s Signature) String() string {
	switch s {
	case SignatureMaskRequired:
		return "mask_required"
	case SignatureSafetyRejected:
		return "safety_rejected"
	default:
		return "unknown"
	}
}

// Classifier maps a failed provider response onto a Signature.
type Classifier interface {
	Classify(status int, body []byte) Signature
}

// SubstringClassifier matches known fragments of the provider's error text.
// Safety patterns win over mask patterns when both appear.
type SubstringClassifier struct {
	MaskPatterns   []string
	SafetyPatterns []string
}

// DefaultClassifier recognizes the OpenAI images API error texts.
func DefaultClassifier() SubstringClassifier {
	return SubstringClassifier{
		MaskPatterns:   []string{"'mask'", "mask is required"},
		SafetyPatterns: []string{"safety_violations", "moderation_blocked"},
	}
}

func (c SubstringClassifier) Classify(_ int, body []byte) Signature {
	text := string(body)
	if containsAny(text, c.SafetyPatterns) {
		return SignatureSafetyRejected
	}
	if containsAny(text, c.MaskPatterns) {
		return SignatureMaskRequired
	}
	return SignatureUnknown
}

func containsAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

var _ Classifier = SubstringClassifier{}
