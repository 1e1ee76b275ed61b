package imageedit

import "testing"

func TestDefaultClassifier(t *testing.T) {
	c := DefaultClassifier()
	cases := []struct {
		name string
		body string
		want Signature
	}{
		{"mask quoted field", `{"error":{"message":"Invalid value for 'mask': required for this model"}}`, SignatureMaskRequired},
		{"mask phrase", `{"error":{"message":"A Mask Is Required for edits"}}`, SignatureMaskRequired},
		{"safety violations", `{"error":{"code":"safety_violations","message":"rejected"}}`, SignatureSafetyRejected},
		{"moderation blocked", `{"error":{"code":"moderation_blocked"}}`, SignatureSafetyRejected},
		{"safety beats mask", `{"error":{"message":"'mask' ignored, moderation_blocked"}}`, SignatureSafetyRejected},
		{"unrelated", `{"error":{"message":"rate limit exceeded"}}`, SignatureUnknown},
		{"empty", ``, SignatureUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(400, []byte(tc.body)); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.body, got, tc.want)
			}
		})
	}
}

func TestSignatureString(t *testing.T) {
	if SignatureMaskRequired.String() != "mask_required" {
		t.Fatalf("unexpected %q", SignatureMaskRequired.String())
	}
	if Signature(42).String() != "unknown" {
		t.Fatalf("unexpected %q", Signature(42).String())
	}
}
