package passphrase

import "testing"

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("TDC_TEST_PASSPHRASE", "correct horse")
	src := NewSource("TDC_TEST_PASSPHRASE").WithConfirmation()
	value, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "correct horse" {
		t.Fatalf("unexpected passphrase %q", value)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("TDC_TEST_PASSPHRASE", "   ")
	if _, err := NewSource("TDC_TEST_PASSPHRASE").Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}
