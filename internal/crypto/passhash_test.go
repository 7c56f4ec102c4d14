package crypto

import "testing"

func TestHashVerify_OK(t *testing.T) {
	t.Parallel()
	enc, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword("correct horse battery staple", enc) {
		t.Fatalf("expected verification success")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	t.Parallel()
	enc, err := HashPassword("pw-one")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if VerifyPassword("pw-two", enc) {
		t.Fatalf("expected verification failure")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	t.Parallel()
	a, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password must differ (random salt)")
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	for _, enc := range []string{"", "argon2id$only-two", "bcrypt$a$b", "argon2id$!!$!!"} {
		if VerifyPassword("x", enc) {
			t.Fatalf("malformed hash %q must not verify", enc)
		}
	}
}

func TestRandBytes_Len(t *testing.T) {
	t.Parallel()
	b, err := RandBytes(16)
	if err != nil || len(b) != 16 {
		t.Fatalf("RandBytes: len=%d err=%v", len(b), err)
	}
}
