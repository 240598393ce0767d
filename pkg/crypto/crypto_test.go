package crypto

import "testing"

func TestSignAndVerify(t *testing.T) {
	pk, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("hello jiji")
	sig := pk.Sign(msg)
	if !VerifySignature(msg, sig, pk.PublicKey()) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	pk, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig := pk.Sign([]byte("original"))
	if VerifySignature([]byte("tampered"), sig, pk.PublicKey()) {
		t.Fatal("expected signature verification to fail")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	pk1, _ := GenerateKey()
	pk2, _ := GenerateKey()
	msg := []byte("hello")
	sig := pk1.Sign(msg)
	if VerifySignature(msg, sig, pk2.PublicKey()) {
		t.Fatal("expected signature to fail with wrong key")
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	pk, _ := GenerateKey()
	if VerifySignature([]byte("x"), []byte("too short"), pk.PublicKey()) {
		t.Fatal("expected malformed signature to fail")
	}
}

func TestPrivateKeyFromSeedDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	pk1, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	pk2, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	if pk1.PublicKey() != pk2.PublicKey() {
		t.Fatal("expected same seed to produce same public key")
	}
}

func TestHashConcat(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	ab := HashConcat(a, b)
	ba := HashConcat(b, a)
	if ab == ba {
		t.Fatal("expected order to matter in HashConcat")
	}
}
