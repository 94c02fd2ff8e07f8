package auth

import (
	"context"
	"errors"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/hanko-field/storefront/internal/platform/config"
)

func TestNewFirebaseVerifierRequiresProject(t *testing.T) {
	if _, err := NewFirebaseVerifier(context.Background(), config.FirebaseConfig{}); err == nil {
		t.Fatal("expected error without project id")
	}
}

func TestFirebaseVerifierReturnsDecodedToken(t *testing.T) {
	client := &stubTokenVerifier{token: &firebaseauth.Token{UID: "shopper-1"}}
	verifier := &FirebaseVerifier{client: client}

	token, err := verifier.VerifyIDToken(context.Background(), "id-token")
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if token.UID != "shopper-1" || client.received != "id-token" {
		t.Fatalf("unexpected token %+v (received %q)", token, client.received)
	}
}

func TestFirebaseVerifierPassesThroughOtherFailures(t *testing.T) {
	backend := errors.New("jwks fetch failed")
	verifier := &FirebaseVerifier{client: &stubTokenVerifier{err: backend}}

	_, err := verifier.VerifyIDToken(context.Background(), "id-token")
	if !errors.Is(err, backend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("backend failure must not be classified as a token problem: %v", err)
	}

	var unset *FirebaseVerifier
	if _, err := unset.VerifyIDToken(context.Background(), "id-token"); err == nil {
		t.Fatal("expected error from nil verifier")
	}
}
