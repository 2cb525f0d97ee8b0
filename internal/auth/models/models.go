// Package models holds the request and response shapes of registration and
// authentication.
package models

import (
	"strings"

	"shardauth/internal/validator"
	"shardauth/pkg/domain"
	dErrors "shardauth/pkg/domain-errors"
)

// AuthenticationSuccessful is the message returned with an accepted proof.
const AuthenticationSuccessful = "Authentication successful"

// RegisterRequest asks for a new identity.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// RegisterResult is returned once. The private key is the holder's only
// credential and is never shown by the read endpoints.
type RegisterResult struct {
	UserID     uint64 `json:"userId"`
	PrivateKey string `json:"privateKey"`
}

// AuthenticateRequest is a holder's proof of possession for a challenge.
type AuthenticateRequest struct {
	UserID         domain.UserID `json:"userId"`
	PrivateKey     string        `json:"privateKey"`
	ChallengeToken string        `json:"challengeToken"`
}

func (r *AuthenticateRequest) Validate() error {
	r.PrivateKey = strings.TrimSpace(r.PrivateKey)
	r.ChallengeToken = strings.TrimSpace(r.ChallengeToken)
	if r.UserID.IsZero() || r.PrivateKey == "" || r.ChallengeToken == "" {
		return dErrors.New(dErrors.CodeValidation, "All fields are required")
	}
	return nil
}

// Audit is the advisory record of an attempt. It is returned to the caller
// and never persisted.
type Audit struct {
	HashedUserID      string `json:"hashedUserId"`
	HashedSignedToken string `json:"hashedSignedToken"`
}

// SignedTokenData echoes what the verifier compared.
type SignedTokenData struct {
	UserID          string `json:"userId"`
	StoredToken     string `json:"storedToken"`
	UserSignedToken string `json:"userSignedToken"`
	UserPrivateKey  string `json:"userPrivateKey"`
}

// AuthenticateResult is the body of an accepted authentication.
type AuthenticateResult struct {
	Message         string             `json:"message"`
	Signature       string             `json:"signature"`
	SignedTokenData SignedTokenData    `json:"signedTokenData"`
	BlockchainData  Audit              `json:"blockchainData"`
	Consensus       validator.Decision `json:"consensus"`
}
