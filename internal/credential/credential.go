// Package credential owns the single OAuth2 credential the gateway uploads
// with: its stored form, freshness checks, and the exchange/refresh flows
// against the identity provider.
package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultExpirySkew = 10 * time.Second

// Credential is the stored access/refresh token pair.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Status summarises the stored credential without exposing token values.
type Status struct {
	Authenticated bool
	Usable        bool
	Expiry        time.Time
	Scopes        []string
}

// Usable reports whether the access token can be sent as is. A zero expiry
// means the provider did not report one and the token is trusted.
func (c Credential) Usable(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Add(skew).Before(c.Expiry)
}

// Token converts the credential for use with oauth2 transports.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

func fromToken(tok *oauth2.Token) Credential {
	cred := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		cred.Scopes = strings.Fields(scope)
	}
	return cred
}

func (c Credential) clone() *Credential {
	out := c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	return &out
}

func decode(data []byte) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("stored credential has no refresh token")
	}
	return &cred, nil
}

func encode(cred Credential) ([]byte, error) {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential: %w", err)
	}
	return data, nil
}
