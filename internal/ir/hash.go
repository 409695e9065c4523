package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainGraph  = "yoink/graph/v1"
	DomainTokens = "yoink/tokens/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content-addressed identity of a graph. Two
// graphs built by the same sequence of builder calls hash identically,
// so recorded runs can be matched to the program that produced them
// across restarts.
func GraphHash(g *Graph) (string, error) {
	canonical, err := CanonicalGraph(g)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// TokensHash computes the content-addressed identity of a token
// sequence.
func TokensHash(toks []Token) (string, error) {
	canonical, err := CanonicalTokens(toks)
	if err != nil {
		return "", fmt.Errorf("TokensHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTokens, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error. Use only in
// tests or when the graph is known to be valid.
func MustGraphHash(g *Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
