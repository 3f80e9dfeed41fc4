package utils

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// GenerateCardNumber generates a card number with the specified prefix and length,
// drawing the remaining digits from src
func GenerateCardNumber(src io.Reader, prefix string, length int) (string, error) {
	if length < len(prefix) || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}

	// Generate random digits
	digits := make([]byte, length-len(prefix))
	if _, err := io.ReadFull(src, digits); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(prefix)
	for _, b := range digits {
		builder.WriteByte(b%10 + '0')
	}

	cardNumber := builder.String()
	if len(cardNumber) != length {
		return "", fmt.Errorf("generated card number has incorrect length: got %d, want %d", len(cardNumber), length)
	}

	return cardNumber, nil
}

// LastFour returns the trailing 4 characters of a card number
func LastFour(card string) string {
	if len(card) <= 4 {
		return card
	}
	return card[len(card)-4:]
}

// CardToken derives a stable keyed token for a card number so archived
// records can be joined by card without storing the number itself
func CardToken(card string, key []byte) (string, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("failed to create card hasher: %w", err)
	}
	h.Write([]byte(card))
	return hex.EncodeToString(h.Sum(nil)), nil
}
