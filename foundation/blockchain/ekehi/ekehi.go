// Package ekehi provides the hashing primitive and the address format
// shared by every component of the chain.
package ekehi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// AddressPrefix is carried by every encoded address.
const AddressPrefix = "EKH"

// addressLength is the total length of an encoded address: the prefix plus
// the hex encoding of a 20 byte payload and a 4 byte checksum.
const addressLength = len(AddressPrefix) + 2*(payloadLength+checksumLength)

const (
	payloadLength  = 20
	checksumLength = 4
)

// Reserved sender tokens. These bypass the address format: the coinbase
// sender marks mining rewards, the system senders mark emissions produced
// by the issuing node itself.
const (
	CoinbaseSender  = "00"
	SenderFaucet    = "FAUCET"
	SenderEcosystem = "ECOSYSTEM"
)

// ErrInvalidPayload is returned when encoding or deriving from material of
// the wrong size.
var ErrInvalidPayload = errors.New("invalid payload length")

// =============================================================================

// Hash returns the SHA-256 digest for the specified data.
func Hash(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}

// HashHex returns the SHA-256 digest for the specified data as a lowercase
// hex string.
func HashHex(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// =============================================================================

// EncodeAddress encodes a 20 byte payload into the address format. The
// checksum is the leading 4 bytes of the SHA-256 digest over the payload.
func EncodeAddress(payload []byte) (string, error) {
	if len(payload) != payloadLength {
		return "", ErrInvalidPayload
	}

	hash := sha256.Sum256(payload)

	data := make([]byte, 0, payloadLength+checksumLength)
	data = append(data, payload...)
	data = append(data, hash[:checksumLength]...)

	return AddressPrefix + hex.EncodeToString(data), nil
}

// ValidateAddress reports whether the specified string is a well formed
// address. The coinbase sender token is accepted as valid.
func ValidateAddress(s string) bool {
	if s == CoinbaseSender {
		return true
	}

	if len(s) != addressLength || !strings.HasPrefix(s, AddressPrefix) {
		return false
	}

	data, err := hex.DecodeString(s[len(AddressPrefix):])
	if err != nil || len(data) != payloadLength+checksumLength {
		return false
	}

	payload := data[:payloadLength]
	checksum := data[payloadLength:]

	hash := sha256.Sum256(payload)

	return subtle.ConstantTimeCompare(checksum, hash[:checksumLength]) == 1
}

// DeriveAddress derives the address for a 32 byte private key. The SHA-256
// digest of the key acts as the surrogate public material and its leading
// 20 bytes become the address payload.
func DeriveAddress(key []byte) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidPayload
	}

	material := sha256.Sum256(key)

	return EncodeAddress(material[:payloadLength])
}

// =============================================================================

// IsSystemSender reports whether the sender token marks an emission the
// issuing node produced itself.
func IsSystemSender(s string) bool {
	return s == SenderFaucet || s == SenderEcosystem
}

// IsReservedSender reports whether the sender bypasses the address format.
func IsReservedSender(s string) bool {
	return s == CoinbaseSender || IsSystemSender(s)
}
