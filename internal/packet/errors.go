// Package packet implements the DNS wire format: parsing inbound query
// datagrams and building response datagrams from a resolved answer.
package packet

import "errors"

var (
	// ErrPacketTooShort is returned when a datagram is smaller than the
	// fixed 12-byte header.
	ErrPacketTooShort = errors.New("packet too short")

	// ErrInvalidLabel is returned when a label in the question name
	// violates length limits or uses compression (v1 rejects compressed
	// questions outright).
	ErrInvalidLabel = errors.New("invalid label")

	// ErrNameTooLong is returned when the reconstructed name exceeds 255
	// octets including separators.
	ErrNameTooLong = errors.New("name too long")

	// ErrUnsupportedQuestionCount is returned when QDCOUNT != 1.
	ErrUnsupportedQuestionCount = errors.New("unsupported question count")
)

const (
	headerSize      = 12
	maxLabelLength  = 63
	maxDomainLength = 255
)
