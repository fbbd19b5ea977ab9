package packet

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Parser parses a single DNS query datagram. v1 answers only ever carry
// one question, so there is no need to track a cursor across multiple
// question entries; the parser fails closed the moment it sees anything
// it cannot represent faithfully (multi-question datagrams, compressed
// questions, oversized names) rather than guess.
type Parser struct {
	buf    []byte
	offset int
}

// NewParser creates a parser over a received datagram. The caller keeps
// ownership of buf; the parser never mutates it.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Parse parses the header and question section. It never panics: any
// malformed input is reported as one of the ErrX sentinels in errors.go.
func (p *Parser) Parse() (*Query, error) {
	if len(p.buf) < headerSize {
		return nil, ErrPacketTooShort
	}

	q := &Query{}
	p.parseHeader(&q.Header)

	if q.Header.QDCount != 1 {
		return nil, ErrUnsupportedQuestionCount
	}

	question, err := p.parseQuestion()
	if err != nil {
		return nil, err
	}
	q.Question = question

	return q, nil
}

func (p *Parser) parseHeader(h *Header) {
	buf := p.buf

	h.ID = binary.BigEndian.Uint16(buf[0:2])

	flags := binary.BigEndian.Uint16(buf[2:4])
	h.QR = flags&0x8000 != 0
	h.Opcode = uint8((flags >> 11) & 0x0F)
	h.AA = flags&0x0400 != 0
	h.TC = flags&0x0200 != 0
	h.RD = flags&0x0100 != 0
	h.RA = flags&0x0080 != 0
	h.Z = uint8((flags >> 4) & 0x07)
	h.Rcode = uint8(flags & 0x0F)

	h.QDCount = binary.BigEndian.Uint16(buf[4:6])
	h.ANCount = binary.BigEndian.Uint16(buf[6:8])
	h.NSCount = binary.BigEndian.Uint16(buf[8:10])
	h.ARCount = binary.BigEndian.Uint16(buf[10:12])

	p.offset = headerSize
}

func (p *Parser) parseQuestion() (Question, error) {
	var q Question

	name, err := p.parseName()
	if err != nil {
		return q, err
	}
	q.Name = name

	if p.offset+4 > len(p.buf) {
		return q, ErrPacketTooShort
	}

	q.Type = binary.BigEndian.Uint16(p.buf[p.offset : p.offset+2])
	q.Class = binary.BigEndian.Uint16(p.buf[p.offset+2 : p.offset+4])
	p.offset += 4

	return q, nil
}

// parseName reads a length-prefixed label sequence terminated by a zero
// byte and rebuilds it as a dot-joined lowercase name with no trailing
// dot. Compression pointers are rejected: queries never legitimately
// require them, and resolving them correctly would mean trusting
// offsets the server has no reason to honour on input.
func (p *Parser) parseName() (string, error) {
	var labels []string
	totalLen := 0

	for {
		if p.offset >= len(p.buf) {
			return "", ErrPacketTooShort
		}

		length := int(p.buf[p.offset])

		if length&0xC0 == 0xC0 {
			return "", ErrInvalidLabel
		}

		if length == 0 {
			p.offset++
			break
		}

		if length > maxLabelLength {
			return "", ErrInvalidLabel
		}

		p.offset++
		if p.offset+length > len(p.buf) {
			return "", ErrPacketTooShort
		}

		label := strings.ToLower(string(p.buf[p.offset : p.offset+length]))
		labels = append(labels, label)
		p.offset += length

		// +1 for the separating dot we will join with below; the first
		// label has none, so the joined name is totalLen-1 octets.
		totalLen += length + 1
		if totalLen-1 > maxDomainLength {
			return "", ErrNameTooLong
		}
	}

	return strings.Join(labels, "."), nil
}

// ExtractID best-effort recovers the transaction ID from a datagram that
// otherwise failed to parse, so the caller can still send a FORMERR. It
// returns ok=false when the datagram is too short even for that.
func ExtractID(buf []byte) (id uint16, ok bool) {
	if len(buf) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(buf[0:2]), true
}

// DebugHex renders the first n bytes of buf as hex for error observations.
func DebugHex(buf []byte, n int) string {
	if n > len(buf) {
		n = len(buf)
	}
	return fmt.Sprintf("% x", buf[:n])
}
