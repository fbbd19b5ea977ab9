package packet

import (
	"bytes"
	"encoding/binary"
	"net"
	"strings"
)

// BuildResponse assembles a response datagram for a parsed query. answer
// may be nil, in which case ANCOUNT is zero and no answer section is
// written. Authority and additional sections are always empty in v1.
func BuildResponse(q *Query, answer *Answer, rcode uint8) []byte {
	var buf bytes.Buffer
	buf.Grow(512)

	ancount := uint16(0)
	if answer != nil {
		ancount = 1
	}
	writeHeader(&buf, q, rcode, ancount)
	writeQuestion(&buf, q.Question)

	if answer != nil {
		writeAnswer(&buf, answer)
	}

	return buf.Bytes()
}

// BuildFormErr assembles a best-effort FORMERR response when the
// question could not be parsed. Only the ID is known to be good; the
// question section is left empty.
func BuildFormErr(id uint16) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize)

	binary.Write(&buf, binary.BigEndian, id)
	flags := uint16(0x8000) | uint16(RcodeFormErr) // QR=1, RCODE=FORMERR
	binary.Write(&buf, binary.BigEndian, flags)
	binary.Write(&buf, binary.BigEndian, uint16(0)) // QDCOUNT
	binary.Write(&buf, binary.BigEndian, uint16(0)) // ANCOUNT
	binary.Write(&buf, binary.BigEndian, uint16(0)) // NSCOUNT
	binary.Write(&buf, binary.BigEndian, uint16(0)) // ARCOUNT

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, q *Query, rcode uint8, ancount uint16) {
	binary.Write(buf, binary.BigEndian, q.Header.ID)

	var flags uint16
	flags |= 0x8000 // QR=1 (response)
	flags |= uint16(q.Header.Opcode&0x0F) << 11
	flags |= 0x0400 // AA=1, answers are authoritative
	if q.Header.RD {
		flags |= 0x0100
	}
	flags |= uint16(rcode & 0x0F)

	binary.Write(buf, binary.BigEndian, flags)
	binary.Write(buf, binary.BigEndian, uint16(1)) // QDCOUNT
	binary.Write(buf, binary.BigEndian, ancount)
	binary.Write(buf, binary.BigEndian, uint16(0)) // NSCOUNT
	binary.Write(buf, binary.BigEndian, uint16(0)) // ARCOUNT
}

func writeQuestion(buf *bytes.Buffer, q Question) {
	writeName(buf, q.Name)
	binary.Write(buf, binary.BigEndian, q.Type)
	binary.Write(buf, binary.BigEndian, q.Class)
}

func writeAnswer(buf *bytes.Buffer, a *Answer) {
	writeName(buf, a.Name)
	binary.Write(buf, binary.BigEndian, a.Type)
	binary.Write(buf, binary.BigEndian, a.Class)
	binary.Write(buf, binary.BigEndian, a.TTL)
	binary.Write(buf, binary.BigEndian, uint16(4)) // RDLENGTH, A records only in v1
	buf.Write(a.IP[:])
}

// writeName encodes a dot-joined name as length-prefixed labels followed
// by a zero terminator. v1 never emits compression: correctness beats
// compactness for datagrams this small.
func writeName(buf *bytes.Buffer, name string) {
	if name == "" {
		buf.WriteByte(0)
		return
	}
	for _, label := range strings.Split(name, ".") {
		buf.WriteByte(byte(len(label)))
		buf.WriteString(label)
	}
	buf.WriteByte(0)
}

// AnswerFromIPv4 builds an Answer carrying a Type A record for ip.
func AnswerFromIPv4(name string, ttl uint32, ip net.IP) (*Answer, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, false
	}
	a := &Answer{
		Name:  name,
		Type:  TypeA,
		Class: ClassINET,
		TTL:   ttl,
	}
	copy(a.IP[:], v4)
	return a, true
}
