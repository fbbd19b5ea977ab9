package packet

import (
	"encoding/binary"
	"net"
	"testing"
)

func TestBuildResponseWithAnswer(t *testing.T) {
	q := &Query{
		Header: Header{ID: 0x1234, Opcode: 0, RD: true},
		Question: Question{
			Name:  "example.com",
			Type:  TypeA,
			Class: ClassINET,
		},
	}

	answer, ok := AnswerFromIPv4("example.com", 300, net.IPv4(192, 0, 2, 1))
	if !ok {
		t.Fatal("AnswerFromIPv4 returned ok=false for a valid IPv4 address")
	}

	out := BuildResponse(q, answer, RcodeNoError)

	if got := binary.BigEndian.Uint16(out[0:2]); got != 0x1234 {
		t.Errorf("ID = %x, want 0x1234", got)
	}

	flags := binary.BigEndian.Uint16(out[2:4])
	if flags&0x8000 == 0 {
		t.Error("QR bit should be set")
	}
	if flags&0x0400 == 0 {
		t.Error("AA bit should be set")
	}
	if flags&0x0100 == 0 {
		t.Error("RD bit should be echoed back as set")
	}
	if flags&0x0F != uint16(RcodeNoError) {
		t.Errorf("RCODE = %d, want %d", flags&0x0F, RcodeNoError)
	}

	if qd := binary.BigEndian.Uint16(out[4:6]); qd != 1 {
		t.Errorf("QDCOUNT = %d, want 1", qd)
	}
	if an := binary.BigEndian.Uint16(out[6:8]); an != 1 {
		t.Errorf("ANCOUNT = %d, want 1", an)
	}

	p := NewParser(out)
	parsed, err := p.Parse()
	if err != nil {
		t.Fatalf("round-trip Parse() error: %v", err)
	}
	if parsed.Question.Name != "example.com" {
		t.Errorf("round-tripped Name = %q, want %q", parsed.Question.Name, "example.com")
	}

	wantIP := []byte{192, 0, 2, 1}
	gotIP := out[len(out)-4:]
	for i := range wantIP {
		if gotIP[i] != wantIP[i] {
			t.Errorf("RDATA[%d] = %d, want %d", i, gotIP[i], wantIP[i])
		}
	}
}

func TestBuildResponseNXDomain(t *testing.T) {
	q := &Query{
		Header: Header{ID: 0xABCD, RD: true},
		Question: Question{
			Name:  "nope.example.com",
			Type:  TypeA,
			Class: ClassINET,
		},
	}

	out := BuildResponse(q, nil, RcodeNXDomain)

	flags := binary.BigEndian.Uint16(out[2:4])
	if flags&0x0F != uint16(RcodeNXDomain) {
		t.Errorf("RCODE = %d, want %d (NXDOMAIN)", flags&0x0F, RcodeNXDomain)
	}
	if an := binary.BigEndian.Uint16(out[6:8]); an != 0 {
		t.Errorf("ANCOUNT = %d, want 0", an)
	}

	// No answer section: the datagram ends right after the question.
	wantLen := headerSize + len("nope.example.com") + 1 /* leading length octet; each dot becomes one */ + 1 /* terminator */ + 4
	if len(out) != wantLen {
		t.Errorf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestBuildFormErr(t *testing.T) {
	out := BuildFormErr(0x55AA)

	if len(out) != headerSize {
		t.Fatalf("len(out) = %d, want %d", len(out), headerSize)
	}
	if got := binary.BigEndian.Uint16(out[0:2]); got != 0x55AA {
		t.Errorf("ID = %x, want 0x55AA", got)
	}
	flags := binary.BigEndian.Uint16(out[2:4])
	if flags&0x8000 == 0 {
		t.Error("QR bit should be set")
	}
	if flags&0x0F != uint16(RcodeFormErr) {
		t.Errorf("RCODE = %d, want %d (FORMERR)", flags&0x0F, RcodeFormErr)
	}
}

func TestAnswerFromIPv4RejectsIPv6(t *testing.T) {
	_, ok := AnswerFromIPv4("example.com", 300, net.ParseIP("2001:db8::1"))
	if ok {
		t.Error("expected ok=false for an IPv6 address")
	}
}

func BenchmarkBuildResponse(b *testing.B) {
	q := &Query{
		Header:   Header{ID: 0x1234, RD: true},
		Question: Question{Name: "example.com", Type: TypeA, Class: ClassINET},
	}
	answer, _ := AnswerFromIPv4("example.com", 300, net.IPv4(192, 0, 2, 1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BuildResponse(q, answer, RcodeNoError)
	}
}
