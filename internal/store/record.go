// Package store implements the concurrent, file-backed record index
// shared by the UDP server and the HTTP control API.
package store

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/dnsscience/authdnsd/internal/packet"
)

// Record is the unit of data the server serves and persists.
type Record struct {
	Name       string `json:"name"`
	IP         string `json:"ip"`
	TTL        uint32 `json:"ttl"`
	RecordType string `json:"record_type"`
	Class      string `json:"class"`
	Value      string `json:"value,omitempty"`
}

// recognisedTypes is the set of record types the store accepts, per the
// backing-file format in §6 of the wire contract this module answers.
var recognisedTypes = map[string]bool{
	"A":     true,
	"AAAA":  true,
	"CNAME": true,
	"MX":    true,
	"NS":    true,
	"TXT":   true,
	"PTR":   true,
	"SOA":   true,
}

const maxTTL = 1<<31 - 1 // 2^31 - 1

// Canonicalize lowercases a name and strips a trailing dot, the store's
// key form.
func Canonicalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".")
}

// Validate checks a record against the upsert contract: a non-empty,
// DNS-legal name, a parseable IP for A records, a TTL within range, and
// a recognised record type. class defaults to IN when unset.
func (r *Record) Validate() error {
	name := Canonicalize(r.Name)
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("name %q has an empty label", r.Name)
		}
		for _, c := range label {
			if !isLegalLabelRune(c) {
				return fmt.Errorf("name %q contains an illegal character %q", r.Name, c)
			}
		}
	}

	if r.RecordType == "" {
		r.RecordType = "A"
	}
	r.RecordType = strings.ToUpper(r.RecordType)
	if !recognisedTypes[r.RecordType] {
		return fmt.Errorf("unrecognised record_type %q", r.RecordType)
	}

	if r.Class == "" {
		r.Class = "IN"
	}
	r.Class = strings.ToUpper(r.Class)

	if r.TTL > maxTTL {
		return fmt.Errorf("ttl %d exceeds maximum of %d", r.TTL, maxTTL)
	}

	if r.RecordType == "A" {
		if net.ParseIP(r.IP) == nil || net.ParseIP(r.IP).To4() == nil {
			return fmt.Errorf("ip %q is not a valid IPv4 address", r.IP)
		}
	}

	r.Name = name
	return nil
}

func isLegalLabelRune(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-':
		return true
	}
	return false
}

// wireType maps a stored record type string to its wire TYPE value. Only
// A is currently answerable by the codec; see builder.go.
func wireType(recordType string) (uint16, bool) {
	switch recordType {
	case "A":
		return packet.TypeA, true
	case "NS":
		return packet.TypeNS, true
	case "CNAME":
		return packet.TypeCNAME, true
	case "SOA":
		return packet.TypeSOA, true
	case "PTR":
		return packet.TypePTR, true
	case "MX":
		return packet.TypeMX, true
	case "TXT":
		return packet.TypeTXT, true
	case "AAAA":
		return packet.TypeAAAA, true
	default:
		return 0, false
	}
}

// ToAnswer builds the wire Answer for this record when queried with
// qtype, or reports ok=false when the codec cannot encode this record's
// RDATA, or when qtype doesn't match the stored type — both cases are
// treated identically by the caller: NXDOMAIN, per the decision that a
// stored record answers only the QTYPE it was actually stored as.
func (r Record) ToAnswer(qtype uint16) (*packet.Answer, bool) {
	t, ok := wireType(r.RecordType)
	if !ok || t != qtype {
		return nil, false
	}
	if r.RecordType != "A" {
		// Only A RDATA is encodable in v1; other types round-trip
		// through storage and the control API but cannot be answered
		// on the wire yet.
		return nil, false
	}
	ip := net.ParseIP(r.IP)
	if ip == nil {
		return nil, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, false
	}

	a := &packet.Answer{
		Name:  r.Name,
		Type:  t,
		Class: packet.ClassINET,
		TTL:   r.TTL,
	}
	copy(a.IP[:], v4)
	return a, true
}

// toLine renders a record as one line of the colon-separated backing
// file format: name:ip:ttl:type:class.
func (r Record) toLine() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", r.Name, r.IP, r.TTL, r.RecordType, r.Class)
}

// parseLine parses one backing-file line into a Record. Returns an error
// for malformed lines; the caller decides whether to skip and log.
func parseLine(line string) (Record, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 5 {
		return Record{}, fmt.Errorf("expected 5 colon-separated fields, got %d", len(fields))
	}

	ttl, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid ttl %q: %w", fields[2], err)
	}

	r := Record{
		Name:       fields[0],
		IP:         fields[1],
		TTL:        uint32(ttl),
		RecordType: fields[3],
		Class:      fields[4],
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
