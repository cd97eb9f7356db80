// Package compat holds test-only helpers that cross-check this
// module's wire codec against github.com/miekg/dns, an independent,
// widely-deployed implementation of the same RFC 1035 wire format.
// Agreement between the two on the same input bytes is strong evidence
// internal/packet's encoder/decoder is spec-compliant rather than only
// self-consistent.
package compat

import "github.com/miekg/dns"

// Unpack decodes wire-format bytes with miekg/dns, for comparison
// against internal/packet.Packet.Parse on the same bytes.
func Unpack(wire []byte) (*dns.Msg, error) {
	m := new(dns.Msg)
	if err := m.Unpack(wire); err != nil {
		return nil, err
	}
	return m, nil
}
