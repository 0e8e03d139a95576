// Package version provides STOMP protocol version parsing, negotiation and
// the WebSocket subprotocol names that announce each version.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported lists the protocol versions offered to brokers, newest first.
var Supported = []string{"1.2", "1.1", "1.0"}

// Default is assumed when a CONNECTED frame carries no version header.
const Default = "1.0"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// AcceptHeader returns the accept-version header value for CONNECT.
func AcceptHeader() string {
	return strings.Join(Supported, ",")
}

// Negotiate validates the version a broker chose in its CONNECTED frame.
// An empty value means Default.
func Negotiate(server string) (ProtocolVersion, error) {
	if server == "" {
		server = Default
	}
	v, err := Parse(server)
	if err != nil {
		return ProtocolVersion{}, err
	}
	for _, s := range Supported {
		if s == v.String() {
			return v, nil
		}
	}
	return ProtocolVersion{}, fmt.Errorf("broker chose unsupported version %s (offered %s)", v, AcceptHeader())
}

// Subprotocol returns the WebSocket subprotocol for v: "v12.stomp".
func Subprotocol(v ProtocolVersion) string {
	return fmt.Sprintf("v%d%d.stomp", v.Major, v.Minor)
}

// FromSubprotocol extracts the version from a WebSocket subprotocol name.
func FromSubprotocol(name string) (ProtocolVersion, error) {
	if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".stomp") {
		return ProtocolVersion{}, fmt.Errorf("not a STOMP subprotocol: %q", name)
	}

	digits := strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".stomp")
	if len(digits) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version in subprotocol %q", name)
	}
	major, err := strconv.ParseUint(digits[:1], 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid major version in subprotocol %q: %w", name, err)
	}
	minor, err := strconv.ParseUint(digits[1:], 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid minor version in subprotocol %q: %w", name, err)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// Subprotocols returns the WebSocket subprotocols for every supported
// version, newest first.
func Subprotocols() []string {
	out := make([]string, 0, len(Supported))
	for _, s := range Supported {
		v, _ := Parse(s)
		out = append(out, Subprotocol(v))
	}
	return out
}
