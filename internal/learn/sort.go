package learn

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"
)

// SortType is the ordering applied to the cards drawn for a pass.
type SortType int

const (
	SortUnset        SortType = iota // Box order, no reordering.
	SortAlphabetical                 // Ascending by card name, byte order.
	SortRandom                       // Fresh shuffle per opened pass.
)

var (
	sortNames  = [...]string{SortUnset: "", SortAlphabetical: "alphabetical", SortRandom: "random"}
	sortLabels = [...]string{SortUnset: "Box order", SortAlphabetical: "Alphabetical", SortRandom: "Random"}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = SortType(0)
	_ json.Marshaler           = SortType(0)
	_ json.Unmarshaler         = (*SortType)(nil)
	_ encoding.TextMarshaler   = SortType(0)
	_ encoding.TextUnmarshaler = (*SortType)(nil)
)

func (s SortType) isValid() bool {
	return s >= SortUnset && s <= SortRandom
}

// ParseSortType parses a sort name or display label, case-insensitively.
// Unrecognized input returns SortUnset and false.
func ParseSortType(s string) (SortType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return SortUnset, true
	case "alphabetical", "alpha", "abc":
		return SortAlphabetical, true
	case "random", "shuffle":
		return SortRandom, true
	}
	return SortUnset, false
}

// String returns the stored name ("", "alphabetical", "random").
// For invalid values it returns "SortType(n)".
func (s SortType) String() string {
	if s.isValid() {
		return sortNames[s]
	}
	return fmt.Sprintf("SortType(%d)", int(s))
}

// Label returns the presentation label, independent of the stored name.
func (s SortType) Label() string {
	if s.isValid() {
		return sortLabels[s]
	}
	return s.String()
}

// MarshalText implements encoding.TextMarshaler.
func (s SortType) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("learn: invalid sort type: %d", int(s))
	}
	return []byte(sortNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unrecognized names decode to SortUnset rather than failing.
func (s *SortType) UnmarshalText(text []byte) error {
	*s, _ = ParseSortType(string(text))
	return nil
}

// MarshalJSON implements json.Marshaler. SortType serializes as a JSON string.
func (s SortType) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string or null.
func (s *SortType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SortUnset
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("learn: invalid sort type: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}
