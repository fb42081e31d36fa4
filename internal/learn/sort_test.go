package learn

import (
	"encoding/json"
	"testing"
)

func TestParseSortType(t *testing.T) {
	tests := []struct {
		input  string
		want   SortType
		wantOK bool
	}{
		{"alphabetical", SortAlphabetical, true},
		{"Alphabetical", SortAlphabetical, true},
		{" RANDOM ", SortRandom, true},
		{"shuffle", SortRandom, true},
		{"", SortUnset, true},
		{"by-date", SortUnset, false},
	}

	for _, tt := range tests {
		got, ok := ParseSortType(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSortType(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSortType_StringAndLabel(t *testing.T) {
	if SortAlphabetical.String() != "alphabetical" {
		t.Errorf("String() = %q", SortAlphabetical.String())
	}
	if SortRandom.Label() != "Random" {
		t.Errorf("Label() = %q", SortRandom.Label())
	}
	if SortUnset.Label() != "Box order" {
		t.Errorf("Label() = %q", SortUnset.Label())
	}
	if SortType(9).String() != "SortType(9)" {
		t.Errorf("String() = %q", SortType(9).String())
	}
}

func TestSortType_JSON(t *testing.T) {
	type wrapper struct {
		Sort SortType `json:"sort"`
	}

	data, err := json.Marshal(wrapper{Sort: SortAlphabetical})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"sort":"alphabetical"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"sort":"random"}`), &w); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if w.Sort != SortRandom {
		t.Errorf("Sort = %v, want random", w.Sort)
	}

	// Unknown and null values fall back to box order.
	for _, in := range []string{`{"sort":"by-date"}`, `{"sort":null}`} {
		w = wrapper{Sort: SortRandom}
		if err := json.Unmarshal([]byte(in), &w); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", in, err)
		}
		if w.Sort != SortUnset {
			t.Errorf("Unmarshal(%s) Sort = %v, want unset", in, w.Sort)
		}
	}

	if _, err := json.Marshal(wrapper{Sort: SortType(7)}); err == nil {
		t.Error("Marshal() of invalid sort expected error")
	}
}
