package indexsync

import (
	"reflect"
	"testing"
)

func TestStateHashDeterminism(t *testing.T) {
	state := State{
		"idx_documents_name": "CREATE INDEX idx_documents_name ON public.documents USING btree (((content ->> 'name'::text)))",
		"idx_documents_age":  "CREATE INDEX idx_documents_age ON public.documents USING btree ((((content ->> 'age'::text))::numeric))",
	}

	first, err := StateHash(state)
	if err != nil {
		t.Fatalf("StateHash error: %v", err)
	}
	second, err := StateHash(state)
	if err != nil {
		t.Fatalf("StateHash error: %v", err)
	}
	if first != second {
		t.Error("StateHash must be deterministic")
	}
}

func TestStateHashEmpty(t *testing.T) {
	first, err := StateHash(nil)
	if err != nil {
		t.Fatalf("StateHash error: %v", err)
	}
	second, err := StateHash(State{})
	if err != nil {
		t.Fatalf("StateHash error: %v", err)
	}
	if first != second {
		t.Error("nil and empty states must hash equal")
	}
}

func TestStateHashSensitivity(t *testing.T) {
	base := State{"idx_a": "def-a"}
	renamed := State{"idx_b": "def-a"}
	modified := State{"idx_a": "def-b"}

	baseHash, _ := StateHash(base)
	renamedHash, _ := StateHash(renamed)
	modifiedHash, _ := StateHash(modified)

	if baseHash == renamedHash {
		t.Error("hash must depend on index names")
	}
	if baseHash == modifiedHash {
		t.Error("hash must depend on definitions")
	}
}

func TestCompareMatch(t *testing.T) {
	state := State{"idx_a": "def-a", "idx_b": "def-b"}

	drift, err := Compare(state, State{"idx_b": "def-b", "idx_a": "def-a"})
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}
	if !drift.Match || drift.HasDifferences() {
		t.Errorf("identical states should match: %+v", drift)
	}
}

func TestCompareDifferences(t *testing.T) {
	declared := State{
		"idx_a": "def-a",
		"idx_b": "def-b",
		"idx_c": "def-c",
	}
	observed := State{
		"idx_a": "def-a",
		"idx_b": "def-b-changed",
		"idx_d": "def-d",
	}

	drift, err := Compare(declared, observed)
	if err != nil {
		t.Fatalf("Compare error: %v", err)
	}

	if drift.Match {
		t.Fatal("differing states must not match")
	}
	if !reflect.DeepEqual(drift.Missing, []string{"idx_c"}) {
		t.Errorf("Missing = %v", drift.Missing)
	}
	if !reflect.DeepEqual(drift.Extra, []string{"idx_d"}) {
		t.Errorf("Extra = %v", drift.Extra)
	}
	if !reflect.DeepEqual(drift.Modified, []string{"idx_b"}) {
		t.Errorf("Modified = %v", drift.Modified)
	}
	if !drift.HasDifferences() {
		t.Error("HasDifferences should report true")
	}
}
