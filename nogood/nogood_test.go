package nogood

import (
	"testing"

	"github.com/kthuillier/merrinasp/core"
)

// Scenario (b): a: &sum{x} >= 3, b: &sum{x} <= 1, no conditions.
// Expected nogood: {+sid(a), +sid(b)}.
func TestSynthesizeExistentialInfeasiblePair(t *testing.T) {
	rows := map[core.CID]RowInfo{
		1: {SID: 100},
		2: {SID: 101},
	}
	conds := map[core.CondID]ConditionInfo{}

	ng, err := SynthesizeExistential([]core.CID{1, 2}, rows, conds)
	if err != nil {
		t.Fatalf("SynthesizeExistential() error = %v", err)
	}
	want := Nogood{{SID: 100, Sign: true}, {SID: 101, Sign: true}}
	if !ng.Equal(want) {
		t.Errorf("SynthesizeExistential() = %v, want %v", ng, want)
	}
}

func TestSynthesizeExistentialNegativeCIDSkipsConditions(t *testing.T) {
	rows := map[core.CID]RowInfo{
		-1: {SID: 100, Negative: true, Conditions: []core.CondID{1}},
	}
	conds := map[core.CondID]ConditionInfo{
		1: {SID: 200, True: true},
	}

	ng, err := SynthesizeExistential([]core.CID{-1}, rows, conds)
	if err != nil {
		t.Fatalf("SynthesizeExistential() error = %v", err)
	}
	want := Nogood{{SID: 100, Sign: true}}
	if !ng.Equal(want) {
		t.Errorf("SynthesizeExistential() = %v, want only the head literal %v", ng, want)
	}
}

func TestSynthesizeExistentialIncludesConditionSigns(t *testing.T) {
	rows := map[core.CID]RowInfo{
		1: {SID: 100, Conditions: []core.CondID{1, 2}},
	}
	conds := map[core.CondID]ConditionInfo{
		1: {SID: 200, True: true},
		2: {SID: 201, True: false},
	}

	ng, err := SynthesizeExistential([]core.CID{1}, rows, conds)
	if err != nil {
		t.Fatalf("SynthesizeExistential() error = %v", err)
	}
	want := Nogood{
		{SID: 100, Sign: true},
		{SID: 200, Sign: true},
		{SID: 201, Sign: false},
	}
	if !ng.Equal(want) {
		t.Errorf("SynthesizeExistential() = %v, want %v", ng, want)
	}
}

// Scenario (d): violating assert q with one condition true, one
// propagated dom p, and one optimum-core sum u.
func TestSynthesizeUniversalConflict(t *testing.T) {
	rows := map[core.CID]RowInfo{
		3: {SID: 300, Conditions: []core.CondID{1}},
		1: {SID: 301, Conditions: []core.CondID{2}},
		4: {SID: 302},
	}
	conds := map[core.CondID]ConditionInfo{
		1: {SID: 400, True: true},
		2: {SID: 401, True: true},
	}

	ng, err := SynthesizeUniversal(3, []core.CID{1}, []core.CID{4}, rows, conds)
	if err != nil {
		t.Fatalf("SynthesizeUniversal() error = %v", err)
	}
	want := Nogood{
		{SID: 300, Sign: true},
		{SID: 400, Sign: true},
		{SID: 401, Sign: true},
		{SID: 302, Sign: false},
	}
	if !ng.Equal(want) {
		t.Errorf("SynthesizeUniversal() = %v, want %v", ng, want)
	}
}

func TestSynthesizeExistentialMissingRowIsProgrammingError(t *testing.T) {
	_, err := SynthesizeExistential([]core.CID{99}, map[core.CID]RowInfo{}, map[core.CondID]ConditionInfo{})
	if err == nil {
		t.Fatal("expected a programming error for a core cid absent from the row table")
	}
}

// Testable property 5: determinism modulo literal ordering.
func TestDedupIsOrderInsensitive(t *testing.T) {
	a := Nogood{{SID: 1, Sign: true}, {SID: 2, Sign: false}}
	b := Nogood{{SID: 2, Sign: false}, {SID: 1, Sign: true}}
	if !a.Equal(b) {
		t.Errorf("Equal() = false for permutations of the same nogood")
	}
}

func TestDedupRemovesDuplicates(t *testing.T) {
	n := Nogood{{SID: 1, Sign: true}, {SID: 1, Sign: true}, {SID: 2, Sign: false}}
	if len(n.Dedup()) != 2 {
		t.Errorf("Dedup() = %v, want 2 unique literals", n.Dedup())
	}
}
