package core

import "testing"

func TestMergeEventActions_UnionAndPrecedence(t *testing.T) {
	transfer := "researcher"
	escalate := true
	skip := true

	a := EventActions{
		StateDelta:    map[string]any{"a": 1, "shared": "first"},
		ArtifactDelta: map[string]int{"report": 1},
	}
	b := EventActions{
		StateDelta:      map[string]any{"b": 2, "shared": "second"},
		TransferToAgent: &transfer,
	}
	c := EventActions{
		Escalate:          &escalate,
		SkipSummarization: &skip,
		ArtifactDelta:     map[string]int{"report": 2},
	}

	merged := MergeEventActions(a, b, c)

	if merged.StateDelta["a"].(int) != 1 || merged.StateDelta["b"].(int) != 2 {
		t.Fatalf("state delta union incomplete: %+v", merged.StateDelta)
	}
	if merged.StateDelta["shared"].(string) != "second" {
		t.Fatalf("later-produced delta should win on conflict, got %v", merged.StateDelta["shared"])
	}
	if merged.ArtifactDelta["report"] != 2 {
		t.Fatalf("later artifact version should win, got %d", merged.ArtifactDelta["report"])
	}
	if merged.TransferToAgent == nil || *merged.TransferToAgent != "researcher" {
		t.Fatalf("transfer should survive merge: %+v", merged.TransferToAgent)
	}
	if merged.Escalate == nil || !*merged.Escalate {
		t.Fatal("escalate should survive merge")
	}
	if merged.SkipSummarization == nil || !*merged.SkipSummarization {
		t.Fatal("skip summarization should survive merge")
	}
}

func TestMergeEventActions_SourcesUntouched(t *testing.T) {
	a := EventActions{StateDelta: map[string]any{"a": 1}}
	b := EventActions{StateDelta: map[string]any{"a": 2}}

	merged := MergeEventActions(a, b)
	merged.StateDelta["a"] = 99

	if a.StateDelta["a"].(int) != 1 || b.StateDelta["a"].(int) != 2 {
		t.Fatalf("merge must not alias source maps: a=%v b=%v", a.StateDelta, b.StateDelta)
	}
}

func TestMergeEventActions_Empty(t *testing.T) {
	merged := MergeEventActions()
	if !merged.IsEmpty() {
		t.Fatalf("merge of nothing should be empty: %+v", merged)
	}

	merged = MergeEventActions(EventActions{}, EventActions{})
	if !merged.IsEmpty() {
		t.Fatalf("merge of empties should be empty: %+v", merged)
	}
}
