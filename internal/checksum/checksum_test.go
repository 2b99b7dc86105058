package checksum

import "testing"

func TestContent_StableForEqualValues(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	a := Content(payload{Title: "T", Body: "B"})
	b := Content(payload{Title: "T", Body: "B"})
	if a != b {
		t.Errorf("hashes differ for equal values: %s vs %s", a, b)
	}
}

func TestContent_DiffersForDifferentValues(t *testing.T) {
	if Content("one") == Content("two") {
		t.Error("hashes collide for trivially different values")
	}
}

func TestContent_NilInput(t *testing.T) {
	if Content(nil) == "" {
		t.Error("nil input must still hash")
	}
}
