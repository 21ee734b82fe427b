package segment

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractSentences_TwoSentences(t *testing.T) {
	res := ExtractSentences("Hello world. How are you?", 0, false)

	want := []string{"Hello world.", "How are you?"}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
	if res.NewIndex != 25 {
		t.Errorf("Expected newIndex 25, got %d", res.NewIndex)
	}
}

func TestExtractSentences_IncompleteTrailing(t *testing.T) {
	res := ExtractSentences("Hello world. This is incomple", 0, false)

	want := []string{"Hello world."}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
	if res.NewIndex != 12 {
		t.Errorf("Expected newIndex 12, got %d", res.NewIndex)
	}
}

func TestExtractSentences_FinalFlush(t *testing.T) {
	text := "Hello world. This is the end"
	res := ExtractSentences(text, 0, true)

	want := []string{"Hello world.", "This is the end"}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
	if res.NewIndex != len(text) {
		t.Errorf("Expected newIndex %d, got %d", len(text), res.NewIndex)
	}
}

func TestExtractSentences_FinalFlushDropsJunkTail(t *testing.T) {
	text := "Done. ..."
	res := ExtractSentences(text, 6, true)

	if len(res.Sentences) != 0 {
		t.Errorf("Expected no sentences, got %v", res.Sentences)
	}
	if res.NewIndex != len(text) {
		t.Errorf("Expected newIndex %d, got %d", len(text), res.NewIndex)
	}
}

func TestExtractSentences_Resumable(t *testing.T) {
	stream := []string{
		"Hi the",
		"Hi there! How",
		"Hi there! How is your day? I hope",
		"Hi there! How is your day? I hope it is great.",
	}

	var all []string
	index := 0
	for _, text := range stream {
		res := ExtractSentences(text, index, false)
		if res.NewIndex < index {
			t.Fatalf("Expected index to be monotonic, went from %d to %d", index, res.NewIndex)
		}
		all = append(all, res.Sentences...)
		index = res.NewIndex
	}

	want := []string{"Hi there!", "How is your day?", "I hope it is great."}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("Expected %v, got %v", want, all)
	}
}

func TestExtractSentences_OnlyReportsAfterIndex(t *testing.T) {
	text := "First one. Second one. Third one."
	res := ExtractSentences(text, 11, false)

	for _, s := range res.Sentences {
		if strings.Index(text[11:], s) < 0 {
			t.Errorf("Sentence %q does not come from the unprocessed suffix", s)
		}
		if s == "First one." {
			t.Error("Expected already processed sentence not to be re-emitted")
		}
	}
	if len(res.Sentences) != 2 {
		t.Errorf("Expected 2 sentences, got %v", res.Sentences)
	}
}

func TestExtractSentences_RepeatCallNoDuplicates(t *testing.T) {
	text := "One. Two."
	first := ExtractSentences(text, 0, false)
	second := ExtractSentences(text, first.NewIndex, false)

	if len(second.Sentences) != 0 {
		t.Errorf("Expected no sentences on repeat call, got %v", second.Sentences)
	}
	if second.NewIndex != first.NewIndex {
		t.Errorf("Expected index %d, got %d", first.NewIndex, second.NewIndex)
	}
}

func TestExtractSentences_JunkFiltered(t *testing.T) {
	res := ExtractSentences("... Hello!", 0, false)

	want := []string{"Hello!"}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
	if res.NewIndex != 10 {
		t.Errorf("Expected newIndex 10, got %d", res.NewIndex)
	}
}

func TestExtractSentences_Cyrillic(t *testing.T) {
	text := "Привет мир. Как дела?"
	res := ExtractSentences(text, 0, false)

	want := []string{"Привет мир.", "Как дела?"}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
	if res.NewIndex != len(text) {
		t.Errorf("Expected newIndex %d, got %d", len(text), res.NewIndex)
	}
}

func TestExtractSentences_InnerTerminatorsStayInside(t *testing.T) {
	res := ExtractSentences("It costs 3.5 euros.Really cheap. Next", 0, false)

	want := []string{"It costs 3.5 euros.Really cheap."}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
}

func TestExtractSentences_MultipleTerminators(t *testing.T) {
	res := ExtractSentences("Really?! Yes...\nOk.", 0, false)

	want := []string{"Really?!", "Yes...", "Ok."}
	if !reflect.DeepEqual(res.Sentences, want) {
		t.Errorf("Expected %v, got %v", want, res.Sentences)
	}
}

func TestExtractSentences_IndexOutOfRange(t *testing.T) {
	res := ExtractSentences("Short.", 100, false)
	if res.NewIndex != 6 {
		t.Errorf("Expected index clamped to 6, got %d", res.NewIndex)
	}
	if len(res.Sentences) != 0 {
		t.Errorf("Expected no sentences, got %v", res.Sentences)
	}
}

func TestExtractSentences_Deterministic(t *testing.T) {
	text := "A cat sat. A dog ran! Why?"
	a := ExtractSentences(text, 0, false)
	b := ExtractSentences(text, 0, false)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical results, got %v and %v", a, b)
	}
}

func TestIsJunk(t *testing.T) {
	cases := map[string]bool{
		"":      true,
		"a":     true,
		"...":   true,
		" ?! ":  true,
		"Hi":    false,
		"42":    false,
		"Да.":   false,
		"こんにちは": false,
	}
	for input, want := range cases {
		if got := IsJunk(input); got != want {
			t.Errorf("IsJunk(%q): expected %v, got %v", input, want, got)
		}
	}
}
