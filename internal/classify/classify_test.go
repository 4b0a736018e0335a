package classify

import "testing"

func TestClassifyEmptyInput(t *testing.T) {
	if got := Classify(""); got != nil {
		t.Fatalf("Classify(\"\") = %v, want nil", got)
	}
	if got := Classify("   \n\t"); got != nil {
		t.Fatalf("Classify(whitespace) = %v, want nil", got)
	}
}

func TestClassifyCleanSentence(t *testing.T) {
	if got := Classify("I went to the market yesterday."); got != nil {
		t.Fatalf("clean sentence produced matches: %v", got)
	}
}

func TestClassifyTenseAuxiliary(t *testing.T) {
	matches := Classify("I am go market yesterday")
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want exactly one", matches)
	}
	m := matches[0]
	if m.Category != CategoryTense {
		t.Fatalf("Category = %q, want %q", m.Category, CategoryTense)
	}
	if m.Fragment != "am go" {
		t.Fatalf("Fragment = %q, want %q", m.Fragment, "am go")
	}
	if m.Suggestion != "went" {
		t.Fatalf("Suggestion = %q, want %q", m.Suggestion, "went")
	}
}

func TestClassifyAgreement(t *testing.T) {
	matches := Classify("She go to school every day")
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want exactly one", matches)
	}
	if matches[0].Category != CategoryAgreement {
		t.Fatalf("Category = %q, want %q", matches[0].Category, CategoryAgreement)
	}
	if matches[0].Suggestion != "she goes" {
		t.Fatalf("Suggestion = %q, want %q", matches[0].Suggestion, "she goes")
	}
}

func TestClassifyArticle(t *testing.T) {
	matches := Classify("I ate a apple")
	if len(matches) != 1 || matches[0].Category != CategoryArticle {
		t.Fatalf("matches = %v, want one article match", matches)
	}
	if matches[0].Suggestion != "an apple" {
		t.Fatalf("Suggestion = %q, want %q", matches[0].Suggestion, "an apple")
	}
}

func TestClassifyPreposition(t *testing.T) {
	matches := Classify("He is married with a doctor and good in english")
	var cats []Category
	for _, m := range matches {
		cats = append(cats, m.Category)
	}
	found := 0
	for _, c := range cats {
		if c == CategoryPreposition {
			found++
		}
	}
	if found != 2 {
		t.Fatalf("preposition matches = %d (%v), want 2", found, matches)
	}
}

func TestClassifyLongestFragmentWinsOverlap(t *testing.T) {
	// "yesterday i go" (tense, long) overlaps nothing else here, but "he go"
	// (agreement) and "yesterday he go" (tense) overlap: the longer tense
	// fragment must win.
	matches := Classify("yesterday he go home")
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want exactly one", matches)
	}
	if matches[0].Category != CategoryTense {
		t.Fatalf("Category = %q, want %q (longest fragment wins)", matches[0].Category, CategoryTense)
	}
}

func TestClassifyResultsInUtteranceOrder(t *testing.T) {
	matches := Classify("learn me english, I am go there with a umbrella")
	if len(matches) < 2 {
		t.Fatalf("matches = %v, want at least 2", matches)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Offset < matches[i-1].Offset {
			t.Fatalf("matches out of order: %v", matches)
		}
	}
}

func TestClassifyDoubleComparative(t *testing.T) {
	matches := Classify("this is more better")
	if len(matches) != 1 || matches[0].Category != CategoryVocabulary {
		t.Fatalf("matches = %v, want one vocabulary match", matches)
	}
	if matches[0].Suggestion != "better" {
		t.Fatalf("Suggestion = %q, want %q", matches[0].Suggestion, "better")
	}
}
