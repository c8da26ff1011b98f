package sql

import "testing"

func scanAll(t *testing.T, s string) []Token {
	t.Helper()
	tok := NewTokenizer(s)
	var out []Token
	for {
		tk, err := tok.Next()
		if err != nil {
			t.Fatalf("tokenizing %q: %v", s, err)
		}
		if tk.Kind == TokEOF {
			return out
		}
		out = append(out, tk)
	}
}

func TestTokenizerFoldsIdentifiersNotStrings(t *testing.T) {
	toks := scanAll(t, "SELECT * FROM T WHERE B = 'MixedCase'")
	if toks[0].Text != "select" || toks[3].Text != "t" {
		t.Fatalf("identifiers/keywords should fold to lowercase: %+v", toks)
	}
	var foundString bool
	for _, tk := range toks {
		if tk.Kind == TokString {
			foundString = true
			if tk.Text != "MixedCase" {
				t.Fatalf("string literal was folded: %q", tk.Text)
			}
		}
	}
	if !foundString {
		t.Fatal("expected a string literal token")
	}
}

func TestTokenizerStrictNumericLiterals(t *testing.T) {
	// Per the strict tokenization rule, a sign is consumed as part of any
	// number it immediately precedes: "1+2" yields the two numbers 1 and
	// +2, never a three-token 1 / + / 2 split (there is no '+' operator in
	// this dialect's grammar anyway).
	toks := scanAll(t, "1+2")
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens for \"1+2\", got %+v", toks)
	}
	if toks[0].Kind != TokInt || toks[0].Int != 1 {
		t.Fatalf("first token should be INT 1, got %+v", toks[0])
	}
	if toks[1].Kind != TokInt || toks[1].Int != 2 {
		t.Fatalf("second token should be INT 2, got %+v", toks[1])
	}

	toks = scanAll(t, "-3.5")
	if len(toks) != 1 || toks[0].Kind != TokFloat || toks[0].Float != -3.5 {
		t.Fatalf("expected a single FLOAT -3.5, got %+v", toks)
	}
}

func TestTokenizerOperators(t *testing.T) {
	toks := scanAll(t, "<= >= <> < > =")
	want := []string{"<=", ">=", "<>", "<", ">", "="}
	for i, w := range want {
		if toks[i].Text != w {
			t.Fatalf("token %d = %q, want %q", i, toks[i].Text, w)
		}
	}
}
