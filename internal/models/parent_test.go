package models

import "testing"

func TestParseParentRefRoundTrip(t *testing.T) {
	refs := []ParentRef{
		QuestionRef(1),
		QuestionRef(42),
		SubQuestionRef(907),
	}
	for _, ref := range refs {
		parsed, err := ParseParentRef(ref.String())
		if err != nil {
			t.Errorf("ParseParentRef(%q): %v", ref.String(), err)
			continue
		}
		if parsed != ref {
			t.Errorf("round trip %q → %+v, want %+v", ref.String(), parsed, ref)
		}
	}
}

func TestParseParentRefRejects(t *testing.T) {
	bad := []string{
		"",
		"question",
		"exam/3",
		"question/0",
		"question/-2",
		"sub_question/abc",
	}
	for _, s := range bad {
		if _, err := ParseParentRef(s); err == nil {
			t.Errorf("ParseParentRef(%q) accepted invalid input", s)
		}
	}
}

func TestParentRefValid(t *testing.T) {
	if !QuestionRef(5).Valid() {
		t.Error("question/5 should be valid")
	}
	if (ParentRef{Kind: "exam", ID: 5}).Valid() {
		t.Error("unknown kind should be invalid")
	}
	if (ParentRef{Kind: ParentQuestion}).Valid() {
		t.Error("zero id should be invalid")
	}
}
