package engram

import "testing"

func TestNotePath(t *testing.T) {
	if got := notePath("groceries"); got != "engrams/groceries.engram" {
		t.Errorf("notePath: got %q", got)
	}
}

func TestTitleOf(t *testing.T) {
	cases := []struct {
		name  string
		title string
		ok    bool
	}{
		{"groceries.engram", "groceries", true},
		{"a.engram", "a", true},
		{"readme.md", "", false},
		{".engram", "", false},
		{"no-extension", "", false},
	}
	for _, c := range cases {
		title, ok := titleOf(c.name)
		if ok != c.ok || title != c.title {
			t.Errorf("titleOf(%q) = (%q, %v), want (%q, %v)", c.name, title, ok, c.title, c.ok)
		}
	}
}
