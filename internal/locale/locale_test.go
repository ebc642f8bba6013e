package locale

import "testing"

func TestPick(t *testing.T) {
	tests := []struct {
		name      string
		l         Locale
		primary   string
		secondary string
		want      string
	}{
		{"zh empty secondary falls back", Chinese, "X", "", "X"},
		{"zh secondary wins", Chinese, "X", "Y", "Y"},
		{"en ignores secondary", English, "X", "Y", "X"},
		{"both empty", Chinese, "", "", ""},
		{"primary empty zh", Chinese, "", "Y", "Y"},
		{"primary empty en", English, "", "Y", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pick(tt.l, tt.primary, tt.secondary); got != tt.want {
				t.Errorf("Pick = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Locale{"en": English, "ZH": Chinese, " zh-CN ": Chinese, "english": English} {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := Parse("fr"); err == nil {
		t.Error("Parse(fr) should fail")
	}
}

func TestToggle(t *testing.T) {
	if English.Toggle() != Chinese || Chinese.Toggle() != English {
		t.Error("Toggle")
	}
}

func TestLabel(t *testing.T) {
	if got := Chinese.Label("reports.title"); got != "近期报告" {
		t.Errorf("zh = %q", got)
	}
	if got := English.Label("reports.title"); got != "Recent reports" {
		t.Errorf("en = %q", got)
	}
	if got := English.Label("no.such.key"); got != "no.such.key" {
		t.Errorf("missing = %q", got)
	}
	if got := English.Labelf("reports.deleted", "abc"); got != "Report abc deleted." {
		t.Errorf("Labelf = %q", got)
	}
}

func TestCatalogComplete(t *testing.T) {
	for key, entry := range catalog {
		if entry[0] == "" {
			t.Errorf("%s has no English text", key)
		}
	}
}
