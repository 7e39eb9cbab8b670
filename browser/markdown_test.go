package browser

import "testing"

func TestIsNeutralStartPageRecognizesBlankAndNewTab(t *testing.T) {
	for _, u := range []string{"about:blank", "chrome://newtab/", "chrome://new-tab-page/"} {
		if !IsNeutralStartPage(u) {
			t.Errorf("expected %q to be a neutral start page", u)
		}
	}
}

func TestIsNeutralStartPageRejectsRealURLs(t *testing.T) {
	if IsNeutralStartPage("https://example.com") {
		t.Fatal("expected a real URL not to be treated as a neutral start page")
	}
}

func TestIsSparseFlagsShortText(t *testing.T) {
	html := make([]byte, 5000)
	for i := range html {
		html[i] = 'a'
	}
	if !isSparse("too short", string(html)) {
		t.Fatal("expected short text against large HTML to be sparse")
	}
}

func TestIsSparseAllowsDenseText(t *testing.T) {
	text := make([]byte, 900)
	for i := range text {
		text[i] = 'a'
	}
	html := make([]byte, 1000)
	for i := range html {
		html[i] = 'a'
	}
	if isSparse(string(text), string(html)) {
		t.Fatal("expected text close to HTML size not to be sparse")
	}
}

func TestIsSparseHandlesEmptyHTML(t *testing.T) {
	if isSparse("", "") {
		t.Fatal("expected empty HTML to never be reported as sparse")
	}
}
