package render

import (
	"strings"
	"testing"
)

func TestDocumentInlinesStylesheetAndSubstitutes(t *testing.T) {
	markup := "<html><head></head><body>{{name}}</body></html>"
	css := "body{color:red}"

	got := Document(markup, css, Record{"name": "Ada Lovelace"})
	want := "<html><head><style>body{color:red}</style></head><body>Ada Lovelace</body></html>"
	if got != want {
		t.Fatalf("unexpected document:\n got: %s\nwant: %s", got, want)
	}
}

func TestDocumentEmptyRecordSubstitutesEmpty(t *testing.T) {
	markup := "<html><head></head><body>{{name}}</body></html>"
	css := "body{color:red}"

	got := Document(markup, css, Record{})
	want := "<html><head><style>body{color:red}</style></head><body></body></html>"
	if got != want {
		t.Fatalf("unexpected document:\n got: %s\nwant: %s", got, want)
	}
}

func TestDocumentIsDeterministic(t *testing.T) {
	markup := "<html><head></head><body>{{name}} / {{email}}</body></html>"
	rec := Record{"name": "Ada", "email": "ada@example.com"}

	first := Document(markup, "p{margin:0}", rec)
	second := Document(markup, "p{margin:0}", rec)
	if first != second {
		t.Fatalf("two renders with identical inputs differ:\n%s\n%s", first, second)
	}
}

func TestSubstituteRepeatedKey(t *testing.T) {
	markup := "<p>{{email}}</p><footer>{{email}}</footer>"
	got := Substitute(markup, Record{"email": "a@b.com"})
	if got != "<p>a@b.com</p><footer>a@b.com</footer>" {
		t.Fatalf("repeated key not replaced identically: %s", got)
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("placeholder survived substitution: %s", got)
	}
}

func TestSubstituteMissingKeyYieldsEmpty(t *testing.T) {
	got := Substitute("<p>{{unknown}}</p>", Record{"name": "Ada"})
	if got != "<p></p>" {
		t.Fatalf("missing key should render empty, got %s", got)
	}
}

func TestSubstituteNilRecord(t *testing.T) {
	got := Substitute("<p>{{name}}</p>", nil)
	if got != "<p></p>" {
		t.Fatalf("nil record should render empty, got %s", got)
	}
}

func TestSubstituteAllowsSpacesInsideBraces(t *testing.T) {
	got := Substitute("<p>{{ name }}</p>", Record{"name": "Ada"})
	if got != "<p>Ada</p>" {
		t.Fatalf("spaced placeholder not recognized, got %s", got)
	}
}

func TestSubstituteLeavesMalformedBraces(t *testing.T) {
	markup := "<p>{{name</p><p>{single}</p>"
	got := Substitute(markup, Record{"name": "Ada"})
	if got != markup {
		t.Fatalf("malformed braces must stay untouched, got %s", got)
	}
}

func TestSubstituteIsNotRecursive(t *testing.T) {
	got := Substitute("<p>{{a}}</p>", Record{"a": "{{b}}", "b": "boom"})
	if got != "<p>{{b}}</p>" {
		t.Fatalf("replacement text must not be re-scanned, got %s", got)
	}
}

func TestDocumentStylesheetNotScannedForPlaceholders(t *testing.T) {
	markup := "<html><head></head><body>{{name}}</body></html>"
	css := ".badge::after{content:'{{name}}'}"

	got := Document(markup, css, Record{"name": "Ada"})
	if !strings.Contains(got, "content:'{{name}}'") {
		t.Fatalf("placeholder inside stylesheet was substituted: %s", got)
	}
	if !strings.Contains(got, "<body>Ada</body>") {
		t.Fatalf("markup placeholder not substituted: %s", got)
	}
}

func TestDocumentStripsStylesheetLink(t *testing.T) {
	markup := `<html><head><link rel="stylesheet" href="./styles.css"></head><body></body></html>`
	got := Document(markup, "body{}", Record{})
	if strings.Contains(got, "<link") {
		t.Fatalf("stylesheet link not stripped: %s", got)
	}
	if !strings.Contains(got, "<style>body{}</style></head>") {
		t.Fatalf("stylesheet not inlined before </head>: %s", got)
	}
}

func TestDocumentKeepsUnrelatedLinks(t *testing.T) {
	markup := `<html><head><link rel="icon" href="/favicon.ico"></head><body></body></html>`
	got := Document(markup, "", Record{})
	if !strings.Contains(got, "favicon.ico") {
		t.Fatalf("unrelated link must survive: %s", got)
	}
}

func TestDocumentWithoutHeadSkipsInlining(t *testing.T) {
	markup := "<body>{{name}}</body>"
	got := Document(markup, "body{color:red}", Record{"name": "Ada"})
	if got != "<body>Ada</body>" {
		t.Fatalf("malformed template should render without inlining, got %s", got)
	}
}

func TestDocumentDoesNotMutateInputs(t *testing.T) {
	rec := Record{"name": "Ada"}
	markup := "<html><head></head><body>{{name}}</body></html>"
	_ = Document(markup, "body{}", rec)
	if rec["name"] != "Ada" || len(rec) != 1 {
		t.Fatalf("record mutated during render: %v", rec)
	}
}
