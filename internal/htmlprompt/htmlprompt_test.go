package htmlprompt

import "testing"

func TestParseNestedElementsAndText(t *testing.T) {
	root, err := Parse(`<div class="p-4 flex-col"><h1>Title</h1><p>Hello <strong>world</strong></p></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(root.Children) != 1 || root.Children[0].Tag != "div" {
		t.Fatalf("unexpected root children: %+v", root.Children)
	}
	div := root.Children[0]
	if len(div.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %+v", div.Classes)
	}
	if len(div.Children) != 2 || div.Children[0].Tag != "h1" || div.Children[1].Tag != "p" {
		t.Fatalf("unexpected div children: %+v", div.Children)
	}
}

func TestParseVoidElementsDoNotConsumeSiblings(t *testing.T) {
	root, err := Parse(`<p>line one<br>line two</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := root.Children[0]
	if len(p.Children) != 3 {
		t.Fatalf("expected text, br, text as siblings, got %+v", p.Children)
	}
	if p.Children[1].Tag != "br" {
		t.Fatalf("expected br element, got %+v", p.Children[1])
	}
}

func TestParseUnescapesEntities(t *testing.T) {
	root, err := Parse(`<p>Tom &amp; Jerry &lt;3&gt;</p>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	text := flattenText(&root.Children[0])
	if text != "Tom & Jerry <3>" {
		t.Fatalf("flattenText = %q", text)
	}
}

func TestResolveClassesMapsTailwindSubset(t *testing.T) {
	s := ResolveClasses([]string{"flex", "flex-col", "p-4", "text-lg", "font-bold", "text-center", "bg-gray-100"})
	if s.Display != "flex" || s.FlexDir != "col" {
		t.Fatalf("unexpected display: %+v", s)
	}
	if s.PaddingPx != 16 {
		t.Fatalf("expected p-4 = 16px, got %d", s.PaddingPx)
	}
	if s.FontSize != "lg" || !s.Bold || s.TextAlign != "center" {
		t.Fatalf("unexpected text style: %+v", s)
	}
	if s.Background != "gray-100" {
		t.Fatalf("expected background gray-100, got %q", s.Background)
	}
}

func TestExtractLinksFindsHrefAndText(t *testing.T) {
	root, err := Parse(`<div><a href="https://example.com">Visit</a><a href="kit://run/foo">Run Foo</a></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	links := ExtractLinks(root)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %+v", links)
	}
	if links[0].Href != "https://example.com" || links[0].Text != "Visit" {
		t.Fatalf("unexpected first link: %+v", links[0])
	}
	if links[1].Href != "kit://run/foo" || links[1].Text != "Run Foo" {
		t.Fatalf("unexpected second link: %+v", links[1])
	}
}

func TestNewPayloadDefaultsEscapeToSubmitAck(t *testing.T) {
	p := NewPayload("<p>hi</p>")
	if p.EscapeBehavior != EscapeSubmitAck {
		t.Fatalf("expected default escape behavior submit_ack, got %q", p.EscapeBehavior)
	}
}

func TestParseCrashOutputExtractsLocation(t *testing.T) {
	stderr := "TypeError: foo is not a function\n  at /p/s.ts:3:5"
	info, ok := ParseCrashOutput(stderr)
	if !ok {
		t.Fatal("expected crash info to be parsed")
	}
	if info.Message != "TypeError: foo is not a function" || info.File != "/p/s.ts" || info.Line != 3 || info.Col != 5 {
		t.Fatalf("unexpected crash info: %+v", info)
	}
}

func TestParseCrashOutputNoLocationReturnsFalse(t *testing.T) {
	if _, ok := ParseCrashOutput("plain output with no stack trace"); ok {
		t.Fatal("expected ok=false for output with no location line")
	}
}
