// Package htmlprompt implements the Div prompt's renderer (spec.md §2:
// "Parse limited HTML, resolve Tailwind-subset classes to layout,
// dispatch link-submit"): a small recursive-descent parser for the
// restricted HTML subset a scriptlet or child process can hand back as
// a Div payload, a Tailwind-token-to-layout-style resolver, anchor-click
// to Submit dispatch, and a Markdown-flavored fallback renderer (via
// glamour) for crash post-mortems.
//
// No HTML parsing library lives anywhere in the example pack or the
// teacher's dependency set, and the payload is explicitly a *subset* of
// HTML rather than arbitrary documents (spec.md §1 scopes full CSS/class
// mapping out of the core) — a bespoke tokenizer is the right size for
// this, grounded on the same hand-rolled-parser shape used by
// `internal/catalog`'s scriptlet section scanner.
package htmlprompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
)

// NodeKind distinguishes text runs from elements in the parsed tree.
type NodeKind string

const (
	NodeText    NodeKind = "text"
	NodeElement NodeKind = "element"
)

// Node is one parsed HTML node: either a text leaf or an element with
// children. Only a small allow-listed set of tags round-trips; unknown
// tags are kept as generic elements so their text content still renders.
type Node struct {
	Kind     NodeKind
	Tag      string
	Classes  []string
	Attrs    map[string]string
	Text     string
	Children []Node
}

var voidTags = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true,
}

// Parse parses a limited HTML fragment into a tree rooted at an
// implicit document node. Unbalanced closing tags are tolerated by
// closing back to the nearest matching ancestor; unmatched ones are
// ignored rather than erroring, since scriptlet/child output is
// untrusted but not intentionally hostile.
func Parse(src string) (*Node, error) {
	root := &Node{Kind: NodeElement, Tag: "root"}
	stack := []*Node{root}
	i := 0
	n := len(src)

	for i < n {
		lt := strings.IndexByte(src[i:], '<')
		if lt < 0 {
			appendText(stack[len(stack)-1], src[i:])
			break
		}
		if lt > 0 {
			appendText(stack[len(stack)-1], src[i:i+lt])
		}
		i += lt

		gt := strings.IndexByte(src[i:], '>')
		if gt < 0 {
			return nil, fmt.Errorf("htmlprompt: unterminated tag at offset %d", i)
		}
		tagSrc := src[i+1 : i+gt]
		i += gt + 1

		switch {
		case strings.HasPrefix(tagSrc, "/"):
			closeTag := strings.TrimSpace(strings.TrimPrefix(tagSrc, "/"))
			for j := len(stack) - 1; j > 0; j-- {
				if stack[j].Tag == closeTag {
					stack = stack[:j]
					break
				}
			}
		case strings.HasPrefix(tagSrc, "!--"):
			// Comment: skip to the closing marker.
			end := strings.Index(src[i:], "-->")
			if end < 0 {
				i = n
			} else {
				i += end + len("-->")
			}
		default:
			selfClosing := strings.HasSuffix(strings.TrimSpace(tagSrc), "/")
			tagSrc = strings.TrimSuffix(strings.TrimSpace(tagSrc), "/")
			tag, attrs := parseTagAttrs(tagSrc)
			el := Node{Kind: NodeElement, Tag: tag, Attrs: attrs}
			if classAttr, ok := attrs["class"]; ok {
				el.Classes = strings.Fields(classAttr)
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			if !selfClosing && !voidTags[tag] {
				stack = append(stack, &parent.Children[len(parent.Children)-1])
			}
		}
	}
	return root, nil
}

func appendText(parent *Node, text string) {
	text = htmlUnescape(text)
	if strings.TrimSpace(text) == "" {
		return
	}
	parent.Children = append(parent.Children, Node{Kind: NodeText, Text: text})
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
)

func htmlUnescape(s string) string {
	return entityReplacer.Replace(s)
}

func parseTagAttrs(src string) (string, map[string]string) {
	fields := splitTagFields(src)
	if len(fields) == 0 {
		return "", map[string]string{}
	}
	tag := strings.ToLower(fields[0])
	attrs := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			attrs[strings.ToLower(f)] = ""
			continue
		}
		key := strings.ToLower(f[:eq])
		val := strings.Trim(f[eq+1:], `"'`)
		attrs[key] = val
	}
	return tag, attrs
}

// splitTagFields splits a tag's inner source on whitespace, respecting
// quoted attribute values so `class="a b"` stays one field.
func splitTagFields(src string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inQuote != 0:
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// Style is the resolved layout/paint style for one element, after
// mapping its Tailwind-subset classes.
type Style struct {
	Display    string // "block", "flex", "inline"
	FlexDir    string // "row", "col"
	FontSize   string // "sm", "base", "lg", "xl", "2xl"
	Bold       bool
	Italic     bool
	TextAlign  string // "left", "center", "right"
	TextColor  string
	Background string
	PaddingPx  int
	MarginPx   int
	Rounded    bool
}

var spacingScale = map[string]int{
	"0": 0, "1": 4, "2": 8, "3": 12, "4": 16, "5": 20, "6": 24, "8": 32, "10": 40, "12": 48, "16": 64,
}

// ResolveClasses maps a Tailwind-subset class list to a Style. Unknown
// classes are ignored rather than erroring — the payload is untrusted
// free-form content, not a validated stylesheet.
func ResolveClasses(classes []string) Style {
	var s Style
	for _, c := range classes {
		switch {
		case c == "flex":
			s.Display = "flex"
		case c == "flex-col":
			s.Display, s.FlexDir = "flex", "col"
		case c == "flex-row":
			s.Display, s.FlexDir = "flex", "row"
		case c == "block":
			s.Display = "block"
		case c == "inline":
			s.Display = "inline"
		case c == "font-bold":
			s.Bold = true
		case c == "italic":
			s.Italic = true
		case c == "text-center":
			s.TextAlign = "center"
		case c == "text-left":
			s.TextAlign = "left"
		case c == "text-right":
			s.TextAlign = "right"
		case c == "rounded":
			s.Rounded = true
		case strings.HasPrefix(c, "text-") && isFontSizeToken(c[len("text-"):]):
			s.FontSize = c[len("text-"):]
		case strings.HasPrefix(c, "text-"):
			s.TextColor = c[len("text-"):]
		case strings.HasPrefix(c, "bg-"):
			s.Background = c[len("bg-"):]
		case strings.HasPrefix(c, "p-"):
			s.PaddingPx = spacingScale[c[len("p-"):]]
		case strings.HasPrefix(c, "m-"):
			s.MarginPx = spacingScale[c[len("m-"):]]
		}
	}
	return s
}

func isFontSizeToken(tok string) bool {
	switch tok {
	case "xs", "sm", "base", "lg", "xl", "2xl", "3xl", "4xl":
		return true
	}
	return false
}

// Link is an anchor extracted from a parsed Div payload, destined for
// link-submit dispatch.
type Link struct {
	Href string
	Text string
}

// ExtractLinks walks the tree collecting every <a href="..."> element's
// target and flattened text content.
func ExtractLinks(root *Node) []Link {
	var links []Link
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Kind == NodeElement && n.Tag == "a" {
			if href, ok := n.Attrs["href"]; ok {
				links = append(links, Link{Href: href, Text: flattenText(n)})
			}
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)
	return links
}

func flattenText(n *Node) string {
	var b strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Kind == NodeText {
			b.WriteString(n.Text)
			return
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// RenderANSI walks a parsed Div tree and renders it as ANSI terminal
// text, applying each element's resolved Tailwind-subset Style (bold and
// italic; a resolved text color is not rendered) and linkifying anchors
// inline as "text (href)" (spec.md
// §2: "resolve Tailwind-subset classes to layout, dispatch link-submit").
// Block-level elements (div, p, section, and the other non-void tags)
// each start their own line; inline text runs within a block concatenate.
//
// Grounded on the same recursive tree-walk shape as ExtractLinks and
// flattenText in this package.
func RenderANSI(root *Node) string {
	var b strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Kind {
		case NodeText:
			b.WriteString(n.Text)
		case NodeElement:
			style := ResolveClasses(n.Classes)
			var codes []string
			if style.Bold {
				codes = append(codes, "1")
			}
			if style.Italic {
				codes = append(codes, "3")
			}
			if len(codes) > 0 {
				fmt.Fprintf(&b, "\033[%sm", strings.Join(codes, ";"))
			}
			if n.Tag == "a" {
				fmt.Fprintf(&b, "%s (%s)", flattenText(n), n.Attrs["href"])
			} else {
				for i := range n.Children {
					walk(&n.Children[i])
				}
			}
			if len(codes) > 0 {
				b.WriteString("\033[0m")
			}
			if !voidTags[n.Tag] && n.Tag != "a" && n.Tag != "span" {
				b.WriteString("\n")
			}
		}
	}
	for i := range root.Children {
		walk(&root.Children[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

// EscapeBehavior resolves the open question of what Escape does on a
// Div prompt: since Div is read-only output (no fields to cancel out
// of), Escape defaults to acknowledging receipt rather than cancelling
// the underlying child session.
type EscapeBehavior string

const (
	EscapeSubmitAck EscapeBehavior = "submit_ack"
	EscapeCancel    EscapeBehavior = "cancel"
)

// Payload is the Div prompt's wire payload (spec.md §6).
type Payload struct {
	HTML             string
	Background       string
	ContainerClasses []string
	Tailwind         bool
	EscapeBehavior   EscapeBehavior
}

// NewPayload builds a Div payload with the resolved default escape
// behavior.
func NewPayload(html string) Payload {
	return Payload{HTML: html, EscapeBehavior: EscapeSubmitAck}
}

// CrashInfo is the parsed shape of a child process post-mortem (spec.md
// §8 scenario 5: stderr like "TypeError: foo is not a function\n  at
// /p/s.ts:3:5").
type CrashInfo struct {
	Message string
	File    string
	Line    int
	Col     int
}

var crashLocationRe = regexp.MustCompile(`(?m)^\s*at\s+(\S+):(\d+):(\d+)\s*$`)

// ParseCrashOutput extracts a message and file:line:col from a child's
// stderr. ok is false if no location line was found.
func ParseCrashOutput(stderr string) (CrashInfo, bool) {
	loc := crashLocationRe.FindStringSubmatch(stderr)
	if loc == nil {
		return CrashInfo{}, false
	}
	message := strings.TrimSpace(stderr[:strings.Index(stderr, loc[0])])
	line, _ := strconv.Atoi(loc[2])
	col, _ := strconv.Atoi(loc[3])
	return CrashInfo{Message: message, File: loc[1], Line: line, Col: col}, true
}

// RenderCrashMarkdown formats a CrashInfo as Markdown suitable for
// RenderFallback.
func RenderCrashMarkdown(info CrashInfo) string {
	return fmt.Sprintf("### Script crashed\n\n```\n%s\n```\n\nat `%s:%d:%d`\n", info.Message, info.File, info.Line, info.Col)
}

// RenderFallback renders Markdown (crash post-mortems, or any Div body
// the host chooses to treat as Markdown rather than HTML) to ANSI text
// via glamour, for terminals/hosts that skip the Tailwind-subset layout
// path entirely.
func RenderFallback(markdown string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("htmlprompt: create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("htmlprompt: render: %w", err)
	}
	return out, nil
}
