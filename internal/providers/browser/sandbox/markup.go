package sandbox

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// webviewSource accepts the schemes a webview may be pointed at, or a
// relative reference.
var webviewSource = regexp.MustCompile(`(?i)^(?:(?:https?|about|file):|[^:]*$)`)

// markupPolicy is the allowlist renderer markup passes through before it is
// turned into a DOM. Scripts, frames, embeds and inline handlers never survive.
var markupPolicy = newMarkupPolicy()

func newMarkupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"webview", "button", "div", "span", "p", "label",
		"section", "header", "footer", "main", "nav",
		"h1", "h2", "h3", "h4", "ul", "ol", "li", "a", "img",
	)
	p.AllowNoAttrs().OnElements("webview", "label", "main")
	p.AllowAttrs("id", "class", "style", "title").Globally()
	p.AllowAttrs("type", "disabled").OnElements("button")
	p.AllowAttrs("src").Matching(webviewSource).OnElements("webview")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "about", "file")
	return p
}

// ParseDOM builds a document from renderer markup. The markup is sanitized
// first and only the body subtree is kept: renderer code runs through
// Execute and listeners attach through addEventListener.
func ParseDOM(r io.Reader) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(markupPolicy.SanitizeReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	d := NewDOM()
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return d, nil
	}
	d.root.AddElement(convert(body.Nodes[0]))
	return d, nil
}

// ParseRendererDOM parses markup that must contain the webview element.
func ParseRendererDOM(r io.Reader) (*DOM, error) {
	d, err := ParseDOM(r)
	if err != nil {
		return nil, err
	}
	if d.ByID(WebviewID) == nil {
		return nil, fmt.Errorf("%w: #%s", ErrElementNotFound, WebviewID)
	}
	return d, nil
}

func convert(node *html.Node) *Element {
	elem := NewElement(strings.ToLower(node.Data), "")
	var text strings.Builder

	for _, attr := range node.Attr {
		switch attr.Key {
		case "id":
			elem.ID = attr.Val
		case "class":
			elem.ClassName = attr.Val
		default:
			elem.Attributes[attr.Key] = attr.Val
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			elem.AddElement(convert(child))
		case html.TextNode:
			text.WriteString(child.Data)
		}
	}
	elem.TextContent = strings.TrimSpace(text.String())
	return elem
}
