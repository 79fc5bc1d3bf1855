package sandbox

import (
	"strings"
	"sync"
)

// Renderer element ids.
const (
	WebviewID   = "myWebview"
	GoBackID    = "goBack"
	GoForwardID = "goForward"
	ReloadID    = "reload"
)

// DOM is the renderer document visible to sandboxed scripts
type DOM struct {
	root    *Element
	changes []DOMChange
	mu      sync.RWMutex
}

// Element represents a DOM element
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Children    []*Element
	Parent      *Element
}

// NewDOM creates an empty document
func NewDOM() *DOM {
	return &DOM{
		root: &Element{
			TagName:    "document",
			Attributes: make(map[string]string),
			Children:   []*Element{},
		},
		changes: []DOMChange{},
	}
}

// NewRendererDOM creates the renderer page: a webview and the three
// navigation buttons.
func NewRendererDOM() *DOM {
	d := NewDOM()
	body := NewElement("body", "")
	d.root.AddElement(body)

	webview := NewElement("webview", WebviewID)
	webview.Attributes["style"] = "width:100%; height:100%"
	body.AddElement(webview)

	for _, b := range []struct{ id, label string }{
		{GoBackID, "Back"},
		{GoForwardID, "Forward"},
		{ReloadID, "Reload"},
	} {
		btn := NewElement("button", b.id)
		btn.TextContent = b.label
		body.AddElement(btn)
	}
	return d
}

// NewElement creates a detached element
func NewElement(tag, id string) *Element {
	return &Element{
		TagName:    tag,
		ID:         id,
		Attributes: make(map[string]string),
	}
}

// Root returns the document node
func (d *DOM) Root() *Element {
	return d.root
}

// Query finds elements by selector (simplified)
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := d.findByID(d.root, strings.TrimPrefix(selector, "#")); elem != nil {
			return []*Element{elem}
		}
	case strings.HasPrefix(selector, "."):
		return d.findByClass(d.root, strings.TrimPrefix(selector, "."))
	default:
		return d.findByTag(d.root, selector)
	}

	return []*Element{}
}

// ByID returns the element with the given id, or nil
func (d *DOM) ByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findByID(d.root, id)
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

// SetAttribute sets an attribute on elem and records the change
func (d *DOM) SetAttribute(elem *Element, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	elem.Attributes[name] = value
	d.changes = append(d.changes, DOMChange{
		Type:     "set_attribute",
		Selector: selectorOf(elem),
		Property: name,
		Value:    value,
	})
}

// SetText sets an element's text and records the change
func (d *DOM) SetText(elem *Element, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	elem.TextContent = text
	d.changes = append(d.changes, DOMChange{
		Type:     "set_text",
		Selector: selectorOf(elem),
		Property: "textContent",
		Value:    text,
	})
}

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

func (d *DOM) findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := d.findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func (d *DOM) findByClass(elem *Element, class string) []*Element {
	var result []*Element
	for _, c := range strings.Fields(elem.ClassName) {
		if c == class {
			result = append(result, elem)
			break
		}
	}
	for _, child := range elem.Children {
		result = append(result, d.findByClass(child, class)...)
	}
	return result
}

func (d *DOM) findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByTag(child, tag)...)
	}
	return result
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

func selectorOf(e *Element) string {
	if e.ID != "" {
		return "#" + e.ID
	}
	return strings.ToLower(e.TagName)
}
