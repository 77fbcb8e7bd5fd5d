package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EmbedID is the id of the script element that carries the bundle.
const EmbedID = "bundle-embed"

// DefaultTemplate is the page used when ExportHTML is given no template.
//
//go:embed template.html
var DefaultTemplate []byte

// ErrNoEmbed is returned by ImportHTML when the page has no bundle element.
var ErrNoEmbed = errors.New("storage: no bundle-embed element")

// ExportHTML writes template with bundleJSON placed inside the bundle-embed
// script element, creating the element at the end of the body if the
// template lacks one. A nil template uses DefaultTemplate.
//
// Any '<' in bundleJSON is written as \u003c so the payload cannot close
// the script element. Bundles produced by encoding/json already escape it.
func ExportHTML(w io.Writer, template, bundleJSON []byte) error {
	if template == nil {
		template = DefaultTemplate
	}
	doc, err := html.Parse(bytes.NewReader(template))
	if err != nil {
		return fmt.Errorf("storage: parse template: %w", err)
	}

	script := findEmbed(doc)
	if script == nil {
		body := findAtom(doc, atom.Body)
		if body == nil {
			return fmt.Errorf("storage: template has no body")
		}
		script = &html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				{Key: "id", Val: EmbedID},
				{Key: "type", Val: "application/json"},
			},
		}
		body.AppendChild(script)
	}
	for c := script.FirstChild; c != nil; {
		next := c.NextSibling
		script.RemoveChild(c)
		c = next
	}
	payload := strings.ReplaceAll(string(bundleJSON), "<", `\u003c`)
	script.AppendChild(&html.Node{Type: html.TextNode, Data: payload})

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("storage: render html: %w", err)
	}
	return nil
}

// ImportHTML returns the bundle JSON embedded in an exported page.
func ImportHTML(r io.Reader) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("storage: parse html: %w", err)
	}
	script := findEmbed(doc)
	if script == nil {
		return nil, ErrNoEmbed
	}
	var buf bytes.Buffer
	for c := script.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
	}
	data := buf.Bytes()
	if !json.Valid(data) {
		return nil, fmt.Errorf("storage: embedded bundle is not valid JSON")
	}
	return data, nil
}

func findEmbed(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script && attr(n, "id") == EmbedID {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findEmbed(c); found != nil {
			return found
		}
	}
	return nil
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
