// Package tei reconciles the structure service's TEI markup into typed
// extractions. The service's tagging is inconsistent across documents, so
// every locator degrades from precise-match to heuristic-match instead of
// failing, and element names are matched by local name regardless of XML
// namespace prefix.
package tei

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// NodeType discriminates element nodes from text nodes.
type NodeType int

const (
	// ElementNode is a markup element.
	ElementNode NodeType = iota
	// TextNode is a run of character data.
	TextNode
)

// Attr is one element attribute, keyed by local name.
type Attr struct {
	Name  string
	Value string
}

// Node is one node of the parsed markup tree. Text is modeled as child
// nodes so that element text interleaved with nested elements (formulas
// inside a paragraph, for example) keeps its document order.
type Node struct {
	Type NodeType
	// Name is the element's local name; empty for text nodes.
	Name string
	// Data is the character data; empty for element nodes.
	Data string
	// Attrs holds the element's attributes with namespace prefixes
	// stripped from the names.
	Attrs    []Attr
	Children []*Node
}

// Parse builds a namespace-agnostic node tree from markup. Unparseable
// markup is an error; the caller treats it as a malformed-response failure
// for that extraction only.
func Parse(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	root := &Node{Type: ElementNode}
	stack := []*Node{root}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tei: parse markup: %w", err)
		}

		switch tok := token.(type) {
		case xml.StartElement:
			node := &Node{
				Type: ElementNode,
				Name: tok.Name.Local,
			}
			for _, a := range tok.Attr {
				if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
					continue
				}
				node.Attrs = append(node.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := string(tok)
			if text == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Node{Type: TextNode, Data: text})
		}
	}

	if len(root.Children) == 0 {
		return nil, fmt.Errorf("tei: markup contains no elements")
	}
	return root, nil
}

// FindAll returns every descendant element whose local name matches, in
// document order. The receiver itself is not considered.
func (n *Node) FindAll(name string) []*Node {
	var found []*Node
	n.walk(func(node *Node) {
		if node.Type == ElementNode && node.Name == name {
			found = append(found, node)
		}
	})
	return found
}

// Find returns the first descendant element whose local name matches, or
// nil when there is none.
func (n *Node) Find(name string) *Node {
	for _, child := range n.Children {
		if child.Type == ElementNode && child.Name == name {
			return child
		}
		if child.Type == ElementNode {
			if found := child.Find(name); found != nil {
				return found
			}
		}
	}
	return nil
}

// FindChild returns the first direct child element whose local name
// matches, or nil when there is none.
func (n *Node) FindChild(name string) *Node {
	for _, child := range n.Children {
		if child.Type == ElementNode && child.Name == name {
			return child
		}
	}
	return nil
}

// Attr returns the value of the named attribute, matched by local name,
// or the empty string when absent.
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Text concatenates all descendant character data in document order,
// including text inside nested elements such as formulas.
func (n *Node) Text() string {
	var sb strings.Builder
	n.walk(func(node *Node) {
		if node.Type == TextNode {
			sb.WriteString(node.Data)
		}
	})
	return sb.String()
}

// walk visits every descendant node depth-first in document order.
func (n *Node) walk(visit func(*Node)) {
	for _, child := range n.Children {
		visit(child)
		if child.Type == ElementNode {
			child.walk(visit)
		}
	}
}
