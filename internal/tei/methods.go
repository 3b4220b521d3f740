package tei

import "strings"

// methodsHeadMarker is the substring that identifies a methods section by
// its heading when the division carries no type attribute.
const methodsHeadMarker = "method"

// MethodsText collects the plain text of the document's methods sections.
//
// Divisions explicitly typed "method" or "methods" are preferred. When no
// division is typed that way, the locator falls back to divisions whose
// heading contains "method" case-insensitively ("Materials and Methods",
// "METHODOLOGY" and so on). Each matched division contributes its visible
// body text, heading excluded, formulas collapsed to their display text.
// Divisions are emitted in document order, each trimmed, joined with a
// blank line. Returns "" when nothing matches.
func MethodsText(root *Node) string {
	divs := root.FindAll("div")

	matched := make([]*Node, 0, len(divs))
	for _, div := range divs {
		switch div.Attr("type") {
		case "method", "methods":
			matched = append(matched, div)
		}
	}

	if len(matched) == 0 {
		for _, div := range divs {
			head := div.FindChild("head")
			if head == nil {
				continue
			}
			if strings.Contains(strings.ToLower(head.Text()), methodsHeadMarker) {
				matched = append(matched, div)
			}
		}
	}

	sections := make([]string, 0, len(matched))
	for _, div := range matched {
		if text := strings.TrimSpace(sectionText(div)); text != "" {
			sections = append(sections, text)
		}
	}
	return strings.Join(sections, "\n\n")
}

// sectionText concatenates a division's character data in document order,
// skipping heading elements so that section titles do not leak into the
// assembled prose.
func sectionText(div *Node) string {
	var sb strings.Builder
	var collect func(n *Node)
	collect = func(n *Node) {
		for _, child := range n.Children {
			switch {
			case child.Type == TextNode:
				sb.WriteString(child.Data)
			case child.Name == "head":
				continue
			default:
				collect(child)
			}
		}
	}
	collect(div)
	return sb.String()
}
