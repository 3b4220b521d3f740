package tei

import (
	"strings"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// ReferenceElements collects every bibliographic structure element in the
// document. Two sweeps run in order: descendants of divisions typed
// "references", then descendants of any bibliography list. The union is
// deduplicated by node identity so a structure found by both sweeps is
// returned once, in first-seen order.
func ReferenceElements(root *Node) []*Node {
	var found []*Node
	seen := make(map[*Node]struct{})

	collect := func(nodes []*Node) {
		for _, n := range nodes {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			found = append(found, n)
		}
	}

	for _, div := range root.FindAll("div") {
		if div.Attr("type") == "references" {
			collect(div.FindAll("biblStruct"))
		}
	}
	for _, list := range root.FindAll("listBibl") {
		collect(list.FindAll("biblStruct"))
	}

	return found
}

// NormalizeReference flattens one bibliographic structure element into a
// reference record. Every field degrades to "" when its source element is
// absent; the record never carries nulls.
//
// Only the first author is kept. The year prefers the machine-readable
// "when" attribute of the first date element over its display text. The
// journal name prefers a journal-level title inside the monograph block
// and falls back to any title typed "journal".
func NormalizeReference(bibl *Node) domain.ReferenceRecord {
	var rec domain.ReferenceRecord

	for _, author := range bibl.FindAll("author") {
		forename := author.Find("forename")
		surname := author.Find("surname")
		if forename == nil || surname == nil {
			continue
		}
		rec.FirstName = strings.TrimSpace(forename.Text())
		rec.LastName = strings.TrimSpace(surname.Text())
		break
	}

	if title := bibl.Find("title"); title != nil {
		rec.Title = strings.TrimSpace(title.Text())
	}

	if date := bibl.Find("date"); date != nil {
		if when := date.Attr("when"); when != "" {
			rec.Year = strings.TrimSpace(when)
		} else {
			rec.Year = strings.TrimSpace(date.Text())
		}
	}

	rec.Journal = journalTitle(bibl)

	return rec
}

// NormalizeReferences maps every collected bibliographic structure in the
// document to a reference record, preserving order.
func NormalizeReferences(root *Node) []domain.ReferenceRecord {
	elements := ReferenceElements(root)
	records := make([]domain.ReferenceRecord, 0, len(elements))
	for _, el := range elements {
		records = append(records, NormalizeReference(el))
	}
	return records
}

func journalTitle(bibl *Node) string {
	for _, monogr := range bibl.FindAll("monogr") {
		for _, title := range monogr.Children {
			if title.Type == ElementNode && title.Name == "title" && title.Attr("level") == "j" {
				return strings.TrimSpace(title.Text())
			}
		}
	}
	for _, title := range bibl.FindAll("title") {
		if title.Attr("type") == "journal" {
			return strings.TrimSpace(title.Text())
		}
	}
	return ""
}
