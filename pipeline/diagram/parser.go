package diagram

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Shape is a vertex of a diagram: a candidate task, the start shape, or decoration.
type Shape struct {
	ID    string            `json:"id"`
	Label string            `json:"label"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Edge is a directed connection between two shapes of the same diagram.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Diagram is one page of a diagram document after structural extraction.
type Diagram struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Shapes []Shape `json:"shapes"`
	Edges  []Edge  `json:"edges"`
}

// ErrNoDiagrams is returned when the markup holds neither an mxfile nor an mxGraphModel.
var ErrNoDiagrams = errors.New("diagram: no diagrams found in markup")

// Attr looks up an attribute ignoring case and the separators ' ', '_' and '-'.
func (s Shape) Attr(name string) (string, bool) {
	want := normalizeKey(name)
	for k, v := range s.Attrs {
		if normalizeKey(k) == want {
			return v, true
		}
	}
	return "", false
}

// HasAttr reports whether the shape carries the attribute at all, even with an empty value.
func (s Shape) HasAttr(name string) bool {
	_, ok := s.Attr(name)
	return ok
}

func normalizeKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// node is a generic XML element; draw.io files carry arbitrary user attributes.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (n node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n node) child(local string) (node, bool) {
	for _, c := range n.Children {
		if c.XMLName.Local == local {
			return c, true
		}
	}
	return node{}, false
}

// Parse extracts every diagram contained in the markup. It performs no validation.
func Parse(markup []byte) ([]Diagram, error) {
	return ParseReader(bytes.NewReader(markup))
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) ([]Diagram, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("diagram: decode markup: %w", err)
	}

	switch root.XMLName.Local {
	case "mxfile":
		return parseFile(root)
	case "mxGraphModel":
		return []Diagram{extract("", "", root)}, nil
	default:
		return nil, ErrNoDiagrams
	}
}

func parseFile(root node) ([]Diagram, error) {
	var out []Diagram
	for _, d := range root.Children {
		if d.XMLName.Local != "diagram" {
			continue
		}
		id, _ := d.attr("id")
		name, _ := d.attr("name")

		model, ok := d.child("mxGraphModel")
		if !ok {
			body := strings.TrimSpace(d.Text)
			if body == "" {
				continue
			}
			inflated, err := inflate(body)
			if err != nil {
				return nil, fmt.Errorf("diagram %q: %w", name, err)
			}
			if err := xml.Unmarshal(inflated, &model); err != nil {
				return nil, fmt.Errorf("diagram %q: decode compressed body: %w", name, err)
			}
		}
		out = append(out, extract(id, name, model))
	}
	if len(out) == 0 {
		return nil, ErrNoDiagrams
	}
	return out, nil
}

// extract walks mxGraphModel > root collecting vertices and edges in document order.
func extract(id, name string, model node) Diagram {
	d := Diagram{ID: id, Name: name}
	cells, ok := model.child("root")
	if !ok {
		return d
	}

	for _, c := range cells.Children {
		switch c.XMLName.Local {
		case "mxCell":
			cellID, _ := c.attr("id")
			label, _ := c.attr("value")
			collect(&d, cellID, label, c.Attrs, c)
		case "object", "UserObject":
			// 自定义属性在外层 object 上，几何信息在内层 mxCell
			cellID, _ := c.attr("id")
			label, _ := c.attr("label")
			inner, ok := c.child("mxCell")
			if !ok {
				continue
			}
			collect(&d, cellID, label, c.Attrs, inner)
		}
	}
	return d
}

func collect(d *Diagram, id, label string, attrs []xml.Attr, cell node) {
	if v, _ := cell.attr("edge"); v == "1" {
		src, _ := cell.attr("source")
		dst, _ := cell.attr("target")
		if src == "" || dst == "" {
			return
		}
		d.Edges = append(d.Edges, Edge{Source: src, Target: dst})
		return
	}
	if v, _ := cell.attr("vertex"); v != "1" || id == "" {
		return
	}

	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	d.Shapes = append(d.Shapes, Shape{ID: id, Label: label, Attrs: m})
}
