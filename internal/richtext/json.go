package richtext

import (
	"encoding/json"
	"fmt"
)

const linkType = "link"

// jsonNode is the wire form of a node: blocks and links carry a type and
// children, text leaves carry their text and one boolean per mark.
type jsonNode struct {
	Type      string     `json:"type,omitempty"`
	Target    string     `json:"target,omitempty"`
	Text      *string    `json:"text,omitempty"`
	Bold      bool       `json:"bold,omitempty"`
	Italic    bool       `json:"italic,omitempty"`
	Underline bool       `json:"underline,omitempty"`
	Code      bool       `json:"code,omitempty"`
	Children  []jsonNode `json:"children,omitempty"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make([]jsonNode, len(d.root))
	for i, id := range d.root {
		out[i] = d.toJSON(id)
	}
	return json.Marshal(out)
}

func (d *Document) toJSON(id NodeID) jsonNode {
	n := d.nodes[id]
	var j jsonNode
	switch n.Kind {
	case KindText:
		text := n.Text
		j.Text = &text
		j.Bold = n.Marks.Has(Bold)
		j.Italic = n.Marks.Has(Italic)
		j.Underline = n.Marks.Has(Underline)
		j.Code = n.Marks.Has(Code)
		return j
	case KindInline:
		j.Type = linkType
		j.Target = n.Target
	case KindBlock:
		j.Type = n.Type.String()
	}
	j.Children = make([]jsonNode, len(n.Children))
	for i, c := range n.Children {
		j.Children[i] = d.toJSON(c)
	}
	return j
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var in []jsonNode
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("richtext: decode: %w", err)
	}
	specs := make([]Spec, len(in))
	for i, j := range in {
		s, err := fromJSON(j, Path{i})
		if err != nil {
			return err
		}
		specs[i] = s
	}
	built, err := Build(specs...)
	if err != nil {
		return err
	}
	*d = *built
	return nil
}

func fromJSON(j jsonNode, p Path) (Spec, error) {
	if j.Text != nil {
		var marks MarkSet
		for m, on := range map[Mark]bool{Bold: j.Bold, Italic: j.Italic, Underline: j.Underline, Code: j.Code} {
			if on {
				marks = marks.With(m)
			}
		}
		return Spec{Kind: KindText, Text: *j.Text, Marks: marks}, nil
	}
	s := Spec{Kind: KindBlock}
	if j.Type == linkType {
		s.Kind = KindInline
		s.Target = j.Target
	} else {
		t, err := ParseBlockType(j.Type)
		if err != nil {
			return Spec{}, &Error{Op: "decode", Path: p, Err: err}
		}
		s.Type = t
	}
	for i, c := range j.Children {
		cs, err := fromJSON(c, append(p.Clone(), i))
		if err != nil {
			return Spec{}, err
		}
		s.Children = append(s.Children, cs)
	}
	return s, nil
}
