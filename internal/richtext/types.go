package richtext

import (
	"fmt"
	"strings"
)

// Kind is the capability of a node: a block container, an inline link or a text leaf.
type Kind uint8

const (
	KindBlock Kind = iota
	KindInline
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindInline:
		return "inline"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// BlockType is the kind of a block node.
type BlockType uint8

const (
	Paragraph BlockType = iota
	HeadingOne
	HeadingTwo
	BulletedList
	NumberedList
	ListItem
	BlockQuote
	CodeBlock
)

var blockTypeNames = [...]string{
	Paragraph:    "paragraph",
	HeadingOne:   "heading-one",
	HeadingTwo:   "heading-two",
	BulletedList: "bulleted-list",
	NumberedList: "numbered-list",
	ListItem:     "list-item",
	BlockQuote:   "block-quote",
	CodeBlock:    "code-block",
}

// BlockTypes lists every block type in declaration order.
var BlockTypes = []BlockType{Paragraph, HeadingOne, HeadingTwo, BulletedList, NumberedList, ListItem, BlockQuote, CodeBlock}

func (b BlockType) String() string {
	if b.Valid() {
		return blockTypeNames[b]
	}
	return fmt.Sprintf("BlockType(%d)", b)
}

// Valid reports whether b is one of the declared block types.
func (b BlockType) Valid() bool { return int(b) < len(blockTypeNames) }

// IsList reports whether b holds list items.
func (b BlockType) IsList() bool { return b == BulletedList || b == NumberedList }

// HoldsInline reports whether b is a text block whose children are all inline.
func (b BlockType) HoldsInline() bool {
	switch b {
	case Paragraph, HeadingOne, HeadingTwo, BlockQuote, CodeBlock:
		return true
	}
	return false
}

// ParseBlockType resolves a wire name such as "heading-one".
func ParseBlockType(s string) (BlockType, error) {
	for i, name := range blockTypeNames {
		if name == s {
			return BlockType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: block type %q", ErrUnknownType, s)
}

func (b BlockType) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, b)
	}
	return []byte(b.String()), nil
}

func (b *BlockType) UnmarshalText(text []byte) error {
	v, err := ParseBlockType(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Mark is an inline formatting flag carried by text leaves.
type Mark uint8

const (
	Bold Mark = iota
	Italic
	Underline
	Code
)

var markNames = [...]string{
	Bold:      "bold",
	Italic:    "italic",
	Underline: "underline",
	Code:      "code",
}

// Marks lists every mark, outermost first. Serializers nest delimiters in this order.
var Marks = []Mark{Bold, Italic, Underline, Code}

func (m Mark) String() string {
	if m.Valid() {
		return markNames[m]
	}
	return fmt.Sprintf("Mark(%d)", m)
}

func (m Mark) Valid() bool { return int(m) < len(markNames) }

// ParseMark resolves a wire name such as "bold".
func ParseMark(s string) (Mark, error) {
	for i, name := range markNames {
		if name == s {
			return Mark(i), nil
		}
	}
	return 0, fmt.Errorf("%w: mark %q", ErrUnknownType, s)
}

func (m Mark) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, m)
	}
	return []byte(m.String()), nil
}

func (m *Mark) UnmarshalText(text []byte) error {
	v, err := ParseMark(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarkSet is a set of marks. The zero value is the empty set.
type MarkSet uint8

func NewMarkSet(marks ...Mark) MarkSet {
	var s MarkSet
	for _, m := range marks {
		s = s.With(m)
	}
	return s
}

func (s MarkSet) Has(m Mark) bool        { return s&(1<<m) != 0 }
func (s MarkSet) With(m Mark) MarkSet    { return s | 1<<m }
func (s MarkSet) Without(m Mark) MarkSet { return s &^ (1 << m) }
func (s MarkSet) IsEmpty() bool          { return s == 0 }

// List returns the marks in canonical order.
func (s MarkSet) List() []Mark {
	var out []Mark
	for _, m := range Marks {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s MarkSet) String() string {
	names := make([]string, 0, len(Marks))
	for _, m := range s.List() {
		names = append(names, m.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

func mustBlockType(b BlockType) {
	if !b.Valid() {
		panic(fmt.Sprintf("richtext: unknown block type %d", b))
	}
}

func mustMark(m Mark) {
	if !m.Valid() {
		panic(fmt.Sprintf("richtext: unknown mark %d", m))
	}
}
