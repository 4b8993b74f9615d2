package richtext

import "strings"

// Validate checks the content rules of the whole document.
func (d *Document) Validate() error {
	specs := d.Spec()
	return validateSpecs(specs)
}

func validateSpecs(specs []Spec) error {
	if len(specs) == 0 {
		return &Error{Op: "validate", Err: ErrEmptyDocument}
	}
	path := make(Path, 0, 8)
	for i, s := range specs {
		path = append(path, i)
		if s.Kind != KindBlock {
			return errAt("validate", path, ErrInvalidContent, "root child is %s", s.Kind)
		}
		if err := validateSpec(s, path); err != nil {
			return err
		}
		path = path[:len(path)-1]
	}
	return nil
}

func validateSpec(s Spec, path Path) error {
	switch s.Kind {
	case KindText:
		if len(s.Children) > 0 {
			return errAt("validate", path, ErrInvalidContent, "text leaf has children")
		}
		return nil
	case KindInline:
		if s.Target == "" || strings.ContainsRune(s.Target, '\n') {
			return errAt("validate", path, ErrInvalidContent, "link target %q", s.Target)
		}
		if len(s.Children) == 0 {
			return errAt("validate", path, ErrInvalidContent, "link without text")
		}
		for i, c := range s.Children {
			if c.Kind != KindText {
				return errAt("validate", append(path, i), ErrInvalidContent, "link child is %s", c.Kind)
			}
		}
		return validateRun(s.Children, path, false)
	case KindBlock:
	default:
		return errAt("validate", path, ErrInvalidContent, "unknown node kind %d", s.Kind)
	}

	if !s.Type.Valid() {
		return errAt("validate", path, ErrUnknownType, "block type %d", s.Type)
	}
	if len(s.Children) == 0 {
		return errAt("validate", path, ErrInvalidContent, "%s has no children", s.Type)
	}
	switch {
	case s.Type.IsList():
		for i, c := range s.Children {
			if c.Kind != KindBlock || c.Type != ListItem {
				return errAt("validate", append(path, i), ErrInvalidContent, "%s child is not a list-item", s.Type)
			}
		}
	case s.Type == CodeBlock:
		if len(s.Children) != 1 || s.Children[0].Kind != KindText || !s.Children[0].Marks.IsEmpty() {
			return errAt("validate", path, ErrInvalidContent, "code-block must hold one unmarked text")
		}
	case s.Type.HoldsInline():
		for i, c := range s.Children {
			if c.Kind == KindBlock {
				return errAt("validate", append(path, i), ErrInvalidContent, "%s holds a block", s.Type)
			}
		}
		if err := validateRun(s.Children, path, true); err != nil {
			return err
		}
	case s.Type == ListItem:
		split := len(s.Children)
		for i, c := range s.Children {
			if c.Kind == KindBlock {
				split = i
				break
			}
		}
		if split == 0 {
			return errAt("validate", path, ErrInvalidContent, "list-item without inline content")
		}
		for i, c := range s.Children[split:] {
			if c.Kind != KindBlock {
				return errAt("validate", append(path, split+i), ErrInvalidContent, "inline content after nested block")
			}
		}
		if err := validateRun(s.Children[:split], path, true); err != nil {
			return err
		}
	}
	for i, c := range s.Children {
		if err := validateSpec(c, append(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// validateRun checks a sequence of inline siblings: no two adjacent text
// leaves share marks and empty leaves only appear alone and unmarked.
func validateRun(run []Spec, path Path, allowEmpty bool) error {
	for i, c := range run {
		if c.Kind != KindText {
			continue
		}
		if c.Text == "" {
			if !allowEmpty || len(run) > 1 {
				return errAt("validate", append(path, i), ErrInvalidContent, "empty text leaf")
			}
			if !c.Marks.IsEmpty() {
				return errAt("validate", append(path, i), ErrInvalidContent, "marks on empty text")
			}
		}
		if i > 0 && run[i-1].Kind == KindText && run[i-1].Marks == c.Marks {
			return errAt("validate", append(path, i), ErrInvalidContent, "adjacent text leaves share marks")
		}
	}
	return nil
}
