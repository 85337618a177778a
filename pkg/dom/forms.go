package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// nonValueInputs are input types whose value the user does not type.
var nonValueInputs = map[string]bool{
	"checkbox": true,
	"radio":    true,
	"hidden":   true,
	"file":     true,
	"submit":   true,
	"button":   true,
	"reset":    true,
	"image":    true,
}

// InputType returns the lower-cased type of an <input>, defaulting to "text".
func InputType(n *html.Node) string {
	t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
	if t == "" {
		return "text"
	}
	return t
}

// IsValueControl reports whether n is a form control holding user-entered
// text: a text-like <input>, a <textarea> or a <select>.
func IsValueControl(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	switch n.DataAtom {
	case atom.Input:
		return !nonValueInputs[InputType(n)]
	case atom.Textarea, atom.Select:
		return true
	}
	return false
}

// Value returns the current value of a form control.
func Value(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	switch n.DataAtom {
	case atom.Textarea:
		return TextContent(n)
	case atom.Select:
		if opt := selectedOption(n); opt != nil {
			return optionValue(opt)
		}
		return ""
	default:
		return Attr(n, "value")
	}
}

// SetValue sets the current value of a form control. For a <select> the
// option with a matching value becomes the only selected one; if no option
// matches the selection is left alone.
func SetValue(n *html.Node, value string) {
	if !IsElement(n) {
		return
	}
	switch n.DataAtom {
	case atom.Textarea:
		SetTextContent(n, value)
	case atom.Select:
		opts := options(n)
		var match *html.Node
		for _, o := range opts {
			if optionValue(o) == value {
				match = o
				break
			}
		}
		if match == nil {
			return
		}
		for _, o := range opts {
			if o == match {
				SetAttr(o, "selected", "")
			} else {
				RemoveAttr(o, "selected")
			}
		}
	default:
		SetAttr(n, "value", value)
	}
}

// Checked reports whether a checkbox or radio input is checked.
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}

// Disabled reports whether a form control is disabled.
func Disabled(n *html.Node) bool {
	return HasAttr(n, "disabled")
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	Walk(sel, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func selectedOption(sel *html.Node) *html.Node {
	opts := options(sel)
	for _, o := range opts {
		if HasAttr(o, "selected") {
			return o
		}
	}
	if len(opts) > 0 && !HasAttr(sel, "multiple") {
		return opts[0]
	}
	return nil
}

// SelectedValues returns the values of all selected options of a <select>.
func SelectedValues(sel *html.Node) []string {
	if !HasAttr(sel, "multiple") {
		if o := selectedOption(sel); o != nil {
			return []string{optionValue(o)}
		}
		return nil
	}
	var out []string
	for _, o := range options(sel) {
		if HasAttr(o, "selected") {
			out = append(out, optionValue(o))
		}
	}
	return out
}

// IsMultiSelect reports whether n is a <select multiple>.
func IsMultiSelect(n *html.Node) bool {
	return IsElement(n) && n.DataAtom == atom.Select && HasAttr(n, "multiple")
}

// SetSelectedValues selects exactly the options of sel whose value is in
// values.
func SetSelectedValues(sel *html.Node, values []string) {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	for _, o := range options(sel) {
		if want[optionValue(o)] {
			SetAttr(o, "selected", "")
		} else {
			RemoveAttr(o, "selected")
		}
	}
}

func optionValue(o *html.Node) string {
	if v, ok := GetAttr(o, "value"); ok {
		return v
	}
	return strings.TrimSpace(TextContent(o))
}
