// Package event turns a raw UI event into the serializable summary sent with
// a mutation call.
package event

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/upload"
)

// Event is a UI event that triggered a mutation call.
type Event struct {
	// Type is the DOM event type, e.g. "click" or "submit".
	Type string

	// Target is the element the handler is bound to (a form or a control).
	Target *html.Node

	// Files are attached to file inputs of a submitted form.
	Files []upload.File

	stopped bool
}

// Stop stops propagation and prevents the default action.
func (e *Event) Stop() {
	if e != nil {
		e.stopped = true
	}
}

// Stopped reports whether Stop was called.
func (e *Event) Stopped() bool {
	return e != nil && e.stopped
}

// Summary is the serializable view of an event.
type Summary struct {
	Data        protocol.EventData
	UploadToken string
	Files       []upload.File
}

// HasFiles reports whether the summary must go over the multipart path.
func (s Summary) HasFiles() bool {
	return len(s.Files) > 0
}

// Summarize reads ev against the tree. A nil event gives an empty summary.
// Only input, change and submit events carry values.
func Summarize(ev *Event) Summary {
	s := Summary{Data: protocol.EventData{FormData: map[string]string{}}}
	if ev == nil {
		return s
	}
	s.Data.Type = ev.Type

	switch ev.Type {
	case "input", "change", "submit":
	default:
		return s
	}
	if !dom.IsElement(ev.Target) {
		return s
	}

	if ev.Target.DataAtom == atom.Form {
		for _, f := range formEntries(ev.Target) {
			if f.name == dom.UploadTokenField {
				s.UploadToken = f.value
				continue
			}
			s.Data.FormData[f.name] = f.value
		}
		for _, f := range ev.Files {
			// Empty file fields are skipped.
			if f.Size != 0 {
				s.Files = append(s.Files, f)
			}
		}
		return s
	}

	value := dom.Value(ev.Target)
	s.Data.Data = value
	if name := dom.Attr(ev.Target, "name"); name != "" {
		s.Data.FormData[name] = value
	}
	return s
}

type entry struct {
	name  string
	value string
}

// formEntries collects the successful controls of a form in tree order.
func formEntries(form *html.Node) []entry {
	var out []entry
	dom.Walk(form, func(n *html.Node) bool {
		if n != form && n.Type == html.ElementNode && n.DataAtom == atom.Form {
			return false
		}
		if !dom.IsElement(n) {
			return true
		}
		name := dom.Attr(n, "name")
		if name == "" || dom.Disabled(n) {
			return n.DataAtom != atom.Select && n.DataAtom != atom.Textarea
		}

		switch n.DataAtom {
		case atom.Input:
			switch dom.InputType(n) {
			case "checkbox", "radio":
				if dom.Checked(n) {
					v, ok := dom.GetAttr(n, "value")
					if !ok {
						v = "on"
					}
					out = append(out, entry{name, v})
				}
			case "submit", "button", "reset", "image", "file":
			default:
				out = append(out, entry{name, dom.Value(n)})
			}
		case atom.Textarea:
			out = append(out, entry{name, dom.Value(n)})
			return false
		case atom.Select:
			for _, v := range dom.SelectedValues(n) {
				out = append(out, entry{name, v})
			}
			return false
		}
		return true
	})
	return out
}
