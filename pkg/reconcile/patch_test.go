package reconcile

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/vango-dev/falk/pkg/dom"
)

// fragment parses markup and returns the first element in <body>.
func fragment(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString("<html><head></head><body>" + markup + "</body></html>")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	n := dom.FirstElementChild(dom.Body(doc))
	if n == nil {
		t.Fatalf("no element in %q", markup)
	}
	return n
}

func find(t *testing.T, root *html.Node, selector string) *html.Node {
	t.Helper()
	// cascadia only searches descendants, so wrap the root.
	n, err := dom.Query(root.Parent, selector)
	if err != nil || n == nil {
		t.Fatalf("Query(%q) = %v, %v", selector, n, err)
	}
	return n
}

type hookLog struct {
	mounted   []string
	rendered  []string
	unmounted []string
}

func (h *hookLog) options() Options {
	return Options{
		PreserveValues: true,
		RespectSkip:    true,
		OnMount:        func(n *html.Node) { h.mounted = append(h.mounted, dom.NodeID(n)) },
		OnRender:       func(n *html.Node) { h.rendered = append(h.rendered, dom.NodeID(n)) },
		OnBeforeUnmount: func(n *html.Node) {
			h.unmounted = append(h.unmounted, dom.NodeID(n))
		},
	}
}

const counter = `<div data-falk-id="root">` +
	`<div data-falk-id="a" data-falk-preserve class="keep" style="color: red"><span>kept</span></div>` +
	`<p id="msg">Hello</p>` +
	`<div data-falk-id="b"><span data-falk-id="c">1</span></div>` +
	`</div>`

func TestPatchIdenticalMarkupIsIdempotent(t *testing.T) {
	live := fragment(t, counter)
	preserved := find(t, live, "[data-falk-id=a]")
	attrsBefore := append([]html.Attribute(nil), preserved.Attr...)

	var h hookLog
	res := Patch(live, fragment(t, counter), h.options())

	if len(res.Ops) != 0 {
		t.Errorf("Ops = %v, want none", res.Ops)
	}
	if len(h.mounted) != 0 || len(h.unmounted) != 0 {
		t.Errorf("mounted=%v unmounted=%v, want none", h.mounted, h.unmounted)
	}
	if len(preserved.Attr) != len(attrsBefore) {
		t.Fatalf("preserved attrs changed: %v", preserved.Attr)
	}
	for i := range attrsBefore {
		if preserved.Attr[i] != attrsBefore[i] {
			t.Errorf("preserved attr %d = %v, want %v", i, preserved.Attr[i], attrsBefore[i])
		}
	}
	if res.Root != live {
		t.Error("root must be patched in place")
	}
}

func TestPatchRenderPass(t *testing.T) {
	live := fragment(t, counter)

	var h hookLog
	Patch(live, fragment(t, counter), h.options())

	// a is preserved and pruned from the pass; children come first.
	if got := strings.Join(h.rendered, ","); got != "c,b,root" {
		t.Errorf("rendered = %s, want c,b,root", got)
	}
}

func TestPatchValuePreservation(t *testing.T) {
	tests := []struct {
		name           string
		preserveValues bool
		force          bool
		want           string
	}{
		{name: "input event keeps draft", preserveValues: true, want: "draft"},
		{name: "submit takes server value", preserveValues: false, want: "server"},
		{name: "forced render takes server value", preserveValues: false, force: true, want: "server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := fragment(t, `<form data-falk-id="f"><input name="q" value="initial"></form>`)
			dom.SetValue(find(t, live, "input"), "draft")

			res := Patch(live, fragment(t, `<form data-falk-id="f"><input name="q" value="server"></form>`), Options{
				PreserveValues: tt.preserveValues,
				Force:          tt.force,
			})

			if got := dom.Value(find(t, res.Root, "input")); got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPatchValuePreservationTextareaAndSelect(t *testing.T) {
	live := fragment(t, `<div data-falk-id="f">`+
		`<textarea>typed</textarea>`+
		`<select><option value="1">1</option><option value="2" selected>2</option></select>`+
		`</div>`)

	Patch(live, fragment(t, `<div data-falk-id="f">`+
		`<textarea>server</textarea>`+
		`<select><option value="1" selected>1</option><option value="2">2</option></select>`+
		`</div>`), Options{PreserveValues: true})

	if got := dom.Value(find(t, live, "textarea")); got != "typed" {
		t.Errorf("textarea = %q, want typed", got)
	}
	if got := dom.Value(find(t, live, "select")); got != "2" {
		t.Errorf("select = %q, want 2", got)
	}
}

func TestPatchValuePreservationMultiSelect(t *testing.T) {
	live := fragment(t, `<div data-falk-id="f"><select name="tags" multiple>`+
		`<option value="a" selected>a</option><option value="b">b</option><option value="c" selected>c</option>`+
		`</select></div>`)

	Patch(live, fragment(t, `<div data-falk-id="f"><select name="tags" multiple>`+
		`<option value="a">a</option><option value="b" selected>b</option><option value="c">c</option>`+
		`</select></div>`), Options{PreserveValues: true})

	if got := strings.Join(dom.SelectedValues(find(t, live, "select")), ","); got != "a,c" {
		t.Errorf("selected = %s, want a,c", got)
	}
}

func TestPatchHiddenInputIsNotValuePreserved(t *testing.T) {
	live := fragment(t, `<div data-falk-id="f"><input type="hidden" name="t" value="old"></div>`)

	Patch(live, fragment(t, `<div data-falk-id="f"><input type="hidden" name="t" value="new"></div>`), Options{PreserveValues: true})

	if got := dom.Value(find(t, live, "input")); got != "new" {
		t.Errorf("hidden input = %q, want new", got)
	}
}

func TestPatchForceOverridesPreservation(t *testing.T) {
	live := fragment(t, `<div data-falk-id="root"><div id="x" data-falk-preserve>old</div></div>`)
	next := `<div data-falk-id="root"><div id="x" data-falk-preserve class="fresh">new</div></div>`

	Patch(live, fragment(t, next), Options{RespectSkip: true})
	if got := dom.TextContent(live); got != "old" {
		t.Fatalf("unforced patch changed preserved subtree: %q", got)
	}

	Patch(live, fragment(t, next), Options{Force: true})
	x := find(t, live, "#x")
	if got := dom.TextContent(x); got != "new" {
		t.Errorf("forced patch text = %q, want new", got)
	}
	if dom.Attr(x, "class") != "fresh" {
		t.Errorf("forced patch attrs = %v", x.Attr)
	}
}

func TestPatchPreservedRootIsUntouched(t *testing.T) {
	live := fragment(t, `<div data-falk-id="a" data-falk-preserve>old</div>`)

	var h hookLog
	res := Patch(live, fragment(t, `<div data-falk-id="a">new</div>`), h.options())

	if dom.TextContent(live) != "old" || len(res.Ops) != 0 || len(h.rendered) != 0 {
		t.Errorf("preserved root was touched: text=%q ops=%v rendered=%v", dom.TextContent(live), res.Ops, h.rendered)
	}
}

func TestPatchSkipFlagRequiresRespectSkip(t *testing.T) {
	markup := `<div data-falk-id="root"><div id="x" data-skip-rerendering>old</div></div>`
	next := `<div data-falk-id="root"><div id="x" data-skip-rerendering>new</div></div>`

	live := fragment(t, markup)
	Patch(live, fragment(t, next), Options{RespectSkip: true})
	if dom.TextContent(live) != "old" {
		t.Errorf("skip flag ignored with RespectSkip: %q", dom.TextContent(live))
	}

	live = fragment(t, markup)
	Patch(live, fragment(t, next), Options{})
	if dom.TextContent(live) != "new" {
		t.Errorf("skip flag honored without RespectSkip: %q", dom.TextContent(live))
	}
}

func TestPatchKeyedReorderKeepsIdentity(t *testing.T) {
	live := fragment(t, `<ul data-falk-id="list"><li id="one">1</li><li id="two">2</li><li id="three">3</li></ul>`)
	one := find(t, live, "#one")
	three := find(t, live, "#three")

	res := Patch(live, fragment(t, `<ul data-falk-id="list"><li id="three">3</li><li id="one">1</li></ul>`), Options{})

	if first := dom.FirstElementChild(live); first != three {
		t.Errorf("first child = %v, want the original #three node", dom.Render(first))
	}
	if find(t, live, "#one") != one {
		t.Error("#one lost its identity")
	}
	if got := dom.Render(live); got != `<ul data-falk-id="list"><li id="three">3</li><li id="one">1</li></ul>` {
		t.Errorf("result = %s", got)
	}

	var moved, removed int
	for _, op := range res.Ops {
		switch op.Kind {
		case OpMove:
			moved++
		case OpRemove:
			removed++
		}
	}
	if moved != 1 || removed != 1 {
		t.Errorf("moved=%d removed=%d, want 1 and 1 (ops %v)", moved, removed, res.Ops)
	}
}

func TestPatchUnmountAndMount(t *testing.T) {
	live := fragment(t, `<div data-falk-id="root">`+
		`<div data-falk-id="old"><span data-falk-id="child"></span></div>`+
		`</div>`)

	var h hookLog
	res := Patch(live, fragment(t, `<div data-falk-id="root"><div data-falk-id="new">fresh</div></div>`), h.options())

	if got := strings.Join(h.unmounted, ","); got != "child,old" {
		t.Errorf("unmounted = %s, want child,old", got)
	}
	if got := strings.Join(h.mounted, ","); got != "new" {
		t.Errorf("mounted = %s, want new", got)
	}
	if got := strings.Join(h.rendered, ","); got != "new,root" {
		t.Errorf("rendered = %s, want new,root", got)
	}
	if len(res.Unmounted) != 2 || len(res.Mounted) != 1 {
		t.Errorf("result mounted=%v unmounted=%v", res.Mounted, res.Unmounted)
	}
}

func TestPatchRemountOfSameIdAfterMoveAcrossParents(t *testing.T) {
	live := fragment(t, `<div data-falk-id="root"><section><p data-falk-id="x">a</p></section><aside></aside></div>`)

	var h hookLog
	Patch(live, fragment(t, `<div data-falk-id="root"><section></section><aside><p data-falk-id="x">a</p></aside></div>`), h.options())

	if strings.Join(h.unmounted, ",") != "x" || strings.Join(h.mounted, ",") != "x" {
		t.Errorf("unmounted=%v mounted=%v, want x unmounted then remounted", h.unmounted, h.mounted)
	}
}

func TestPatchReplacesRootWithDifferentComponent(t *testing.T) {
	live := fragment(t, `<div data-falk-id="a">A</div>`)
	parent := live.Parent

	var h hookLog
	res := Patch(live, fragment(t, `<div data-falk-id="b">B</div>`), h.options())

	if res.Root == live {
		t.Fatal("root should have been replaced")
	}
	if res.Root.Parent != parent || live.Parent != nil {
		t.Error("replacement not swapped into the parent")
	}
	if strings.Join(h.unmounted, ",") != "a" || strings.Join(h.mounted, ",") != "b" {
		t.Errorf("unmounted=%v mounted=%v", h.unmounted, h.mounted)
	}
}

func TestPatchNilReplacementDiscards(t *testing.T) {
	live := fragment(t, `<div data-falk-id="a"></div>`)
	parent := live.Parent

	var h hookLog
	res := Patch(live, nil, h.options())

	if res.Root != nil || live.Parent != nil || parent.FirstChild != nil {
		t.Error("nil replacement should remove the live node")
	}
	if strings.Join(h.unmounted, ",") != "a" {
		t.Errorf("unmounted = %v", h.unmounted)
	}
}

func TestPatchLeavesAssetsAlone(t *testing.T) {
	live := fragment(t, `<div data-falk-id="root"><style id="s">.a{}</style><p>x</p></div>`)

	res := Patch(live, fragment(t, `<div data-falk-id="root"><p>y</p><script src="/new.js"></script></div>`), Options{})

	if got := dom.Render(live); got != `<div data-falk-id="root"><style id="s">.a{}</style><p>y</p></div>` {
		t.Errorf("result = %s", got)
	}
	for _, op := range res.Ops {
		if op.Tag == "style" || op.Tag == "script" {
			t.Errorf("asset touched: %v", op)
		}
	}
}

func TestPatchAttributesIgnoresChildren(t *testing.T) {
	live := fragment(t, `<div data-falk-id="r" data-falk-token="t1"><p>keep</p></div>`)

	res := PatchAttributes(live, fragment(t, `<div data-falk-id="r" data-falk-token="t2" onrender="x"><p>drop</p></div>`))

	if dom.Attr(live, "data-falk-token") != "t2" || dom.Attr(live, "onrender") != "x" {
		t.Errorf("attrs = %v", live.Attr)
	}
	if dom.TextContent(live) != "keep" {
		t.Errorf("children changed: %q", dom.TextContent(live))
	}
	if len(res.Ops) != 1 || res.Ops[0].Kind != OpSetAttrs {
		t.Errorf("ops = %v", res.Ops)
	}
}

func TestOpKindString(t *testing.T) {
	if OpMove.String() != "Move" || OpKind(99).String() != "Unknown" {
		t.Error("unexpected OpKind strings")
	}
}
