package reconcile

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/vango-dev/falk/pkg/dom"
)

// Options control a single patch.
type Options struct {
	// PreserveValues keeps user-entered form control values.
	PreserveValues bool

	// Force disables preservation of flagged subtrees.
	Force bool

	// RespectSkip honors data-skip-rerendering.
	RespectSkip bool

	OnMount         func(n *html.Node)
	OnRender        func(n *html.Node)
	OnBeforeUnmount func(n *html.Node)
}

// Result describes what a patch did.
type Result struct {
	// Root is the patched root. It differs from the live node passed to
	// Patch when the root had to be replaced, and is nil when the
	// replacement was nil.
	Root *html.Node

	Ops       []Op
	Mounted   []string
	Unmounted []string
}

type patcher struct {
	opts   Options
	before map[string]struct{}
	result *Result
}

// Patch morphs live into next. next is consumed: nodes inserted into the
// live tree are moved out of it.
func Patch(live, next *html.Node, opts Options) *Result {
	res := &Result{Root: live}
	if live == nil {
		return res
	}

	p := &patcher{opts: opts, result: res}

	if p.preserved(live) {
		return res
	}

	p.before = dom.ComponentIDs(live)

	switch {
	case next == nil:
		p.discard(live)
		res.Root = nil
		return res

	case !compatibleRoot(live, next):
		p.unmount(live)
		dom.Detach(next)
		if parent := live.Parent; parent != nil {
			parent.InsertBefore(next, live)
			parent.RemoveChild(live)
		}
		p.record(OpReplace, next)
		res.Root = next

	default:
		p.morph(live, next)
	}

	p.renderPass(res.Root)
	return res
}

// PatchAttributes copies next's attributes onto live without looking at
// either node's children.
func PatchAttributes(live, next *html.Node) *Result {
	res := &Result{Root: live}
	if !dom.IsElement(live) || !dom.IsElement(next) {
		return res
	}
	p := &patcher{result: res}
	p.syncAttrs(live, next)
	return res
}

func (p *patcher) preserved(n *html.Node) bool {
	if p.opts.Force || !dom.IsElement(n) {
		return false
	}
	if dom.ShouldPreserve(n) {
		return true
	}
	return p.opts.RespectSkip && dom.ShouldSkip(n)
}

func (p *patcher) morph(from, to *html.Node) {
	switch from.Type {
	case html.TextNode, html.CommentNode:
		if from.Data != to.Data {
			from.Data = to.Data
			p.record(OpSetText, from)
		}
		return
	case html.DocumentNode:
		p.morphChildren(from, to)
		return
	case html.ElementNode:
	default:
		return
	}

	if dom.IsAsset(from) || p.preserved(from) {
		return
	}

	if p.opts.PreserveValues && dom.IsValueControl(from) && dom.IsValueControl(to) && keepValue(from, to) {
		p.record(OpSetValue, from)
	}

	p.syncAttrs(from, to)
	p.morphChildren(from, to)
}

func (p *patcher) syncAttrs(from, to *html.Node) {
	if dom.SameAttrs(from, to) {
		return
	}
	from.Attr = append([]html.Attribute(nil), to.Attr...)
	p.record(OpSetAttrs, from)
}

func (p *patcher) morphChildren(from, to *html.Node) {
	var next []*html.Node
	for c := to.FirstChild; c != nil; c = c.NextSibling {
		next = append(next, c)
	}

	keyed := make(map[string]*html.Node)
	for c := from.FirstChild; c != nil; c = c.NextSibling {
		if k := dom.Key(c); k != "" {
			if _, dup := keyed[k]; !dup {
				keyed[k] = c
			}
		}
	}

	used := make(map[*html.Node]bool)
	cur := from.FirstChild

	for _, nc := range next {
		cur = skipInert(cur, used)

		// New assets are inserted by the asset loader, not by the diff.
		if dom.IsAsset(nc) {
			continue
		}

		if key := dom.Key(nc); key != "" {
			if match, ok := keyed[key]; ok && !used[match] && sameTag(match, nc) {
				used[match] = true
				if match == cur {
					cur = cur.NextSibling
				} else {
					from.RemoveChild(match)
					from.InsertBefore(match, cur)
					p.record(OpMove, match)
				}
				p.morph(match, nc)
				continue
			}
		} else if cur != nil && dom.Key(cur) == "" && compatible(cur, nc) {
			match := cur
			used[match] = true
			cur = cur.NextSibling
			p.morph(match, nc)
			continue
		}

		to.RemoveChild(nc)
		from.InsertBefore(nc, cur)
		used[nc] = true
		p.record(OpInsert, nc)
	}

	for c := cur; c != nil; {
		following := c.NextSibling
		if !used[c] {
			p.discard(c)
		}
		c = following
	}
}

// skipInert advances past nodes that were already matched and live assets.
func skipInert(n *html.Node, used map[*html.Node]bool) *html.Node {
	for n != nil && (used[n] || dom.IsAsset(n)) {
		n = n.NextSibling
	}
	return n
}

func (p *patcher) discard(n *html.Node) {
	if dom.IsElement(n) {
		if dom.IsAsset(n) || p.preserved(n) {
			return
		}
		p.unmount(n)
	}
	dom.Detach(n)
	p.record(OpRemove, n)
}

func (p *patcher) unmount(n *html.Node) {
	dom.WalkComponents(n, nil, func(c *html.Node) {
		id := dom.NodeID(c)
		delete(p.before, id)
		p.result.Unmounted = append(p.result.Unmounted, id)
		if p.opts.OnBeforeUnmount != nil {
			p.opts.OnBeforeUnmount(c)
		}
	})
}

func (p *patcher) renderPass(root *html.Node) {
	prune := func(n *html.Node) bool {
		return n != root && p.preserved(n)
	}
	dom.WalkComponents(root, prune, func(n *html.Node) {
		id := dom.NodeID(n)
		if _, seen := p.before[id]; !seen {
			p.before[id] = struct{}{}
			p.result.Mounted = append(p.result.Mounted, id)
			if p.opts.OnMount != nil {
				p.opts.OnMount(n)
			}
		}
		if p.opts.OnRender != nil {
			p.opts.OnRender(n)
		}
	})
}

func (p *patcher) record(kind OpKind, n *html.Node) {
	tag := n.Data
	switch n.Type {
	case html.TextNode:
		tag = "#text"
	case html.CommentNode:
		tag = "#comment"
	}
	p.result.Ops = append(p.result.Ops, Op{Kind: kind, Tag: tag, Key: dom.Key(n)})
}

// keepValue copies the user value of from onto to. It reports whether the
// values differed.
func keepValue(from, to *html.Node) bool {
	if dom.IsMultiSelect(from) && dom.IsMultiSelect(to) {
		live := dom.SelectedValues(from)
		if slices.Equal(live, dom.SelectedValues(to)) {
			return false
		}
		dom.SetSelectedValues(to, live)
		return true
	}
	live := dom.Value(from)
	if live == dom.Value(to) {
		return false
	}
	dom.SetValue(to, live)
	return true
}

func compatible(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return sameTag(a, b)
	}
	return true
}

func compatibleRoot(live, next *html.Node) bool {
	if !compatible(live, next) {
		return false
	}
	return dom.NodeID(live) == dom.NodeID(next)
}

func sameTag(a, b *html.Node) bool {
	return a.Type == b.Type && a.Data == b.Data && a.Namespace == b.Namespace
}
