package client

import (
	"bytes"
	"context"
	"io"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/falk/internal/duration"
	"github.com/vango-dev/falk/internal/errors"
	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/event"
	"github.com/vango-dev/falk/pkg/hooks"
	"github.com/vango-dev/falk/pkg/protocol"
	"github.com/vango-dev/falk/pkg/reconcile"
	"github.com/vango-dev/falk/pkg/transport"
	"github.com/vango-dev/falk/pkg/upload"
)

// transportCustom labels requests sent through Options.Transport.
const transportCustom = "custom"

type requestInfo struct {
	id        uint64
	nodeID    string
	callback  string
	transport string
}

// RunCallback calls a server callback on every targeted component and
// returns once each round trip has been patched in. A malformed delay or a
// missing target fails before any request is sent. Callbacks chained by the
// responses are started with Go and not awaited.
func (r *Runtime) RunCallback(ctx context.Context, opts CallOptions) error {
	delay, err := duration.Parse(opts.Delay)
	if err != nil {
		return err
	}

	targets, err := r.targets(opts)
	if err != nil {
		return err
	}

	if opts.StopEvent {
		opts.Event.Stop()
	}

	if len(targets) == 1 {
		return r.call(ctx, targets[0], opts, delay)
	}

	// Each target sends its own copy of the files.
	contents, err := bufferFiles(opts.Event)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, target := range targets {
		targetOpts := opts
		if contents != nil {
			ev := *opts.Event
			ev.Files = contents.files()
			targetOpts.Event = &ev
		}
		g.Go(func() error {
			return r.call(ctx, target, targetOpts, delay)
		})
	}
	return g.Wait()
}

// fileContents holds uploaded files read into memory.
type fileContents struct {
	meta []upload.File
	data [][]byte
}

// bufferFiles reads the files of ev once. It returns nil when ev carries
// no files.
func bufferFiles(ev *event.Event) (*fileContents, error) {
	if ev == nil || len(ev.Files) == 0 {
		return nil, nil
	}
	c := &fileContents{}
	for _, f := range ev.Files {
		var data []byte
		if f.Reader != nil {
			b, err := io.ReadAll(f.Reader)
			if err != nil {
				return nil, errors.New("E001").WithDetailf("reading file %q", f.Filename).Wrap(err)
			}
			data = b
			f.Size = int64(len(b))
		}
		f.Reader = nil
		c.meta = append(c.meta, f)
		c.data = append(c.data, data)
	}
	return c, nil
}

// files returns fresh readers over the buffered contents.
func (c *fileContents) files() []upload.File {
	out := make([]upload.File, len(c.meta))
	for i, f := range c.meta {
		f.Reader = io.NopCloser(bytes.NewReader(c.data[i]))
		out[i] = f
	}
	return out
}

// targets resolves the components a call is addressed to. A node without a
// component id resolves to its closest component ancestor.
func (r *Runtime) targets(opts CallOptions) ([]*html.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*html.Node
	switch {
	case opts.Node != nil:
		if !dom.Contains(r.doc, opts.Node) {
			return nil, errors.New("E031").WithDetail("node is not attached to the document")
		}
		matches = []*html.Node{opts.Node}

	case opts.NodeID != "":
		n := dom.FindByNodeID(r.doc, opts.NodeID)
		if n == nil {
			return nil, errors.New("E031").WithDetailf("no component with id %q", opts.NodeID)
		}
		matches = []*html.Node{n}

	case opts.Selector != "":
		nodes, err := dom.QueryAll(r.doc, opts.Selector)
		if err != nil {
			return nil, errors.New("E031").WithDetailf("invalid selector %q", opts.Selector).Wrap(err)
		}
		if len(nodes) == 0 {
			return nil, errors.New("E031").WithDetailf("selector %q matches nothing", opts.Selector)
		}
		matches = nodes

	default:
		return nil, errors.New("E032")
	}

	seen := make(map[*html.Node]bool, len(matches))
	targets := make([]*html.Node, 0, len(matches))
	for _, n := range matches {
		c := closestComponent(n)
		if c == nil {
			return nil, errors.New("E031").WithDetailf("<%s> is not inside a component", n.Data)
		}
		if !seen[c] {
			seen[c] = true
			targets = append(targets, c)
		}
	}
	return targets, nil
}

func closestComponent(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if dom.HasNodeID(n) {
			return n
		}
	}
	return nil
}

// call runs one target's round trip: request, assets, patch, token merge,
// hooks and chaining, strictly in that order.
func (r *Runtime) call(ctx context.Context, target *html.Node, opts CallOptions, delay time.Duration) (err error) {
	id := r.nextID.Add(1)

	r.mu.Lock()
	nodeID := dom.NodeID(target)
	summary := event.Summarize(opts.Event)
	r.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	// The token is read after the delay; an overlapping call may have
	// replaced or evicted it meanwhile.
	r.mu.Lock()
	token, _ := r.tokens.Get(nodeID)
	req := protocol.NewRequest(id, nodeID, token, opts.Callback, opts.Args)
	req.Event = summary.Data
	req.UploadToken = summary.UploadToken
	proceed := r.hooks.Dispatch(hooks.BeforeRequest, target, map[string]any{
		"requestId":    id,
		"callbackName": opts.Callback,
	})
	r.mu.Unlock()

	if !proceed {
		r.logger.Debug("request cancelled by beforerequest", "request_id", id, "node_id", nodeID)
		return nil
	}

	tr, name := r.transportFor(summary.HasFiles())
	info := requestInfo{id: id, nodeID: nodeID, callback: opts.Callback, transport: name}

	ctx, span := r.startRoundTrip(ctx, info)
	rendered := 0
	defer func() { endRoundTrip(span, err, rendered) }()

	resp, err := r.send(ctx, tr, info, req, summary.Files)
	if err != nil {
		r.logger.Error("mutation request failed",
			"request_id", id,
			"node_id", nodeID,
			"callback", opts.Callback,
			"transport", name,
			"error", err)
		return err
	}

	rendered, err = r.apply(ctx, target, opts.Event, info, resp)
	if err != nil {
		return err
	}

	for _, cb := range resp.Callbacks {
		r.logger.Debug("chaining callback", "request_id", id, "callback", cb.String())
		r.Go(callOptions(cb))
	}
	return nil
}

// transportFor picks the transport of one request.
func (r *Runtime) transportFor(files bool) (transport.Transport, string) {
	switch {
	case r.override != nil:
		return r.override, transportCustom
	case files:
		return r.http, transport.NameMultipart
	case r.ws != nil && r.wsReady.Load():
		return r.ws, transport.NameWebSocket
	default:
		return r.http, transport.NameHTTP
	}
}

func (r *Runtime) send(ctx context.Context, tr transport.Transport, info requestInfo, req *protocol.Request, files []upload.File) (*protocol.Response, error) {
	if timeout := r.config.RequestTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.metrics.inFlight.Inc()
	start := time.Now()

	var resp *protocol.Response
	var err error
	if len(files) > 0 {
		resp, err = tr.SendMultipartMutationRequest(ctx, req, files)
	} else {
		resp, err = tr.SendMutationRequest(ctx, req)
	}

	r.metrics.inFlight.Dec()
	outcome := outcomeOK
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = outcomeCancelled
	case err != nil:
		outcome = outcomeError
	}
	r.metrics.observeRequest(info.transport, outcome, time.Since(start))

	return resp, err
}

// apply handles a response: response hook, assets, patch, tokens, render
// hooks. It returns the number of components rendered.
func (r *Runtime) apply(ctx context.Context, target *html.Node, ev *event.Event, info requestInfo, resp *protocol.Response) (int, error) {
	r.mu.Lock()
	r.hooks.Dispatch(hooks.Response, target, map[string]any{
		"requestId":      info.id,
		"callbackName":   info.callback,
		"skipRendering":  resp.Flags.SkipRendering,
		"forceRendering": resp.Flags.ForceRendering,
	})
	r.mu.Unlock()

	var fetched *html.Node
	if resp.Flags.Render() {
		var err error
		fetched, err = dom.ParseString(resp.Body)
		if err != nil {
			return 0, errors.New("E011").WithDetail("response markup").Wrap(err)
		}

		r.mu.Lock()
		scripts := r.assets.Insert(r.doc, fetched)
		r.mu.Unlock()

		if err := r.assets.Wait(ctx, scripts); err != nil {
			r.logger.Warn("script load failed", "request_id", info.id, "error", err)
		}
	} else {
		r.logger.Debug("rendering skipped", "request_id", info.id, "node_id", info.nodeID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var rendered []*html.Node
	if fetched != nil {
		rendered = r.patch(target, fetched, ev, resp.Flags)
	}
	r.mergeTokens(rendered, resp.Tokens)
	r.fireRender(rendered)
	return len(rendered), nil
}

// patch reconciles fetched into the tree. The document element is patched
// in three independent steps: its own attributes, the title, the body.
// Callers hold r.mu.
func (r *Runtime) patch(target, fetched *html.Node, ev *event.Event, flags protocol.Flags) []*html.Node {
	if !dom.Contains(r.doc, target) {
		r.logger.Warn("target detached before patch", "node_id", dom.NodeID(target))
		return nil
	}

	submit := ev != nil && ev.Type == "submit"
	var rendered []*html.Node
	opts := reconcile.Options{
		PreserveValues: !submit && !flags.ForceRendering,
		Force:          flags.ForceRendering,
		RespectSkip:    true,
		OnMount: func(*html.Node) {
			r.metrics.mountsTotal.Inc()
		},
		OnRender: func(n *html.Node) {
			rendered = append(rendered, n)
		},
		OnBeforeUnmount: r.unmount,
	}

	if dom.IsDocumentElement(target) {
		if next := dom.DocumentElement(fetched); next != nil {
			reconcile.PatchAttributes(target, next)
		}
		dom.SetTitle(r.doc, dom.Title(fetched))
		if live, next := dom.Body(r.doc), dom.Body(fetched); live != nil && next != nil {
			reconcile.Patch(live, next, opts)
		}
		if dom.HasNodeID(target) {
			rendered = append(rendered, target)
		}
		return rendered
	}

	res := reconcile.Patch(target, firstUIElement(dom.Body(fetched)), opts)
	r.logger.Debug("patched",
		"node_id", dom.NodeID(target),
		"ops", len(res.Ops),
		"mounted", len(res.Mounted),
		"unmounted", len(res.Unmounted))
	return rendered
}

// unmount is the reconciler's before-unmount callback.
func (r *Runtime) unmount(n *html.Node) {
	id := dom.NodeID(n)
	r.hooks.Dispatch(hooks.BeforeUnmount, n, nil)
	r.tokens.Delete(id)
	delete(r.mounted, id)
	r.metrics.unmountsTotal.Inc()
}

// mergeTokens stores tokens carried by rendered nodes, then the response's
// tokens. Tokens for ids not in the document are dropped. Callers hold r.mu.
func (r *Runtime) mergeTokens(rendered []*html.Node, tokens map[string]string) {
	for _, n := range rendered {
		if tok, ok := dom.GetAttr(n, dom.AttrToken); ok {
			r.tokens.Set(dom.NodeID(n), tok)
		}
	}
	if len(tokens) == 0 {
		return
	}
	live := dom.ComponentIDs(r.doc)
	for id, tok := range tokens {
		if _, ok := live[id]; !ok {
			r.logger.Debug("dropping token for unmounted component", "node_id", id)
			continue
		}
		r.tokens.Set(id, tok)
	}
}

// fireRender fires initialrender for components seen for the first time,
// then render. Callers hold r.mu.
func (r *Runtime) fireRender(rendered []*html.Node) {
	for _, n := range rendered {
		id := dom.NodeID(n)
		if _, ok := r.mounted[id]; !ok {
			r.mounted[id] = struct{}{}
			r.hooks.Dispatch(hooks.InitialRender, n, nil)
		}
		r.hooks.Dispatch(hooks.Render, n, nil)
	}
}

// firstUIElement returns the first child of n that is not an asset.
func firstUIElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsUINode(c) {
			return c
		}
	}
	return nil
}
