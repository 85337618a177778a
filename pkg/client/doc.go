// Package client is the falk runtime: it owns a live document, issues
// mutation calls against its components and reconciles the returned markup
// into the tree.
//
// A Runtime serializes every tree, token and hook step behind one lock.
// Transport waits, script loads and callback delays happen outside it, so
// many round trips may be in flight while patches still apply one at a time.
//
//	rt, err := client.Load(ctx, "http://localhost:8000/", client.Options{})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	err = rt.RunCallback(ctx, client.CallOptions{
//	    Selector: "#save",
//	    Callback: "save",
//	    Args:     map[string]any{"id": 1},
//	})
//
// Hook handlers run with the document locked. They may read tokens and
// schedule calls with Go, but must not call RunCallback, View or Update.
package client
