// Package falktest provides a scripted falk server and markup assertions
// for testing code built on the falk runtime.
//
// # Quick Start
//
//	func TestSave(t *testing.T) {
//	    page := falktest.Page("App", falktest.Component("div", "form", "t1", "<p>draft</p>"))
//	    srv := falktest.New(t, page, func(req *falktest.Request) *protocol.Response {
//	        return &protocol.Response{
//	            Body:   falktest.Component("div", "form", "t2", "<p>saved</p>"),
//	            Tokens: map[string]string{"form": "t2"},
//	        }
//	    })
//
//	    rt, err := client.Load(ctx, srv.URL, client.Options{HTTPClient: srv.Client()})
//	    ...
//	    falktest.ExpectContains(t, rt.HTML(), "saved")
//	}
//
// # Transports
//
// The server answers plain POSTs, multipart POSTs and WebSocket frames on
// the page URL. Every request is recorded with the transport it used; see
// Server.Requests. WithoutWebSocket refuses the upgrade so the runtime falls
// back to HTTP, and DropConnections closes open channels mid-flight.
//
// Frames are answered concurrently, so a handler that blocks on one
// request lets later requests overtake it.
package falktest
