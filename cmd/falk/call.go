package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/falk/pkg/client"
	"github.com/vango-dev/falk/pkg/dom"
	"github.com/vango-dev/falk/pkg/event"
	"github.com/vango-dev/falk/pkg/upload"
)

type callFlags struct {
	selector  string
	nodeID    string
	callback  string
	args      string
	event     string
	form      []string
	files     []string
	delay     string
	stopEvent bool

	s3Region   string
	s3Endpoint string
}

func callCmd(g *globalFlags) *cobra.Command {
	f := &callFlags{}

	cmd := &cobra.Command{
		Use:   "call <url>",
		Short: "Call a server callback on a component",
		Long: `Load the page at <url>, start the runtime, call one server callback
and print the document once the call and every callback it chains have
settled.

Target the call with --selector or --node-id. --form sets control values
before the event is summarized, --file attaches a local file or an
s3://bucket/key object and sends the call as multipart.

Examples:
  falk call http://localhost:8000/ --node-id counter --callback inc
  falk call http://localhost:8000/ --selector "#save" --callback save --args '{"draft":true}'
  falk call http://localhost:8000/profile --selector form --callback upload \
      --form name=Ada --file avatar=./me.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], g, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.selector, "selector", "", "CSS selector of the target (every match is called)")
	flags.StringVar(&f.nodeID, "node-id", "", "Component id of the target")
	flags.StringVar(&f.callback, "callback", "", "Server callback name")
	flags.StringVar(&f.args, "args", "", "Callback arguments as JSON")
	flags.StringVar(&f.event, "event", "", "Event type to summarize (default submit when --form or --file is set)")
	flags.StringArrayVar(&f.form, "form", nil, "Set a control value before the call (name=value, repeatable)")
	flags.StringArrayVar(&f.files, "file", nil, "Attach a file (key=path or key=s3://bucket/key, repeatable)")
	flags.StringVar(&f.delay, "delay", "", `Delay before sending (e.g. "250ms", "1.5")`)
	flags.BoolVar(&f.stopEvent, "stop", false, "Stop the event before sending")
	flags.StringVar(&f.s3Region, "s3-region", "", "AWS region for s3:// files (default $AWS_REGION)")
	flags.StringVar(&f.s3Endpoint, "s3-endpoint", "", "Endpoint of an S3-compatible store")

	cmd.MarkFlagRequired("callback")
	cmd.MarkFlagsMutuallyExclusive("selector", "node-id")
	cmd.MarkFlagsOneRequired("selector", "node-id")

	return cmd
}

func runCall(cmd *cobra.Command, pageURL string, g *globalFlags, f *callFlags) error {
	ctx := cmd.Context()

	form, err := parsePairs(f.form)
	if err != nil {
		return fmt.Errorf("--form: %w", err)
	}
	var args any
	if f.args != "" {
		if err := json.Unmarshal([]byte(f.args), &args); err != nil {
			return fmt.Errorf("--args is not valid JSON: %w", err)
		}
	}

	files, err := openFiles(ctx, f.fileSource(), f.files)
	if err != nil {
		return err
	}
	defer func() {
		if err := upload.CloseAll(files); err != nil {
			errorMsg("Closing files: %v", err)
		}
	}()

	rt, err := startRuntime(ctx, pageURL, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := client.CallOptions{
		Selector:  f.selector,
		NodeID:    f.nodeID,
		Callback:  f.callback,
		Args:      args,
		StopEvent: f.stopEvent,
	}
	if f.delay != "" {
		opts.Delay = f.delay
	}

	eventType := f.event
	if eventType == "" && (len(form) > 0 || len(files) > 0) {
		eventType = "submit"
	}
	if eventType != "" {
		ev := &event.Event{Type: eventType, Files: files}
		err := rt.Update(func(doc *html.Node) error {
			target, err := eventTarget(doc, f.selector, f.nodeID, eventType)
			if err != nil {
				return err
			}
			ev.Target = target
			return applyForm(target, form)
		})
		if err != nil {
			return err
		}
		opts.Event = ev
	}

	if err := rt.RunCallback(ctx, opts); err != nil {
		return err
	}
	rt.Wait()
	success("Called %s", f.callback)

	return finish(cmd.OutOrStdout(), rt, g)
}

func (f *callFlags) fileSource() upload.Source {
	r := &upload.Resolver{Disk: &upload.DiskSource{}}
	for _, field := range f.files {
		if strings.Contains(field, "=s3://") {
			r.S3 = upload.NewS3Source(upload.NewS3Client(f.s3Region, f.s3Endpoint))
			break
		}
	}
	return r
}

// pair is one name=value flag value.
type pair struct {
	name  string
	value string
}

func parsePairs(values []string) ([]pair, error) {
	out := make([]pair, 0, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not name=value", v)
		}
		out = append(out, pair{name: name, value: value})
	}
	return out, nil
}

// openFiles opens every key=ref field. On error the files opened so far
// are closed.
func openFiles(ctx context.Context, src upload.Source, fields []string) ([]upload.File, error) {
	var files []upload.File
	for _, field := range fields {
		file, err := upload.OpenField(ctx, src, field)
		if err != nil {
			upload.CloseAll(files)
			return nil, fmt.Errorf("--file %s: %w", field, err)
		}
		files = append(files, *file)
	}
	return files, nil
}

// eventTarget finds the element an event is dispatched on: the first match
// of the call target, widened to its form for submit events.
func eventTarget(doc *html.Node, selector, nodeID, eventType string) (*html.Node, error) {
	var target *html.Node
	if selector != "" {
		n, err := dom.Query(doc, selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
		}
		target = n
	} else {
		target = dom.FindByNodeID(doc, nodeID)
	}
	if target == nil {
		return nil, fmt.Errorf("no element for the event target")
	}

	if eventType == "submit" && target.DataAtom != atom.Form {
		for n := target.Parent; n != nil; n = n.Parent {
			if n.Type == html.ElementNode && n.DataAtom == atom.Form {
				return n, nil
			}
		}
	}
	return target, nil
}

// applyForm sets control values under target, or target's own value when
// it is the named control.
func applyForm(target *html.Node, form []pair) error {
	for _, p := range form {
		if dom.Attr(target, "name") == p.name {
			dom.SetValue(target, p.value)
			continue
		}
		controls, err := dom.QueryAll(target, fmt.Sprintf("[name=%q]", p.name))
		if err != nil {
			return fmt.Errorf("--form %s: %w", p.name, err)
		}
		if len(controls) == 0 {
			return fmt.Errorf("--form %s: no control with that name", p.name)
		}
		for _, c := range controls {
			dom.SetValue(c, p.value)
		}
	}
	return nil
}
