// ABOUTME: End-to-end feedback loop tests: RPC client, dispatcher, and an engine on the other side
// ABOUTME: Checks that announcements from the engine come back as set_theme and set_language

package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/mauromedda/print-go/internal/core"
	"github.com/mauromedda/print-go/internal/dispatch"
	"github.com/mauromedda/print-go/internal/engine"
	"github.com/mauromedda/print-go/internal/protocol"
	"github.com/mauromedda/print-go/internal/rpc"
	"github.com/mauromedda/print-go/internal/transport"
)

func TestThemeFeedbackLoop(t *testing.T) {
	observed := make(chan string, 1)
	stub := engine.RunnerFunc(func(_ context.Context, in io.Reader, out io.WriteCloser) error {
		r := transport.NewLineReader(in)
		for {
			line, err := r.ReadLine()
			if err != nil {
				return nil
			}
			msg, err := protocol.Decode(line)
			if err != nil {
				continue
			}
			n, ok := msg.(*protocol.Notification)
			if !ok {
				continue
			}
			switch n.Method {
			case "client_started":
				reply, _ := protocol.EncodeNotification("available_themes", map[string][]string{"themes": {"dark", "light"}})
				if _, err := out.Write(reply); err != nil {
					return err
				}
			case "set_theme":
				var p struct {
					ThemeName string `json:"theme_name"`
				}
				_ = json.Unmarshal(n.Params, &p)
				observed <- p.ThemeName
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, opsCh, err := rpc.New(ctx, stub)
	if err != nil {
		t.Fatalf("rpc.New: %v", err)
	}
	defer client.Close()

	d := dispatch.New(client, dispatch.Options{})
	go func() { _ = d.Run(ctx, opsCh) }()

	if err := client.ClientStarted(nil, nil); err != nil {
		t.Fatalf("ClientStarted: %v", err)
	}
	select {
	case name := <-observed:
		if name != "InspiredGitHub" {
			t.Errorf("set_theme theme_name = %q; want InspiredGitHub", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine never observed set_theme")
	}
}

func TestEmbeddedCoreLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, opsCh, err := rpc.New(ctx, core.New())
	if err != nil {
		t.Fatalf("rpc.New: %v", err)
	}
	defer client.Close()

	d := dispatch.New(client, dispatch.Options{Language: "Go"})
	events, unsub := d.Events().SubscribeChan(64)
	defer unsub()
	go func() { _ = d.Run(ctx, opsCh) }()

	if err := client.ClientStarted(nil, nil); err != nil {
		t.Fatalf("ClientStarted: %v", err)
	}
	viewID, err := client.NewView(ctx, "")
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if err := d.Focus(viewID); err != nil {
		t.Fatalf("Focus: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		snap := d.Snapshot()
		if v, ok := snap.View(); ok && snap.Theme == "InspiredGitHub" && v.Loaded && v.Language == "Go" {
			return
		}
		select {
		case <-events:
		case <-deadline:
			t.Fatalf("state never settled: %+v", d.Snapshot())
		}
	}
}
