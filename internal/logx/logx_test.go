package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithNativeAddsFields(t *testing.T) {
	capture := &logCapture{}
	log := WithNative(newCaptureLogger(capture), schema.NativeTab{
		Label: "a.go",
		Group: 2,
		Input: schema.FileInput{URI: "file:///a.go"},
	})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["label"] != "a.go" || entry["kind"] != "file" || entry["uri"] != "file:///a.go" {
		t.Fatalf("expected native fields, got %+v", entry)
	}
	if entry["group"] != float64(2) {
		t.Fatalf("expected group field, got %+v", entry)
	}
}

func TestWithNativeOmitsEmptyURI(t *testing.T) {
	capture := &logCapture{}
	log := WithNative(newCaptureLogger(capture), schema.NativeTab{Label: "Settings", Input: schema.WebviewInput{ViewType: "settings"}})
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["uri"]; ok {
		t.Fatalf("did not expect uri for webview tab")
	}
	if _, ok := entry["group"]; ok {
		t.Fatalf("did not expect group for zero group")
	}
}

func TestWithTabAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithDocument(WithTab(ctx, "file:///a.go-1"), "file:///a.go")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != "file:///a.go-1" {
		t.Fatalf("expected tab field, got %+v", entry)
	}
	if entry["document"] != "file:///a.go" {
		t.Fatalf("expected document field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
