//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/kittclouds/readmark/internal/config"
	"github.com/kittclouds/readmark/internal/logx"
	"github.com/kittclouds/readmark/internal/store"
	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/export"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/overlay"
	"github.com/kittclouds/readmark/pkg/pagerect"
	"github.com/kittclouds/readmark/pkg/sab"
	"github.com/kittclouds/readmark/pkg/structural"
)

// Version info
const Version = "0.1.0"

// Global state, replaced wholesale by configure.
var (
	cfg       = config.Default()
	pages     = overlay.NewPages(cfg.Style())
	applier   = structural.NewApplier(cfg.Style())
	exporter  = export.New(cfg.Style())
	snapshots *store.SnapshotStore
)

func main() {
	println("[readmark] WASM Ready v" + Version)

	js.Global().Set("Readmark", js.ValueOf(map[string]interface{}{
		"version":   js.FuncOf(getVersion),
		"configure": js.FuncOf(configure),
		// Fixed-layout pages
		"encodePageSelection": js.FuncOf(encodePageSelection),
		"resolvePage":         js.FuncOf(resolvePage),
		"hitTest":             js.FuncOf(hitTest),
		"writePageMarks":      js.FuncOf(writePageMarks),
		"watchResolves":       js.FuncOf(watchResolves),
		"removeAnnotation":    js.FuncOf(removeAnnotation),
		"trigger":             js.FuncOf(trigger),
		// Reflowable content
		"bindRenderer":          js.FuncOf(bindRenderer),
		"encodeReflowSelection": js.FuncOf(encodeReflowSelection),
		"applyCfi":              js.FuncOf(applyCfi),
		"removeCfi":             js.FuncOf(removeCfi),
		"forgetCfi":             js.FuncOf(forgetCfi),
		"navigateCfi":           js.FuncOf(navigateCfi),
		// Web snapshots
		"encodeTextSelection": js.FuncOf(encodeTextSelection),
		"applyStructural":     js.FuncOf(applyStructural),
		"removeStructural":    js.FuncOf(removeStructural),
		"exportMarkdown":      js.FuncOf(exportMarkdown),
		// Snapshot storage
		"initSnapshots": js.FuncOf(initSnapshots),
		"saveSnapshot":  js.FuncOf(saveSnapshot),
		"loadSnapshot":  js.FuncOf(loadSnapshot),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// configure replaces the configuration and everything built from it.
// Args: [configJSON string] - optional; JSON or YAML, missing keys default
func configure(this js.Value, args []js.Value) interface{} {
	next := config.Default()
	if len(args) > 0 && args[0].Type() == js.TypeString && args[0].String() != "" {
		parsed, err := config.Parse([]byte(args[0].String()))
		if err != nil {
			return errorResult("invalid config: " + err.Error())
		}
		next = parsed
	}

	cfg = next
	pages = overlay.NewPages(cfg.Style())
	pages.SetEpsilon(cfg.Geometry.Epsilon)
	applier = structural.NewApplier(cfg.Style())
	exporter = export.New(cfg.Style())
	if reflowRenderer != nil {
		reflowApplier = newReflowApplier()
	}

	logx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logx.ParseLevel(cfg.Log.Level),
	})))
	return successResult("configured")
}

// =============================================================================
// Fixed-layout pages
// =============================================================================

type pageSelectionArgs struct {
	Page     int             `json:"page"`
	Text     string          `json:"text"`
	Rects    []geometry.Rect `json:"rects"`
	Bounds   geometry.Rect   `json:"bounds"`
	Rotation int             `json:"rotation"`
}

// encodePageSelection: [selectionJSON string]
// Returns: locator JSON
func encodePageSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: selectionJSON (string)")
	}
	var in pageSelectionArgs
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return errorResult("invalid selection json: " + err.Error())
	}
	rot, err := geometry.ParseRotation(in.Rotation)
	if err != nil {
		return errorResult(err.Error())
	}
	sel, ok := capture.FromPage(in.Page, in.Text, in.Rects, in.Bounds, rot)
	if !ok {
		return errorResult("empty selection")
	}
	loc, err := pagerect.Encode(sel, cfg.PageEncoding())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(loc)
}

type resolvePageArgs struct {
	Viewport    pagerect.Viewport       `json:"viewport"`
	Annotations []annotation.Annotation `json:"annotations"`
}

// resolvePage: [requestJSON string] with viewport {page, size, rotation, scale} and
// the current annotation list. Repaints the page layer.
// Returns: {marks, svg, applied, failed, rejectedRects}
func resolvePage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: requestJSON (string)")
	}
	var in resolvePageArgs
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return errorResult("invalid request json: " + err.Error())
	}
	if _, err := geometry.ParseRotation(int(in.Viewport.Rotation)); err != nil {
		return errorResult(err.Error())
	}

	layer := pages.Layer(in.Viewport.Page)
	res := layer.Render(in.Viewport, in.Annotations)
	marks := res.Marks
	if marks == nil {
		marks = []pagerect.Mark{}
	}
	return jsonResult(map[string]interface{}{
		"marks":         marks,
		"svg":           layer.SVG(),
		"applied":       nonNil(res.Report.Applied),
		"failed":        failures(res.Report),
		"rejectedRects": res.RejectedRects,
	})
}

// hitTest: [page int, x float, y float]
// Returns: annotation id or ""
func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("requires 3 args: page (int), x (float), y (float)")
	}
	id, _ := pages.Layer(args[0].Int()).HitTest(args[1].Float(), args[2].Float())
	return id
}

// writePageMarks: [sharedArrayBuffer, page int]
// Publishes the marks of the last resolvePage for that page.
func writePageMarks(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: buffer (SharedArrayBuffer), page (int)")
	}
	buf := sab.New(args[0])
	if buf == nil {
		return errorResult("missing shared buffer")
	}
	page := args[1].Int()
	if err := buf.WritePageMarks(page, pages.Layer(page).Marks()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("written")
}

// removeAnnotation: [id string]
// Drops the painted page and reflow marks of a deleted annotation. Marks in
// web snapshots are removed with removeStructural.
// Returns: {pageMarks, reflow}
func removeAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: id (string)")
	}
	id := args[0].String()
	reflow := false
	if reflowApplier != nil {
		reflow = reflowApplier.Remove(id)
	}
	return jsonResult(map[string]interface{}{"pageMarks": pages.Remove(id), "reflow": reflow})
}

// =============================================================================
// Web snapshots
// =============================================================================

// encodeTextSelection: [html string, start int, end int]
// start/end are UTF-16 offsets over the body's visible text.
// Returns: {locator, text}
func encodeTextSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("requires 3 args: html (string), start (int), end (int)")
	}
	_, root, err := structural.ParseDocument(strings.NewReader(args[0].String()))
	if err != nil {
		return errorResult("invalid html: " + err.Error())
	}
	sel, ok := capture.FromTextOffsets(root, args[1].Int(), args[2].Int())
	if !ok {
		return errorResult("empty selection")
	}
	loc, err := structural.Encode(sel, cfg.Structural.SnippetMaxLen)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{"locator": loc, "text": sel.Text})
}

// applyStructural: [html string, annotationsJSON string]
// Returns: {html, applied, failed}
func applyStructural(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: html (string), annotationsJSON (string)")
	}
	list, err := parseAnnotations(args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	_, root, err := structural.ParseDocument(strings.NewReader(args[0].String()))
	if err != nil {
		return errorResult("invalid html: " + err.Error())
	}
	rep := applier.Apply(root, list)
	out, err := structural.InnerHTML(root)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"html":    out,
		"applied": nonNil(rep.Applied),
		"failed":  failures(rep),
	})
}

// removeStructural: [html string, id string]
// Returns: {html, removed}
func removeStructural(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: html (string), id (string)")
	}
	_, root, err := structural.ParseDocument(strings.NewReader(args[0].String()))
	if err != nil {
		return errorResult("invalid html: " + err.Error())
	}
	n := applier.Remove(root, args[1].String())
	out, err := structural.InnerHTML(root)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{"html": out, "removed": n})
}

// exportMarkdown: [html string, annotationsJSON string, domain string?]
// Returns: {markdown, applied, failed}
func exportMarkdown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: html (string), annotationsJSON (string)")
	}
	list, err := parseAnnotations(args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	opts := export.Options{Highlights: true}
	if len(args) > 2 && args[2].Type() == js.TypeString {
		opts.Domain = args[2].String()
	}
	md, rep, err := exporter.Markdown(args[0].String(), list, opts)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"markdown": md,
		"applied":  nonNil(rep.Applied),
		"failed":   failures(rep),
	})
}

// =============================================================================
// Snapshot storage
// =============================================================================

// initSnapshots opens the IndexedDB-backed snapshot store
// Args: [] (uses the "readmark" database)
func initSnapshots(this js.Value, args []js.Value) interface{} {
	fs, err := indexeddb.NewFS(context.Background(), "readmark", indexeddb.Options{})
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}
	snapshots = store.NewSnapshotStore(fs)
	return successResult("snapshot store initialized")
}

// saveSnapshot: [sourceId string, html string]
// Returns: sanitized html
func saveSnapshot(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: sourceId (string), html (string)")
	}
	if snapshots == nil {
		return errorResult("snapshot store not initialized")
	}
	clean, err := snapshots.Save(args[0].String(), args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{"html": clean})
}

// loadSnapshot: [sourceId string]
// Returns: {html, found}
func loadSnapshot(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: sourceId (string)")
	}
	if snapshots == nil {
		return errorResult("snapshot store not initialized")
	}
	page, ok, err := snapshots.Load(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{"html": page, "found": ok})
}

// =============================================================================
// Helpers
// =============================================================================

func parseAnnotations(data string) ([]annotation.Annotation, error) {
	var list []annotation.Annotation
	if data == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, err
	}
	return list, nil
}

type failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func failures(r annotation.Report) []failure {
	out := make([]failure, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, failure{ID: f.ID, Error: f.Err.Error()})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
