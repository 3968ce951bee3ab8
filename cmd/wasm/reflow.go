//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/cfi"
	"github.com/kittclouds/readmark/pkg/locator"
)

// jsRenderer adapts the reflow engine object handed over by the UI. It must
// expose mark(token, spec, onClick) -> handle, unmark(handle) and
// resolve(token) -> {section, position}; sectionOf(token) is optional.
type jsRenderer struct {
	obj js.Value

	mu     sync.Mutex
	clicks map[cfi.Handle]js.Func
}

func newJSRenderer(obj js.Value) *jsRenderer {
	return &jsRenderer{obj: obj, clicks: make(map[cfi.Handle]js.Func)}
}

// call invokes a method and turns a thrown JS error into a Go error.
func (r *jsRenderer) call(method string, args ...interface{}) (v js.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: %v", method, p)
		}
	}()
	if r.obj.Get(method).Type() != js.TypeFunction {
		return js.Undefined(), fmt.Errorf("renderer has no %s()", method)
	}
	return r.obj.Call(method, args...), nil
}

func (r *jsRenderer) Mark(token string, spec cfi.MarkSpec) (cfi.Handle, error) {
	onClick := spec.OnClick
	fn := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if onClick != nil {
			onClick()
		}
		return nil
	})
	v, err := r.call("mark", token, map[string]interface{}{
		"annotationId": spec.AnnotationID,
		"kind":         string(spec.Kind),
		"color":        spec.Color,
		"className":    spec.Class,
	}, fn)
	if err == nil && (v.IsUndefined() || v.IsNull()) {
		err = fmt.Errorf("mark: renderer returned no handle")
	}
	if err != nil {
		fn.Release()
		return "", err
	}

	h := cfi.Handle(v.String())
	r.mu.Lock()
	r.clicks[h] = fn
	r.mu.Unlock()
	return h, nil
}

func (r *jsRenderer) Unmark(h cfi.Handle) error {
	r.mu.Lock()
	fn, ok := r.clicks[h]
	delete(r.clicks, h)
	r.mu.Unlock()
	if ok {
		defer fn.Release()
	}
	_, err := r.call("unmark", string(h))
	return err
}

func (r *jsRenderer) Resolve(token string) (cfi.Target, error) {
	v, err := r.call("resolve", token)
	if err != nil {
		return cfi.Target{}, err
	}
	if v.IsUndefined() || v.IsNull() {
		return cfi.Target{}, fmt.Errorf("resolve: unknown token")
	}
	return cfi.Target{Section: v.Get("section").String(), Position: v.Get("position").Float()}, nil
}

func (r *jsRenderer) SectionOf(token string) (string, error) {
	v, err := r.call("sectionOf", token)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

var (
	reflowRenderer *jsRenderer
	reflowApplier  *cfi.Applier
	reflowOnClick  func(id string)
)

func newReflowApplier() *cfi.Applier {
	ap := cfi.NewApplier(reflowRenderer, cfg.Style())
	if reflowOnClick != nil {
		ap.OnClick(reflowOnClick)
	}
	return ap
}

// bindRenderer: [renderer object, onClick function?]
func bindRenderer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return errorResult("requires 1 arg: renderer (object)")
	}
	reflowRenderer = newJSRenderer(args[0])
	reflowOnClick = nil
	if len(args) > 1 && args[1].Type() == js.TypeFunction {
		cb := args[1]
		reflowOnClick = func(id string) { cb.Invoke(id) }
	}
	reflowApplier = newReflowApplier()
	return successResult("renderer bound")
}

// encodeReflowSelection: [token string, text string]
// Returns: locator JSON
func encodeReflowSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: token (string), text (string)")
	}
	sel, ok := capture.FromReflow(args[0].String(), args[1].String())
	if !ok {
		return errorResult("empty selection")
	}
	return jsonResult(cfi.Encode(sel))
}

// applyCfi: [section string, annotationsJSON string]
// Returns: {applied, failed}
func applyCfi(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: section (string), annotationsJSON (string)")
	}
	if reflowApplier == nil {
		return errorResult("renderer not bound")
	}
	list, err := parseAnnotations(args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	rep := reflowApplier.Apply(args[0].String(), list)
	return jsonResult(map[string]interface{}{
		"applied": nonNil(rep.Applied),
		"failed":  failures(rep),
	})
}

// removeCfi: [id string]
func removeCfi(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: id (string)")
	}
	if reflowApplier == nil {
		return errorResult("renderer not bound")
	}
	return reflowApplier.Remove(args[0].String())
}

// forgetCfi drops mark bookkeeping after the renderer re-rendered a section.
func forgetCfi(this js.Value, args []js.Value) interface{} {
	if reflowApplier != nil {
		reflowApplier.Forget()
	}
	return successResult("forgotten")
}

// navigateCfi: [locatorJSON string]
// Returns: {section, position}
func navigateCfi(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: locatorJSON (string)")
	}
	if reflowRenderer == nil {
		return errorResult("renderer not bound")
	}
	var loc locator.Locator
	if err := json.Unmarshal([]byte(args[0].String()), &loc); err != nil {
		return errorResult(err.Error())
	}
	t, err := cfi.Navigate(reflowRenderer, loc)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(t)
}
