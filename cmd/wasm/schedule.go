//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/kittclouds/readmark/pkg/overlay"
)

var scheduler *overlay.Scheduler

// watchResolves: [callback function]
// The callback receives a JSON array of {reason, page} once a burst of
// triggers settles; the UI re-runs resolvePage for the pages involved.
func watchResolves(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return errorResult("requires 1 arg: callback (function)")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	cb := args[0]
	scheduler = overlay.NewScheduler(cfg.Scheduler(), func(batch []overlay.Trigger) {
		data, err := json.Marshal(batch)
		if err != nil {
			return
		}
		cb.Invoke(string(data))
	})
	return successResult("watching")
}

// trigger: [reason string, page int?]
// Returns: true when the batch was flushed immediately
func trigger(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: reason (string)")
	}
	if scheduler == nil {
		return errorResult("not watching")
	}
	t := overlay.Trigger{Reason: overlay.Reason(args[0].String())}
	switch t.Reason {
	case overlay.ReasonResize, overlay.ReasonPage, overlay.ReasonAnnotations:
	default:
		return errorResult("unknown reason: " + args[0].String())
	}
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		t.Page = args[1].Int()
	}
	return scheduler.Trigger(t)
}
