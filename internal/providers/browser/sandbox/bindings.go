package sandbox

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/domain/navigation"
	"github.com/mfduar8766/browserautomation/internal/providers/browser/view"
)

// installAPI defines the frozen api global: args, log and requestDevTools.
// Nothing else of the host is reachable from the VM.
func (r *Runtime) installAPI() error {
	args := r.vm.NewObject()
	snapshot := r.surface.Args()
	for _, key := range snapshot.Keys() {
		var v goja.Value = goja.Undefined()
		if s, ok := snapshot.Lookup(key); ok {
			v = r.vm.ToValue(s)
		}
		if err := args.Set(key, v); err != nil {
			return err
		}
	}
	if err := r.freeze(args); err != nil {
		return err
	}

	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return errors.New("JSON.stringify unavailable")
	}

	api := r.vm.NewObject()
	if err := api.Set("args", args); err != nil {
		return err
	}
	if err := api.Set("log", func(call goja.FunctionCall) goja.Value {
		r.surface.Log(call.Argument(0).String(), r.stringify(stringify, call.Argument(1)))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := api.Set("requestDevTools", func(call goja.FunctionCall) goja.Value {
		r.surface.RequestDevTools()
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := r.freeze(api); err != nil {
		return err
	}

	return r.vm.GlobalObject().DefineDataProperty("api", api, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// stringify encodes a log payload inside the VM so the wire text matches what
// JSON.stringify yields in a page. Values it cannot encode fall back to String.
func (r *Runtime) stringify(encode goja.Callable, v goja.Value) string {
	if s, ok := v.Export().(string); ok {
		return s
	}
	out, err := encode(goja.Undefined(), v)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return v.String()
	}
	return out.String()
}

func (r *Runtime) freeze(obj *goja.Object) error {
	freeze, ok := goja.AssertFunction(r.vm.Get("Object").ToObject(r.vm).Get("freeze"))
	if !ok {
		return errors.New("Object.freeze unavailable")
	}
	_, err := freeze(goja.Undefined(), obj)
	return err
}

func (r *Runtime) installDocument() error {
	document := r.vm.NewObject()
	root := r.dom.Root()

	set := map[string]func(goja.FunctionCall) goja.Value{
		"getElementById": func(call goja.FunctionCall) goja.Value {
			if el := r.dom.ByID(call.Argument(0).String()); el != nil {
				return r.proxy(el)
			}
			return goja.Null()
		},
		"querySelector": func(call goja.FunctionCall) goja.Value {
			if els := r.dom.Query(call.Argument(0).String()); len(els) > 0 {
				return r.proxy(els[0])
			}
			return goja.Null()
		},
		"querySelectorAll": func(call goja.FunctionCall) goja.Value {
			els := r.dom.Query(call.Argument(0).String())
			items := make([]interface{}, 0, len(els))
			for _, el := range els {
				items = append(items, r.proxy(el))
			}
			return r.vm.NewArray(items...)
		},
		"addEventListener":    r.addListener(root),
		"removeEventListener": r.removeListener(root),
	}
	for name, fn := range set {
		if err := document.Set(name, fn); err != nil {
			return err
		}
	}
	r.proxies[root] = document

	return r.vm.Set("document", document)
}

// proxy returns the cached JS object for el.
func (r *Runtime) proxy(el *Element) goja.Value {
	if obj, ok := r.proxies[el]; ok {
		return obj
	}

	obj := r.vm.NewObject()
	_ = obj.Set("id", el.ID)
	_ = obj.Set("tagName", strings.ToUpper(el.TagName))
	_ = obj.Set("className", el.ClassName)
	_ = obj.DefineAccessorProperty("textContent",
		r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(el.TextContent) }),
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			r.dom.SetText(el, call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := el.Attributes[call.Argument(0).String()]; ok {
			return r.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		name, value := call.Argument(0).String(), call.Argument(1).String()
		if el.ID == WebviewID && name == "src" {
			r.navigate(value)
			return goja.Undefined()
		}
		r.dom.SetAttribute(el, name, value)
		return goja.Undefined()
	})
	_ = obj.Set("addEventListener", r.addListener(el))
	_ = obj.Set("removeEventListener", r.removeListener(el))
	_ = obj.Set("click", func(call goja.FunctionCall) goja.Value {
		if err := r.bubble(el, "click"); err != nil {
			panic(r.vm.NewGoError(err))
		}
		return goja.Undefined()
	})

	if el.ID == WebviewID {
		r.bindWebview(el, obj)
	}

	r.proxies[el] = obj
	return obj
}

// bindWebview makes the webview element proxy the navigation controller.
func (r *Runtime) bindWebview(el *Element, obj *goja.Object) {
	state := func() navigation.State {
		if r.webview == nil {
			return navigation.State{}
		}
		return r.webview.State()
	}

	_ = obj.DefineAccessorProperty("src",
		r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(state().URL) }),
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			r.navigate(call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.Set("loadURL", func(call goja.FunctionCall) goja.Value {
		r.navigate(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("getURL", func(goja.FunctionCall) goja.Value { return r.vm.ToValue(state().URL) })
	_ = obj.Set("isLoading", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(state().Status == navigation.StatusLoading)
	})
	_ = obj.Set("canGoBack", func(goja.FunctionCall) goja.Value { return r.vm.ToValue(state().CanGoBack) })
	_ = obj.Set("canGoForward", func(goja.FunctionCall) goja.Value { return r.vm.ToValue(state().CanGoForward) })
	_ = obj.Set("goBack", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.step("goBack", func(ctx context.Context, w Webview) (navigation.Outcome, error) {
			return w.GoBack(ctx)
		}))
	})
	_ = obj.Set("goForward", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.step("goForward", func(ctx context.Context, w Webview) (navigation.Outcome, error) {
			return w.GoForward(ctx)
		}))
	})
	_ = obj.Set("reload", func(goja.FunctionCall) goja.Value {
		if r.webview == nil {
			return goja.Undefined()
		}
		if err := r.webview.Reload(r.callCtx); err != nil {
			r.logger.Warn("Webview reload failed", zap.Error(err))
		}
		return goja.Undefined()
	})
}

// navigate loads url into the webview. Failures are recorded by the
// controller and reported through its failure handler, not thrown.
func (r *Runtime) navigate(url string) {
	if r.webview == nil {
		r.logger.Warn("Webview has no navigation target", zap.String("url", url))
		return
	}
	if err := r.webview.Navigate(r.callCtx, url); err != nil {
		r.logger.Warn("Webview navigation failed", zap.String("url", url), zap.Error(err))
	}
}

func (r *Runtime) step(name string, move func(context.Context, Webview) (navigation.Outcome, error)) bool {
	if r.webview == nil {
		return false
	}
	outcome, err := move(r.callCtx, r.webview)
	if err != nil {
		r.logger.Warn("Webview history navigation failed", zap.String("op", name), zap.Error(err))
		return false
	}
	return outcome == navigation.OutcomeNavigated
}

func (r *Runtime) addListener(el *Element) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(r.vm.NewTypeError("addEventListener: listener is not a function"))
		}
		byType := r.listeners[el]
		if byType == nil {
			byType = make(map[string][]goja.Callable)
			r.listeners[el] = byType
		}
		byType[typ] = append(byType[typ], fn)
		return goja.Undefined()
	}
}

// removeListener drops every listener of the given type; goja callables are
// not comparable, so single-listener removal is not supported.
func (r *Runtime) removeListener(el *Element) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if byType := r.listeners[el]; byType != nil {
			delete(byType, call.Argument(0).String())
		}
		return goja.Undefined()
	}
}

// Click dispatches a click on the first element matching selector. The event
// bubbles from the element up to document.
func (r *Runtime) Click(ctx context.Context, selector string) error {
	return r.enter(ctx, func() error {
		els := r.dom.Query(selector)
		if len(els) == 0 {
			return ErrElementNotFound
		}
		return r.bubble(els[0], "click")
	})
}

// Dispatch fires a document-level event such as DOMContentLoaded.
func (r *Runtime) Dispatch(ctx context.Context, eventType string) error {
	return r.enter(ctx, func() error {
		root := r.dom.Root()
		ev := r.newEvent(eventType, root, nil)
		return r.fire(root, eventType, ev)
	})
}

// DispatchWebview fires a view lifecycle event on the webview element.
func (r *Runtime) DispatchWebview(ctx context.Context, ev view.Event) error {
	return r.enter(ctx, func() error {
		el := r.dom.ByID(WebviewID)
		if el == nil {
			return ErrElementNotFound
		}
		typ := ev.Kind.String()
		obj := r.newEvent(typ, el, nil)
		_ = obj.Set("url", ev.URL)
		_ = obj.Set("errorCode", ev.ErrorCode)
		_ = obj.Set("errorDescription", ev.ErrorDescription)
		return r.fire(el, typ, obj)
	})
}

func (r *Runtime) bubble(target *Element, typ string) error {
	stopped := false
	ev := r.newEvent(typ, target, &stopped)

	var errs []error
	for el := target; el != nil && !stopped; el = el.Parent {
		_ = ev.Set("currentTarget", r.proxy(el))
		if err := r.fire(el, typ, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) newEvent(typ string, target *Element, stopped *bool) *goja.Object {
	ev := r.vm.NewObject()
	_ = ev.Set("type", typ)
	_ = ev.Set("target", r.proxy(target))
	_ = ev.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		if stopped != nil {
			*stopped = true
		}
		return goja.Undefined()
	})
	_ = ev.Set("preventDefault", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	return ev
}

func (r *Runtime) fire(el *Element, typ string, ev *goja.Object) error {
	listeners := append([]goja.Callable(nil), r.listeners[el][typ]...)
	var errs []error
	for _, fn := range listeners {
		if _, err := fn(r.proxy(el), ev); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
