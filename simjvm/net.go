package simjvm

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

var defaultPorts = map[string]int32{
	"http":  80,
	"https": 443,
	"ftp":   21,
}

var knownProtocols = map[string]bool{
	"http": true, "https": true, "ftp": true, "file": true, "jar": true, "mailto": true,
}

func parseURL(spec string) (*url.URL, error) {
	scheme, _, found := strings.Cut(spec, ":")
	if !found || scheme == "" || strings.ContainsAny(scheme, "/?#") {
		return nil, Throw("java.net.MalformedURLException", "no protocol: "+spec)
	}
	if !knownProtocols[strings.ToLower(scheme)] {
		return nil, Throw("java.net.MalformedURLException", "unknown protocol: "+strings.ToLower(scheme))
	}
	u, err := url.Parse(spec)
	if err != nil {
		return nil, Throw("java.net.MalformedURLException", err.Error())
	}
	return u, nil
}

func urlClass() ClassDef {
	const self = "Ljava/net/URL;"
	get := func(c *Call) *url.URL {
		u, _ := c.This.Value.(*url.URL)
		if u == nil {
			return &url.URL{}
		}
		return u
	}
	orNull := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	return ClassDef{
		Name: "java.net.URL",
		Constructors: []Method{
			ctor("("+sigString+")V", func(c *Call) (any, error) {
				spec, ok := c.String(0)
				if !ok {
					return nil, Throw("java.net.MalformedURLException", "null spec")
				}
				u, err := parseURL(spec)
				c.This.Value = u
				return nil, err
			}),
			ctor("("+self+sigString+")V", func(c *Call) (any, error) {
				spec, ok := c.String(1)
				if !ok {
					return nil, Throw("java.net.MalformedURLException", "null spec")
				}
				base := c.Object(0)
				if base == nil {
					u, err := parseURL(spec)
					c.This.Value = u
					return nil, err
				}
				ref, err := url.Parse(spec)
				if err != nil {
					return nil, Throw("java.net.MalformedURLException", err.Error())
				}
				c.This.Value = base.Value.(*url.URL).ResolveReference(ref)
				return nil, nil
			}),
		},
		Methods: []Method{
			method("getProtocol", "()"+sigString, func(c *Call) (any, error) { return get(c).Scheme, nil }),
			method("getHost", "()"+sigString, func(c *Call) (any, error) { return get(c).Hostname(), nil }),
			method("getPath", "()"+sigString, func(c *Call) (any, error) { return get(c).EscapedPath(), nil }),
			method("getQuery", "()"+sigString, func(c *Call) (any, error) { return orNull(get(c).RawQuery), nil }),
			method("getRef", "()"+sigString, func(c *Call) (any, error) { return orNull(get(c).Fragment), nil }),
			method("getFile", "()"+sigString, func(c *Call) (any, error) {
				u := get(c)
				if u.RawQuery == "" {
					return u.EscapedPath(), nil
				}
				return u.EscapedPath() + "?" + u.RawQuery, nil
			}),
			method("getPort", "()I", func(c *Call) (any, error) {
				p := get(c).Port()
				if p == "" {
					return int32(-1), nil
				}
				n, err := strconv.Atoi(p)
				if err != nil {
					return int32(-1), nil
				}
				return int32(n), nil
			}),
			method("getDefaultPort", "()I", func(c *Call) (any, error) {
				if p, ok := defaultPorts[get(c).Scheme]; ok {
					return p, nil
				}
				return int32(-1), nil
			}),
			method("toString", "()"+sigString, func(c *Call) (any, error) { return get(c).String(), nil }),
			method("toExternalForm", "()"+sigString, func(c *Call) (any, error) { return get(c).String(), nil }),
			method("equals", "("+sigObject+")Z", func(c *Call) (any, error) {
				o := c.Object(0)
				if o == nil || o.Class != c.This.Class {
					return false, nil
				}
				return o.Value.(*url.URL).String() == get(c).String(), nil
			}),
		},
	}
}

func fileClass() ClassDef {
	get := func(c *Call) string { return c.Str() }
	return ClassDef{
		Name: "java.io.File",
		Constructors: []Method{
			ctor("("+sigString+")V", func(c *Call) (any, error) {
				p, ok := c.String(0)
				if !ok {
					return nil, Throw("java.lang.NullPointerException", "")
				}
				c.This.Value = p
				return nil, nil
			}),
		},
		Methods: []Method{
			method("getName", "()"+sigString, func(c *Call) (any, error) {
				p := get(c)
				if i := strings.LastIndexByte(p, '/'); i >= 0 {
					return p[i+1:], nil
				}
				return p, nil
			}),
			method("getPath", "()"+sigString, func(c *Call) (any, error) { return get(c), nil }),
			method("getParent", "()"+sigString, func(c *Call) (any, error) {
				p := get(c)
				if !strings.Contains(p, "/") {
					return nil, nil
				}
				dir := path.Dir(p)
				return dir, nil
			}),
			method("isAbsolute", "()Z", func(c *Call) (any, error) { return strings.HasPrefix(get(c), "/"), nil }),
			method("toString", "()"+sigString, func(c *Call) (any, error) { return get(c), nil }),
		},
		Fields: []Field{
			constant("separator", sigString, "/"),
			constant("pathSeparator", sigString, ":"),
		},
	}
}

func arraysClass() ClassDef {
	return ClassDef{
		Name: "java.util.Arrays",
		Methods: []Method{
			static("toString", "([Ljava/lang/Object;)"+sigString, func(c *Call) (any, error) {
				arr := c.Object(0)
				if arr == nil {
					return "null", nil
				}
				elems, _ := arr.Value.([]any)
				parts := make([]string, len(elems))
				for i, e := range elems {
					inst, _ := e.(*Instance)
					if inst == nil {
						parts[i] = "null"
						continue
					}
					parts[i] = c.Runtime.describe(inst)
				}
				return "[" + strings.Join(parts, ", ") + "]", nil
			}),
		},
	}
}
