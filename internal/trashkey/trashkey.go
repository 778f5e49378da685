// Package trashkey implements the TrashKey identifier described in
// spec.md §3: a bare trashname routed to the home repository, or a
// "name:base-dir" pair routed to the non-home repository rooted at
// base-dir. The parser mirrors the teacher's own small string-codec
// packages (internal/protocol.DeviceIDFromString, internal/luhn) in
// shape: a single pure function from string to value, a single pure
// function back, no hidden state.
package trashkey

import "strings"

// Key is the parsed form of a TrashKey. Home is true for the bare form;
// Base is empty in that case. For the qualified form, Base holds the
// absolute path of the non-home trash root the key names.
type Key struct {
	Name string
	Base string
	Home bool
}

// Parse splits on the first ':' only, per spec.md §3/§8 test 4:
//
//	"foo"           -> home form, Name="foo"
//	"foo:/tmp/vol"  -> qualified, Name="foo", Base="/tmp/vol"
//	":/tmp"         -> qualified, Name="", Base="/tmp"
//	"a:b:c"         -> qualified, Name="a", Base="b:c"
func Parse(raw string) Key {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return Key{Name: raw[:i], Base: raw[i+1:], Home: false}
	}
	return Key{Name: raw, Home: true}
}

// Format is the inverse of Parse: the empty string for this Key's Base
// reproduces the bare home form, any other Base reproduces the
// qualified form. Used by the Router when it prefixes trashnames
// enumerated from a non-home repository (spec.md §4.2, "Trashname
// translation").
func Format(name, base string) string {
	if base == "" {
		return name
	}
	return name + ":" + base
}

func (k Key) String() string {
	if k.Home {
		return k.Name
	}
	return Format(k.Name, k.Base)
}
