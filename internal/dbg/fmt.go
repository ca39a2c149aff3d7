// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dbg holds delayed-formatting helpers used to print compiled
// table.Type values without building their string form unless something
// actually asks for it (fmt.Stringer/fmt.Formatter only runs on demand).
package dbg

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/gerben-stavenga/rust-protobuf/internal/table"
)

// Formatter is a fmt.Formatter implementation that just calls a function.
type Formatter func(s fmt.State)

func (f Formatter) Format(s fmt.State, verb rune) {
	if verb != 'v' {
		fmt.Fprintf(s, "%%%c(%T=%v)", verb, f, Func(f))
		return
	}
	f(s)
}

func (f Formatter) String() string { return fmt.Sprint(f) }

// Fprintf is like Fprintf, but the printing is delayed until the returned value
// is formatted with %v.
func Fprintf(format string, args ...any) Formatter {
	return Formatter(func(s fmt.State) { fmt.Fprintf(s, format, args...) })
}

// Func pretty-prints a function value.
func Func(f any) Formatter {
	return Formatter(func(s fmt.State) {
		v := reflect.ValueOf(f)

		var pc uintptr
		switch v.Kind() {
		case reflect.Func:
			pc = uintptr(v.UnsafePointer())
		case reflect.Uintptr:
			pc = uintptr(v.Uint())
		default:
			fmt.Fprintf(s, "%%v(NONFUNC:%v)", v)
		}

		fn := runtime.FuncForPC(pc)
		name := fn.Name()
		if name == "" {
			name = "<unknown>"
		}

		fmt.Fprintf(s, "%#x:%s", pc, name)
	})
}

// Dict pretty-prints the given entries as a dictionary, with an optional
// prefix.
func Dict(prefix any, kv ...any) Formatter {
	return Formatter(func(s fmt.State) {
		if len(kv)%2 != 0 {
			panic("dbg: length must be divisible by 2")
		}

		if prefix == nil {
			prefix = ""
		}

		first := true
		fmt.Fprintf(s, "%v{", prefix)
		for i := 0; i < len(kv)/2; i++ {
			k := kv[2*i]
			v := kv[2*i+1]
			if v == nil {
				continue
			}

			if !first {
				fmt.Fprint(s, ", ")
			}
			first = false
			fmt.Fprintf(s, "%v: %v", k, v)
		}
		fmt.Fprint(s, "}")
	})
}

// Type pretty-prints a compiled table.Type: its name, its generator-minted
// ID (truncated, since the full UUID is rarely useful at a glance), and the
// slot counts that size a Record of this type. This is what cmd/fastpb-gen
// prints per compiled message; it exists here rather than inline in main.go
// so any future caller that wants to log a Type gets the same shape without
// re-deriving it.
func Type(t *table.Type) Formatter {
	id := t.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return Dict(t.Name,
		"id", Fprintf("%s…", id),
		"fields", len(t.EncodeEntries),
		"hasWords", t.NumHasWords,
		"scalarSlots", t.NumScalarSlots,
		"bytesSlots", t.NumBytesSlots,
		"subSlots", t.NumSubSlots,
		"repScalarSlots", t.NumRepScalars,
		"repBytesSlots", t.NumRepBytes,
		"repSubSlots", t.NumRepSubs,
	)
}
