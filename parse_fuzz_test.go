package fastpb_test

import (
	"testing"

	fastpb "github.com/gerben-stavenga/rust-protobuf"
	"github.com/gerben-stavenga/rust-protobuf/internal/gen"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FuzzParse feeds arbitrary byte sequences through Parse against the flat
// Greeting schema already exercised by the table-driven tests in this
// package. §8 promises no panic for any input up to 1 MiB; a malformed or
// truncated specimen must come back as an error, never a crash.
func FuzzParse(f *testing.F) {
	typ := greetingType()

	f.Add([]byte{})
	f.Add([]byte{0x0a, 0x02, 'h', 'i', 0x10, 0x07})                                 // well-formed
	f.Add([]byte{0x0a, 0xff, 0xff, 0xff, 0xff, 0x0f})                               // huge claimed length, no body
	f.Add([]byte{0x08})                                                             // varint tag on the string field, no value
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}) // overlong varint
	f.Add([]byte{0x10, 0x00, 0x0a, 0x01, 0xff})                                     // invalid UTF-8 in a declared string

	f.Fuzz(func(t *testing.T, b []byte) {
		_, _ = fastpb.Parse(typ, b, fastpb.ParseOptions{})
	})
}

// FuzzParseCompiledSchema runs the same property against a schema compiled
// through internal/gen rather than a hand-built table.Type, so the fuzzer
// also walks the fast-path tag dispatch, sub-messages, and map-shaped
// repeated fields the flat Greeting schema never reaches.
func FuzzParseCompiledSchema(f *testing.F) {
	files, err := protodesc.NewFiles(gen.BootstrapDescriptorSet())
	if err != nil {
		f.Fatal(err)
	}
	var typ *table.Type
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		types, err := gen.Generate(fd)
		if err != nil {
			f.Fatal(err)
		}
		typ = types["fastpb.bootstrap.Probe"]
		return false
	})
	if typ == nil {
		f.Fatal("fastpb.bootstrap.Probe not found in compiled schema")
	}

	f.Add([]byte{})
	f.Add([]byte{0x08, 0x2a})                   // id=42
	f.Add([]byte{0x1a, 0x03, 'f', 'o', 'o'})    // name="foo"
	f.Add([]byte{0x2a, 0x02, 0x08, 0x01})       // child{id=1}, self-referential
	f.Add([]byte{0x32, 0x05, 0x0a, 0x01, 'k', 0x10, 0x01}) // labels map entry

	f.Fuzz(func(t *testing.T, b []byte) {
		_, _ = fastpb.Parse(typ, b, fastpb.ParseOptions{})
	})
}
