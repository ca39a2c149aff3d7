// Command fastpb-gen compiles a FileDescriptorSet (as produced by
// `protoc --descriptor_set_out=... --include_imports`) into the
// table.Type values fastpb's decoder and encoder run against, and prints
// a summary of what it built. It exists for inspecting a schema's
// generated shape during development; the library itself never shells out
// to this binary — internal/gen runs the same compilation step in-process.
package main

import (
	"flag"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/gerben-stavenga/rust-protobuf/internal/dbg"
	"github.com/gerben-stavenga/rust-protobuf/internal/flag2"
	"github.com/gerben-stavenga/rust-protobuf/internal/gen"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
)

func main() {
	flag.String("descriptor_set", "", "path to a serialized google.protobuf.FileDescriptorSet")
	flag.Bool("bootstrap", false, "compile an in-process self-hosting smoke-test schema instead of reading a descriptor set from disk")
	flag.Parse()

	path, havePath := flag2.LookupRequired[string]("descriptor_set")
	bootstrap, _ := flag2.LookupRequired[bool]("bootstrap")

	var set *descriptorpb.FileDescriptorSet
	switch {
	case bootstrap:
		set = gen.BootstrapDescriptorSet()
	case havePath:
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fastpb-gen:", err)
			os.Exit(1)
		}
		set = &descriptorpb.FileDescriptorSet{}
		if err := proto.Unmarshal(raw, set); err != nil {
			fmt.Fprintln(os.Stderr, "fastpb-gen:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "fastpb-gen: -descriptor_set is required (or pass -bootstrap)")
		os.Exit(2)
	}

	if err := run(set); err != nil {
		fmt.Fprintln(os.Stderr, "fastpb-gen:", err)
		os.Exit(1)
	}
}

func run(set *descriptorpb.FileDescriptorSet) error {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return fmt.Errorf("building file registry: %w", err)
	}

	all := map[string]*table.Type{}
	var rangeErr error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		types, err := gen.Generate(fd)
		if err != nil {
			rangeErr = fmt.Errorf("compiling %s: %w", fd.Path(), err)
			return false
		}
		for name, typ := range types {
			all[name] = typ
		}
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}

	for _, typ := range all {
		fmt.Println(dbg.Type(typ))
	}
	return nil
}
