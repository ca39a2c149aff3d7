package gen

import "google.golang.org/protobuf/types/descriptorpb"

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }
func boolp(b bool) *bool    { return &b }

func label(l descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto_Label {
	return &l
}

func ftype(t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto_Type {
	return &t
}

// BootstrapDescriptorSet returns a FileDescriptorSet built entirely from Go
// literals (no protoc invocation, no serialized fixture on disk) describing
// a message that exercises one field of every category buildType handles:
// a presence-tracked scalar, a packed repeated scalar, a string, a bytes
// field, a self-referential sub-message (a schema compiling itself is the
// cheapest check that Aux entries can point back at their own Type), and a
// map field (protoreflect represents it as a repeated message pointing at
// a synthetic, MapEntry-flagged nested message).
//
// cmd/fastpb-gen's -bootstrap flag compiles this instead of reading a
// descriptor set from disk, so the self-hosting smoke test it runs has no
// external dependency on protoc or a checked-in binary fixture.
func BootstrapDescriptorSet() *descriptorpb.FileDescriptorSet {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	entry := &descriptorpb.DescriptorProto{
		Name: strp("LabelsEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: strp("key"), Number: i32p(1), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_STRING)},
			{Name: strp("value"), Number: i32p(2), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_INT64)},
		},
		Options: &descriptorpb.MessageOptions{MapEntry: boolp(true)},
	}

	probe := &descriptorpb.DescriptorProto{
		Name: strp("Probe"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: strp("id"), Number: i32p(1), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_INT64)},
			{Name: strp("tags"), Number: i32p(2), Label: label(repeated), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_INT32)},
			{Name: strp("name"), Number: i32p(3), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_STRING)},
			{Name: strp("payload"), Number: i32p(4), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_BYTES)},
			{Name: strp("child"), Number: i32p(5), Label: label(optional), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), TypeName: strp(".fastpb.bootstrap.Probe")},
			{Name: strp("labels"), Number: i32p(6), Label: label(repeated), Type: ftype(descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), TypeName: strp(".fastpb.bootstrap.Probe.LabelsEntry")},
		},
		NestedType: []*descriptorpb.DescriptorProto{entry},
	}

	file := &descriptorpb.FileDescriptorProto{
		Name:        strp("fastpb_bootstrap.proto"),
		Package:     strp("fastpb.bootstrap"),
		Syntax:      strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{probe},
	}

	return &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{file}}
}
