// Package gen is the descriptor-to-table compiler (§4.7): it projects a
// protoreflect schema into the table.Type values the decoder and encoder
// run against, with no per-message generated code involved.
//
// A schema that falls outside the supported envelope (too many fields,
// too many presence-tracked fields, too many fields of one storage shape)
// fails with a SchemaViolation rather than silently truncating; this is
// the one error kind from §7 that can only come from this package.
package gen

import (
	"github.com/google/uuid"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gerben-stavenga/rust-protobuf/internal/errs"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
	"github.com/gerben-stavenga/rust-protobuf/internal/wire"
)

// Generate builds one table.Type per message transitively reachable from
// file's top-level messages (through nesting and through message/group-
// typed fields, including into other files), keyed by fully-qualified
// name.
func Generate(file protoreflect.FileDescriptor) (map[string]*table.Type, error) {
	types := map[string]*table.Type{}
	var order []protoreflect.MessageDescriptor
	seen := map[string]bool{}

	var walk func(md protoreflect.MessageDescriptor)
	walk = func(md protoreflect.MessageDescriptor) {
		name := string(md.FullName())
		if seen[name] {
			return
		}
		seen[name] = true
		types[name] = &table.Type{Name: name, ID: uuid.NewString()}
		order = append(order, md)

		nested := md.Messages()
		for i := 0; i < nested.Len(); i++ {
			walk(nested.Get(i))
		}
		fields := md.Fields()
		for i := 0; i < fields.Len(); i++ {
			f := fields.Get(i)
			if f.Kind() == protoreflect.MessageKind || f.Kind() == protoreflect.GroupKind {
				walk(f.Message())
			}
		}
	}

	top := file.Messages()
	for i := 0; i < top.Len(); i++ {
		walk(top.Get(i))
	}

	for _, md := range order {
		if err := buildType(types, md); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func buildType(types map[string]*table.Type, md protoreflect.MessageDescriptor) error {
	typ := types[string(md.FullName())]
	fields := md.Fields()

	maxFieldNum := 0
	for i := 0; i < fields.Len(); i++ {
		if n := int(fields.Get(i).Number()); n > maxFieldNum {
			maxFieldNum = n
		}
	}
	if maxFieldNum > table.MaxFieldNumber {
		return errs.Newf(errs.SchemaViolation, 0, "%s: field number %d exceeds the supported maximum of %d", md.FullName(), maxFieldNum, table.MaxFieldNumber)
	}

	ft := make([]table.FieldSlot, maxFieldNum+1)
	var encodeEntries []table.EncodeEntry
	var aux []table.AuxEntry

	hasBits := 0
	var numScalar, numBytes, numSub int
	var numRepScalar, numRepBytes, numRepSub int

	for i := 0; i < fields.Len(); i++ {
		f := fields.Get(i)
		kind := fieldKind(f)

		entrySlot := 0
		auxIdx := 0
		hasAux := false

		switch {
		case kind.IsSubMessage():
			child, ok := types[string(f.Message().FullName())]
			if !ok {
				return errs.Newf(errs.SchemaViolation, 0, "%s.%s: referenced message %s was not compiled", md.FullName(), f.Name(), f.Message().FullName())
			}
			hasAux = true
			auxIdx = len(aux)
			if kind.IsRepeated() {
				entrySlot, numRepSub = numRepSub, numRepSub+1
			} else {
				entrySlot, numSub = numSub, numSub+1
			}
			aux = append(aux, table.AuxEntry{Slot: entrySlot, Child: child})
		case kind == table.Bytes || kind == table.String:
			entrySlot, numBytes = numBytes, numBytes+1
		case kind == table.RepeatedBytes || kind == table.RepeatedString:
			entrySlot, numRepBytes = numRepBytes, numRepBytes+1
		case kind.IsRepeated():
			entrySlot, numRepScalar = numRepScalar, numRepScalar+1
		default:
			entrySlot, numScalar = numScalar, numScalar+1
		}

		if entrySlot > table.MaxSlot {
			return errs.Newf(errs.SchemaViolation, 0, "%s.%s: exceeds %d fields of its storage shape", md.FullName(), f.Name(), table.MaxSlot+1)
		}

		hasBit := 0
		if kind.HasHasBit() {
			if hasBits >= table.MaxHasBits {
				return errs.Newf(errs.SchemaViolation, 0, "%s: more than %d presence-tracked fields", md.FullName(), table.MaxHasBits)
			}
			hasBit = hasBits
			hasBits++
		}

		entry := table.MakeFieldEntry(hasBit, entrySlot)
		if !hasAux {
			auxIdx = 0
		}
		ft[f.Number()] = table.FieldSlot{Kind: kind, Entry: entry, Aux: auxIdx}
		// The encoder always writes repeated scalars packed, so their tag
		// carries the length-delimited wire type.
		tagType := kind.WireType()
		if kind.IsPackable() {
			tagType = wire.BytesType
		}
		encodeEntries = append(encodeEntries, table.EncodeEntry{
			Kind:  kind,
			Tag:   wire.EncodeTag(f.Number(), tagType),
			Entry: entry,
			Aux:   auxIdx,
		})
	}

	if max(numScalar, numBytes, numSub, numRepScalar, numRepBytes, numRepSub) > table.MaxRecordSlots {
		return errs.Newf(errs.SchemaViolation, 0, "%s: more than %d fields of one storage shape", md.FullName(), table.MaxRecordSlots)
	}

	typ.FieldTable = ft
	typ.EncodeEntries = encodeEntries
	typ.Aux = aux
	typ.NumHasWords = (hasBits + 31) / 32
	typ.NumScalarSlots = numScalar
	typ.NumBytesSlots = numBytes
	typ.NumSubSlots = numSub
	typ.NumRepScalars = numRepScalar
	typ.NumRepBytes = numRepBytes
	typ.NumRepSubs = numRepSub

	buildFastPath(typ)
	return nil
}

// fieldKind maps a protoreflect field descriptor to its table.Kind. Map
// fields are not special-cased: protoreflect already represents them as a
// repeated message field pointing at a synthetic two-field MapEntry
// message, which walk/buildType handle like any other repeated message.
func fieldKind(f protoreflect.FieldDescriptor) table.Kind {
	repeated := f.Cardinality() == protoreflect.Repeated

	switch f.Kind() {
	case protoreflect.Int32Kind, protoreflect.Uint32Kind, protoreflect.EnumKind:
		if repeated {
			return table.RepeatedVarint32
		}
		return table.Varint32
	case protoreflect.Int64Kind, protoreflect.Uint64Kind:
		if repeated {
			return table.RepeatedVarint64
		}
		return table.Varint64
	case protoreflect.Sint32Kind:
		if repeated {
			return table.RepeatedZigZag32
		}
		return table.ZigZag32
	case protoreflect.Sint64Kind:
		if repeated {
			return table.RepeatedZigZag64
		}
		return table.ZigZag64
	case protoreflect.BoolKind:
		if repeated {
			return table.RepeatedBool
		}
		return table.Bool
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind:
		if repeated {
			return table.RepeatedFixed32
		}
		return table.Fixed32
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind:
		if repeated {
			return table.RepeatedFixed64
		}
		return table.Fixed64
	case protoreflect.FloatKind:
		if repeated {
			return table.RepeatedFloat32
		}
		return table.Float32
	case protoreflect.DoubleKind:
		if repeated {
			return table.RepeatedFloat64
		}
		return table.Float64
	case protoreflect.StringKind:
		if repeated {
			return table.RepeatedString
		}
		return table.String
	case protoreflect.BytesKind:
		if repeated {
			return table.RepeatedBytes
		}
		return table.Bytes
	case protoreflect.MessageKind:
		if repeated {
			return table.RepeatedMessage
		}
		return table.Message
	case protoreflect.GroupKind:
		if repeated {
			return table.RepeatedGroup
		}
		return table.Group
	default:
		return table.Unknown
	}
}

func max(vs ...int) int {
	m := 0
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

// buildFastPath computes the §3.5 mask/kind-array fast-path dispatch
// table from the field table that was just built. The mask is sized from
// the largest declared field's canonical tag value (field number and wire
// type both), not just the field count: a tag's low 3 bits are its wire
// type, so a mask sized only off the number of fields would silently drop
// those bits for small schemas and make two different wire types of the
// same field alias to one KindArray slot. Sizing off the tag range instead
// means mask covers every bit any declared tag can set, so masking a
// declared tag is a no-op and two distinct declared tags can never land on
// the same index — the only way FastKind can miss is a genuinely
// undeclared field number or a wire type that disagrees with the schema,
// which is exactly when the decoder needs to fall back to FieldTable.
func buildFastPath(typ *table.Type) {
	maxTag := uint32(0)
	for n, slot := range typ.FieldTable {
		if slot.Kind == table.Unknown {
			continue
		}
		if tag := uint32(wire.EncodeTag(wire.Number(n), slot.Kind.WireType())); tag > maxTag {
			maxTag = tag
		}
	}
	if maxTag == 0 {
		typ.Mask = 0
		typ.KindArray = []table.Kind{table.Unknown}
		return
	}

	size := uint32(1)
	for size <= maxTag {
		size <<= 1
	}
	mask := size - 1
	kindArray := make([]table.Kind, size)
	for n, slot := range typ.FieldTable {
		if slot.Kind == table.Unknown {
			continue
		}
		tag := uint32(wire.EncodeTag(wire.Number(n), slot.Kind.WireType()))
		kindArray[tag&mask] = slot.Kind
	}
	typ.Mask = mask
	typ.KindArray = kindArray
}
