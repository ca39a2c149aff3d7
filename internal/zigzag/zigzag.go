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

// Package zigzag exposes the zigzag transform used by sint32/sint64 fields
// as a pair of bit operations, distinct from plain varint encode/decode.
package zigzag

import "google.golang.org/protobuf/encoding/protowire"

// Encode64 zigzag-encodes a signed 64-bit value for varint transmission.
func Encode64(n int64) uint64 { return protowire.EncodeZigZag(n) }

// Decode64 reverses Encode64.
func Decode64(n uint64) int64 { return protowire.DecodeZigZag(n) }

// Encode32 zigzag-encodes a signed 32-bit value.
//
// sint32 still round-trips through the full 64-bit zigzag transform on the
// wire, so this widens before encoding and narrows after decoding.
func Encode32(n int32) uint64 { return Encode64(int64(n)) }

// Decode32 reverses Encode32.
func Decode32(n uint64) int32 { return int32(Decode64(n)) }
