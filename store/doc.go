// Copyright 2026 Ian Lewis
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

// Package store persists built indexes so a corpus is only scanned once.
//
// One file is kept per corpus. An index file has the following layout:
//
//	magic    "BIBIDX\n"
//	version  1 byte
//	header   compression byte, raw payload length, corpus identity
//	         (path, size, modification time in nanoseconds), corpus length
//	length   uvarint, stored payload length
//	checksum 4 bytes little-endian CRC32 (IEEE) of header and stored payload
//	payload  folding name, scan statistics, arena, author entries, title
//	         entries; compressed as given by the header
//
// Integers are unsigned varints unless noted. Each entry is three uvarints:
// key start, key length and record position.
//
// Files are written to a temporary file, synced and then renamed so a reader
// never observes a partial index.
package store
