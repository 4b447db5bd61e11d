// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsonkit encodes, decodes and builds BSON documents, and converts
// JSON text to BSON in a single pass.
//
// Documents
//
// A Document is a read-only view over encoded bytes.  Elements are decoded on
// demand by an Iterator; nothing is copied and sizes of variable-length
// values are read from their own length prefixes.  Decoding errors match
// ErrInvalidEncoding and stop iteration at the offending element.
//
// Builders
//
// A Builder appends elements to a growable Region and patches the document's
// length prefix on Finalize.  Nested builders for embedded documents and
// arrays write into the same Region as their parent.  Builders keep offsets,
// never slices, so the Region may reallocate freely as it grows.
//
// JSON
//
// ParseJSON scans JSON text and reports structure and scalars to a Visitor.
// Parse and Converter use it to drive a stack of builders, producing a BSON
// document without an intermediate tree.  Besides standard JSON, the literal
// ObjectId("<24 hex digits>") is accepted and becomes an object id.  The whole
// text must be in memory; there is no streaming mode.
//
// Concurrency
//
// Regions and builders must be used from one goroutine at a time.  Finalized
// documents are immutable and may be read by any number of goroutines.
package bsonkit
