// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bsonkit

import (
	"math"

	"github.com/pkg/errors"
)

// Converter turns JSON text into a BSON document in a single pass.  It keeps
// one Builder per open JSON object or array; nested builders share the root
// builder's Region, so an embedded document is written in place and only its
// length prefix is patched when it closes.  No intermediate tree is built.
//
// A Converter may be reused, but not concurrently.
type Converter struct {
	maxDepth   int
	capacity   int
	limit      int
	uniqueKeys bool
}

// NewConverter returns a Converter with default settings.
func NewConverter() *Converter {
	return &Converter{
		maxDepth: DefaultMaxDepth,
		capacity: DefaultRegionCapacity,
	}
}

// MaxDepth sets the maximum nesting of objects and arrays.  The default is
// 200.  Zero or less disables the limit.
func (c *Converter) MaxDepth(n int) {
	c.maxDepth = n
}

// InitialCapacity sets the starting capacity of the output Region.
func (c *Converter) InitialCapacity(n int) {
	c.capacity = n
}

// Limit caps the size of the output Region.  Exceeding it fails the
// conversion with ErrOutOfMemory.  Zero means no limit.
func (c *Converter) Limit(n int) {
	c.limit = n
}

// UniqueKeys toggles rejection of repeated keys within one object with
// ErrDuplicateKey.  It is off by default and array keys are never checked.
func (c *Converter) UniqueKeys(b bool) {
	c.uniqueKeys = b
}

// Convert parses text and returns the resulting document.  The root may be an
// object or an array; an array becomes a document keyed "0", "1", ...  On any
// error no document is returned.
func (c *Converter) Convert(text []byte) (Document, error) {
	r := NewRegion(c.capacity)
	r.SetLimit(c.limit)
	return c.convertInto(r, text)
}

func (c *Converter) convertInto(r *Region, text []byte) (Document, error) {
	s := &builderStack{region: r, uniqueKeys: c.uniqueKeys}
	if err := parseJSON(text, s, c.maxDepth); err != nil {
		return Document{}, err
	}
	if !s.finished {
		return Document{}, newParseError(text, len(text), "no JSON object or array found")
	}
	return s.result, nil
}

// Parse converts a JSON object or array to a BSON document with default
// settings.
func Parse(text []byte) (Document, error) {
	return NewConverter().Convert(text)
}

// Unmarshal converts a JSON object or array to a BSON document appended to out.
// If out is not large enough, a new buffer is allocated on demand.  The final
// buffer is returned, just like with `append`.
func Unmarshal(in []byte, out []byte) ([]byte, error) {
	r := &Region{buf: out}
	if _, err := NewConverter().convertInto(r, in); err != nil {
		return nil, err
	}
	return r.buf, nil
}

type frame struct {
	b     *Builder
	array bool
	keys  map[string]struct{}
}

// builderStack is the Visitor that drives builders from parser events.
type builderStack struct {
	region     *Region
	uniqueKeys bool
	frames     []frame
	result     Document
	finished   bool
}

func (s *builderStack) top() *frame {
	return &s.frames[len(s.frames)-1]
}

// checkKey enforces unique keys when enabled.
func (s *builderStack) checkKey(f *frame, key string) error {
	if !s.uniqueKeys || f.array {
		return nil
	}
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	if _, ok := f.keys[key]; ok {
		return errors.Wrapf(ErrDuplicateKey, "%q", key)
	}
	f.keys[key] = struct{}{}
	return nil
}

func (s *builderStack) push(key string, array bool) error {
	if s.finished {
		return errors.New("document already complete")
	}

	var b *Builder
	if len(s.frames) == 0 {
		var err error
		b, err = NewBuilderIn(s.region)
		if err != nil {
			return err
		}
	} else {
		parent := s.top()
		if parent.array {
			key = indexKey(parent.b.index)
		} else if err := s.checkKey(parent, key); err != nil {
			return err
		}

		t := TypeDocument
		if array {
			t = TypeArray
		}
		var err error
		b, err = parent.b.nested(t, key)
		if err != nil {
			return err
		}
		if parent.array {
			parent.b.index++
		}
	}

	s.frames = append(s.frames, frame{b: b, array: array})
	return nil
}

func (s *builderStack) pop() error {
	f := s.top()
	doc, err := f.b.Finalize()
	if err != nil {
		return err
	}
	s.frames = s.frames[:len(s.frames)-1]
	if len(s.frames) == 0 {
		s.result = doc
		s.finished = true
	}
	return nil
}

func (s *builderStack) StartObject(key string, keyed bool) error {
	return s.push(key, false)
}

func (s *builderStack) StartArray(key string, keyed bool) error {
	return s.push(key, true)
}

func (s *builderStack) EndObject() error {
	return s.pop()
}

func (s *builderStack) EndArray() error {
	return s.pop()
}

func (s *builderStack) Pair(key string, v Scalar) error {
	f := s.top()
	if f.array {
		return s.Value(v)
	}
	if err := s.checkKey(f, key); err != nil {
		return err
	}
	return appendScalar(f.b, key, v)
}

func (s *builderStack) Value(v Scalar) error {
	f := s.top()
	if !f.array {
		return errors.New("keyless value inside an object")
	}
	if err := appendScalar(f.b, indexKey(f.b.index), v); err != nil {
		return err
	}
	f.b.index++
	return nil
}

// appendScalar appends v with the BSON type matching its runtime kind.
// Integers that fit in 32 bits are stored as int32, others as int64.
func appendScalar(b *Builder, key string, v Scalar) error {
	switch v.Kind {
	case ScalarNull:
		return b.AppendNull(key)
	case ScalarBool:
		return b.AppendBoolean(key, v.Bool)
	case ScalarInt:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return b.AppendInt64(key, v.Int)
		}
		return b.AppendInt32(key, int32(v.Int))
	case ScalarDouble:
		return b.AppendDouble(key, v.Double)
	case ScalarString:
		return b.AppendString(key, v.String)
	case ScalarObjectID:
		return b.AppendObjectID(key, v.OID)
	}
	return errors.Errorf("unknown scalar kind %d", v.Kind)
}
