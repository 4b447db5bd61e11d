package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/xdg-go/bsonkit"
	"github.com/xdg-go/bsonkit/internal/config"
	"github.com/xdg-go/bsonkit/oid"
)

// Source holds the flags shared by commands that read JSON.
type Source struct {
	Input      string `arg:"" optional:"" help:"JSON file to read. Reads stdin if omitted or '-'." type:"path"`
	Path       string `help:"gjson path selecting the object or array to convert." short:"p"`
	UniqueKeys bool   `help:"Reject repeated keys within an object." short:"u"`
	MaxDepth   int    `help:"Maximum nesting depth; overrides the config file." default:"-1"`
}

// ConvertCmd converts JSON to BSON.
type ConvertCmd struct {
	Source `embed:""`

	Output string `help:"File to write. Writes stdout if omitted." short:"o" type:"path"`
	Format string `help:"Output format: hex, raw or extjson; overrides the config file." short:"f"`
}

// InspectCmd lists the elements of converted JSON.
type InspectCmd struct {
	Source `embed:""`

	Recursive bool `help:"Descend into embedded documents and arrays." short:"r"`
}

// OIDCmd generates object ids.
type OIDCmd struct {
	Count      int  `help:"Number of ids to generate." short:"n" default:"1"`
	Sequential bool `help:"Use an 8-byte sequence instead of machine, pid and counter." short:"s"`
}

// Run executes the convert command.
func (c *ConvertCmd) Run(e *env) error {
	if c.Format != "" {
		e.cfg.Output.Format = c.Format
		if err := e.cfg.Validate(); err != nil {
			return err
		}
	}

	doc, err := c.convert(e)
	if err != nil {
		return err
	}

	out := e.out
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return errors.Wrap(err, "failed to create output file")
		}
		defer f.Close()
		out = f
	}
	return writeDocument(out, doc, e.cfg.Output.Format)
}

// Run executes the inspect command.
func (c *InspectCmd) Run(e *env) error {
	doc, err := c.convert(e)
	if err != nil {
		return err
	}
	return listElements(e.out, doc, c.Recursive, 0)
}

// Run executes the oid command.
func (c *OIDCmd) Run(e *env) error {
	if c.Count < 1 {
		return errors.Errorf("count must be positive, got %d", c.Count)
	}
	g := oid.NewGenerator()
	for i := 0; i < c.Count; i++ {
		var id oid.ID
		if c.Sequential {
			id = g.NewSequential()
		} else {
			id = g.New()
		}
		if _, err := fmt.Fprintln(e.out, id.Hex()); err != nil {
			return err
		}
	}
	e.log.WithFields(logrus.Fields{"count": c.Count, "sequential": c.Sequential}).Debug("generated ids")
	return nil
}

func (s *Source) read(in io.Reader) ([]byte, error) {
	if s.Input == "" || s.Input == "-" {
		data, err := io.ReadAll(in)
		return data, errors.Wrap(err, "failed to read stdin")
	}
	data, err := os.ReadFile(s.Input)
	return data, errors.Wrap(err, "failed to read input file")
}

// selectPath narrows data to the value at path.
func selectPath(data []byte, path string) ([]byte, error) {
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, errors.Errorf("path %q matches nothing", path)
	}
	if !res.IsObject() && !res.IsArray() {
		return nil, errors.Errorf("path %q selects a %s, not an object or array", path, res.Type)
	}
	return []byte(res.Raw), nil
}

func (s *Source) convert(e *env) (bsonkit.Document, error) {
	data, err := s.read(e.in)
	if err != nil {
		return bsonkit.Document{}, err
	}
	if s.Path != "" {
		if data, err = selectPath(data, s.Path); err != nil {
			return bsonkit.Document{}, err
		}
	}

	cfg := *e.cfg
	if s.UniqueKeys {
		cfg.Parser.UniqueKeys = true
	}
	if s.MaxDepth >= 0 {
		cfg.Parser.MaxDepth = s.MaxDepth
	}

	start := time.Now()
	doc, err := cfg.Converter().Convert(data)
	if err != nil {
		return bsonkit.Document{}, err
	}
	e.log.WithFields(logrus.Fields{
		"json_bytes": len(data),
		"bson_bytes": doc.Size(),
		"elapsed":    time.Since(start),
	}).Debug("converted")
	return doc, nil
}

func writeDocument(w io.Writer, doc bsonkit.Document, format string) error {
	var err error
	switch format {
	case config.FormatRaw:
		_, err = w.Write(doc.Bytes())
	case config.FormatExtJSON:
		_, err = fmt.Fprintln(w, doc.String())
	default:
		_, err = fmt.Fprintln(w, hex.EncodeToString(doc.Bytes()))
	}
	return errors.Wrap(err, "failed to write output")
}

func listElements(w io.Writer, doc bsonkit.Document, recursive bool, depth int) error {
	indent := strings.Repeat("  ", depth)
	it := doc.Iterator()
	for ; !it.AtEnd(); it.Advance() {
		el, err := it.Element()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s\t%s\t%d\n", indent, el.Key(), el.Type(), el.TotalSize()); err != nil {
			return err
		}
		if !recursive {
			continue
		}
		switch el.Type() {
		case bsonkit.TypeDocument, bsonkit.TypeArray:
			sub, err := bsonkit.NewDocument(el.Value())
			if err != nil {
				return err
			}
			if err := listElements(w, sub, true, depth+1); err != nil {
				return err
			}
		}
	}
	return it.Err()
}
