package bsonkit

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/xdg-go/bsonkit/oid"
)

// DefaultMaxDepth is the default limit on nesting of objects and arrays.
const DefaultMaxDepth = 200

// Visitor receives the events of a JSON parse.  Start events carry the key
// the container is stored under; keyed is false for the root container and
// for array members.  A non-nil error from any method aborts the parse.
type Visitor interface {
	StartObject(key string, keyed bool) error
	EndObject() error
	StartArray(key string, keyed bool) error
	EndArray() error
	Pair(key string, v Scalar) error
	Value(v Scalar) error
}

// ScalarKind identifies the type carried by a Scalar.
type ScalarKind int

// Scalar kinds.
const (
	ScalarNull ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarDouble
	ScalarString
	ScalarObjectID
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarNull:
		return "null"
	case ScalarBool:
		return "bool"
	case ScalarInt:
		return "int"
	case ScalarDouble:
		return "double"
	case ScalarString:
		return "string"
	case ScalarObjectID:
		return "objectid"
	}
	return "unknown"
}

// Scalar is a decoded JSON scalar.  Only the field matching Kind is set.
type Scalar struct {
	Kind   ScalarKind
	Bool   bool
	Int    int64
	Double float64
	String string
	OID    oid.ID
}

type tokenKind int

const (
	tokenUndef tokenKind = iota
	tokenString
	tokenInt
	tokenFloat
	tokenTrue
	tokenFalse
	tokenNull
	tokenOID
	tokenKey
)

// token is a lexical token.  For strings the span excludes the quotes and
// escapes are left in place; escaped records whether any were seen.
type token struct {
	kind    tokenKind
	start   int
	end     int
	escaped bool
	i       int64
	f       float64
	oid     oid.ID
}

type parseState int

const (
	stRoot        parseState = iota // before the root container
	stObjectStart                   // after '{': key or '}'
	stKey                           // after ',' in an object: key
	stColon                         // after a key
	stValue                         // after ':': value
	stArrayStart                    // after '[': value or ']'
	stArrayValue                    // after ',' in an array: value
	stAfterValue                    // ',' or close
	stDone                          // after the root container
)

type parser struct {
	text     []byte
	pos      int
	v        Visitor
	maxDepth int
	stack    []byte
	state    parseState
	last     token
	key      token
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}

	oidPrefix = []byte(`ObjectId("`)
)

// ParseJSON scans a complete JSON text and reports its structure to v.  The
// text must hold exactly one object or array, optionally surrounded by white
// space.  The extension literal ObjectId("<24 hex digits>") is accepted
// wherever a value is.  Parsing stops at the first error, which is a
// *ParseError for malformed input or the error returned by v.
func ParseJSON(text []byte, v Visitor) error {
	return parseJSON(text, v, DefaultMaxDepth)
}

func parseJSON(text []byte, v Visitor, maxDepth int) error {
	p := &parser{text: text, v: v, maxDepth: maxDepth}
	return p.parse()
}

func (p *parser) parse() error {
	if err := p.handleBOM(); err != nil {
		return err
	}

	for p.pos < len(p.text) {
		var err error
		switch ch := p.text[p.pos]; ch {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '{':
			err = p.startContainer('{')
		case '}':
			err = p.endContainer('{')
		case '[':
			err = p.startContainer('[')
		case ']':
			err = p.endContainer('[')
		case ':':
			err = p.colon()
		case ',':
			err = p.comma()
		case '"':
			err = p.stringToken()
		case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			err = p.number()
		case 'n':
			err = p.literal(tokenNull, "null")
		case 't':
			err = p.literal(tokenTrue, "true")
		case 'f':
			err = p.literal(tokenFalse, "false")
		case 'O':
			err = p.objectID()
		default:
			err = p.errorf("unexpected character %q", ch)
		}
		if err != nil {
			return err
		}
	}

	switch p.state {
	case stDone:
		return nil
	case stRoot:
		return p.errorf("no JSON object or array found")
	default:
		return p.errorf("unexpected end of input")
	}
}

// handleBOM skips a UTF-8 byte-order-mark and rejects others.
func (p *parser) handleBOM() error {
	if bytes.HasPrefix(p.text, utf32BEBOM) || bytes.HasPrefix(p.text, utf32LEBOM) {
		return p.errorf("detected unsupported UTF-32 BOM")
	}
	if bytes.HasPrefix(p.text, utf16BEBOM) || bytes.HasPrefix(p.text, utf16LEBOM) {
		return p.errorf("detected unsupported UTF-16 BOM")
	}
	if bytes.HasPrefix(p.text, utf8BOM) {
		p.pos = len(utf8BOM)
	}
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return newParseError(p.text, p.pos, fmt.Sprintf(format, args...))
}

// visit tags a visitor error with the current offset.
func (p *parser) visit(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithMessagef(err, "at offset %d", p.pos)
}

func (p *parser) expectingValue() bool {
	switch p.state {
	case stValue, stArrayStart, stArrayValue:
		return true
	}
	return false
}

func (p *parser) inObject() bool {
	return len(p.stack) > 0 && p.stack[len(p.stack)-1] == '{'
}

func (p *parser) startContainer(open byte) error {
	if p.state != stRoot && !p.expectingValue() {
		return p.unexpected("'" + string(open) + "'")
	}
	if p.maxDepth > 0 && len(p.stack) >= p.maxDepth {
		return p.errorf("maximum depth exceeded")
	}

	var key string
	keyed := p.key.kind == tokenKey
	if keyed {
		key = p.key.text(p.text)
	}

	var err error
	if open == '{' {
		err = p.v.StartObject(key, keyed)
	} else {
		err = p.v.StartArray(key, keyed)
	}
	if err != nil {
		return p.visit(err)
	}

	p.key.kind = tokenUndef
	p.last.kind = tokenUndef
	p.stack = append(p.stack, open)
	if open == '{' {
		p.state = stObjectStart
	} else {
		p.state = stArrayStart
	}
	p.pos++
	return nil
}

func (p *parser) endContainer(open byte) error {
	if len(p.stack) == 0 || p.stack[len(p.stack)-1] != open {
		return p.errorf("mismatched '%c'", p.text[p.pos])
	}
	switch p.state {
	case stObjectStart, stArrayStart, stAfterValue:
	case stKey, stArrayValue:
		return p.errorf("trailing comma")
	default:
		return p.unexpected("'" + string(p.text[p.pos]) + "'")
	}

	if err := p.flush(); err != nil {
		return err
	}

	var err error
	if open == '{' {
		err = p.v.EndObject()
	} else {
		err = p.v.EndArray()
	}
	if err != nil {
		return p.visit(err)
	}

	p.stack = p.stack[:len(p.stack)-1]
	if len(p.stack) == 0 {
		p.state = stDone
	} else {
		p.state = stAfterValue
	}
	p.pos++
	return nil
}

func (p *parser) colon() error {
	if p.state != stColon {
		return p.unexpected("':'")
	}
	p.key = p.last
	p.key.kind = tokenKey
	p.last.kind = tokenUndef
	p.state = stValue
	p.pos++
	return nil
}

func (p *parser) comma() error {
	if p.state != stAfterValue {
		return p.unexpected("','")
	}
	if err := p.flush(); err != nil {
		return err
	}
	if p.inObject() {
		p.state = stKey
	} else {
		p.state = stArrayValue
	}
	p.pos++
	return nil
}

// flush emits a pending value as a pair or an array value and clears both
// slots.
func (p *parser) flush() error {
	if p.last.kind == tokenUndef {
		p.key.kind = tokenUndef
		return nil
	}
	v := p.last.scalar(p.text)
	var err error
	if p.key.kind == tokenKey {
		err = p.v.Pair(p.key.text(p.text), v)
	} else {
		err = p.v.Value(v)
	}
	p.key.kind = tokenUndef
	p.last.kind = tokenUndef
	return p.visit(err)
}

// unexpected reports a token that the grammar does not allow in the current
// state.
func (p *parser) unexpected(what string) error {
	switch p.state {
	case stRoot:
		return p.errorf("root value must be an object or array")
	case stObjectStart:
		return p.errorf("expecting key or end of object, got %s", what)
	case stKey:
		return p.errorf("expecting key, got %s", what)
	case stColon:
		return p.errorf("expecting ':', got %s", what)
	case stAfterValue:
		if p.inObject() {
			return p.errorf("expecting value-separator or end of object, got %s", what)
		}
		return p.errorf("expecting value-separator or end of array, got %s", what)
	case stDone:
		return p.errorf("unexpected %s after end of root", what)
	case stArrayStart:
		return p.errorf("expecting value or end of array, got %s", what)
	}
	return p.errorf("expecting value, got %s", what)
}

// valueDone records a completed value token.
func (p *parser) valueDone(tok token) error {
	if !p.expectingValue() {
		return p.unexpected("value")
	}
	p.last = tok
	p.state = stAfterValue
	return nil
}

func (p *parser) stringToken() error {
	isKey := p.state == stObjectStart || p.state == stKey
	if !isKey && !p.expectingValue() {
		return p.unexpected("string")
	}
	tok, err := p.scanString()
	if err != nil {
		return err
	}
	p.last = tok
	if isKey {
		p.state = stColon
	} else {
		p.state = stAfterValue
	}
	return nil
}

// scanString scans from an opening quote to its closing quote.
func (p *parser) scanString() (token, error) {
	i := p.pos + 1
	tok := token{kind: tokenString, start: i}
	for i < len(p.text) {
		c := p.text[i]
		switch {
		case c == '"':
			tok.end = i
			p.pos = i + 1
			return tok, nil
		case c < 0x20:
			p.pos = i
			return tok, p.errorf("control character in string")
		case c == '\\':
			tok.escaped = true
			if i+1 >= len(p.text) {
				p.pos = i
				return tok, p.errorf("unterminated string")
			}
			switch p.text[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				i += 2
			case 'u':
				if i+6 > len(p.text) {
					p.pos = i
					return tok, p.errorf("unterminated string")
				}
				if _, ok := hex4(p.text[i+2 : i+6]); !ok {
					p.pos = i
					return tok, p.errorf("invalid unicode escape")
				}
				i += 6
			default:
				p.pos = i
				return tok, p.errorf("unknown escape '%c'", p.text[i+1])
			}
		default:
			i++
		}
	}
	p.pos = tok.start - 1
	return tok, p.errorf("unterminated string")
}

func hex4(b []byte) (rune, bool) {
	var r rune
	for _, c := range b {
		switch {
		case '0' <= c && c <= '9':
			r = r<<4 | rune(c-'0')
		case 'a' <= c && c <= 'f':
			r = r<<4 | rune(c-'a'+10)
		case 'A' <= c && c <= 'F':
			r = r<<4 | rune(c-'A'+10)
		default:
			return 0, false
		}
	}
	return r, true
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',', '}', ']':
		return true
	}
	return false
}

func (p *parser) number() error {
	text := p.text
	start := p.pos
	i := p.pos
	isFloat := false

	digits := func() int {
		n := 0
		for i < len(text) && '0' <= text[i] && text[i] <= '9' {
			i++
			n++
		}
		return n
	}

	if text[i] == '-' {
		i++
	}
	switch {
	case i >= len(text):
		p.pos = i
		return p.errorf("unexpected end of input")
	case text[i] == '0':
		i++
	case '1' <= text[i] && text[i] <= '9':
		digits()
	default:
		p.pos = i
		return p.errorf("expecting digit")
	}
	if i < len(text) && text[i] == '.' {
		isFloat = true
		i++
		if digits() == 0 {
			p.pos = i
			return p.errorf("expecting digit after decimal point")
		}
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		isFloat = true
		i++
		if i < len(text) && (text[i] == '+' || text[i] == '-') {
			i++
		}
		if digits() == 0 {
			p.pos = i
			return p.errorf("expecting digit in exponent")
		}
	}
	if i < len(text) && !isDelimiter(text[i]) {
		p.pos = i
		return p.errorf("invalid character %q in number", text[i])
	}

	tok := token{start: start, end: i}
	if isFloat {
		f, err := strconv.ParseFloat(string(text[start:i]), 64)
		if err != nil || math.IsInf(f, 0) {
			return p.errorf("float value out of range")
		}
		tok.kind = tokenFloat
		tok.f = f
	} else {
		n, err := strconv.ParseInt(string(text[start:i]), 10, 64)
		if err != nil {
			return p.errorf("integer value out of range")
		}
		tok.kind = tokenInt
		tok.i = n
	}
	if err := p.valueDone(tok); err != nil {
		return err
	}
	p.pos = i
	return nil
}

// literal matches null, true or false.  The first letter is matched exactly
// by the dispatcher; the rest case-insensitively.
func (p *parser) literal(kind tokenKind, word string) error {
	end := p.pos + len(word)
	if end > len(p.text) {
		if bytes.EqualFold(p.text[p.pos:], []byte(word[:len(p.text)-p.pos])) {
			p.pos = len(p.text)
			return p.errorf("unexpected end of input")
		}
		return p.errorf("expecting %s", word)
	}
	if !bytes.EqualFold(p.text[p.pos:end], []byte(word)) {
		return p.errorf("expecting %s", word)
	}
	if end < len(p.text) && !isDelimiter(p.text[end]) {
		return p.errorf("expecting %s", word)
	}
	if err := p.valueDone(token{kind: kind, start: p.pos, end: end}); err != nil {
		return err
	}
	p.pos = end
	return nil
}

func (p *parser) objectID() error {
	if !bytes.HasPrefix(p.text[p.pos:], oidPrefix) {
		return p.errorf("expecting ObjectId")
	}
	start := p.pos
	p.pos += len(oidPrefix) - 1
	str, err := p.scanString()
	if err != nil {
		return err
	}
	if str.escaped || str.end-str.start != 2*oid.Size {
		p.pos = str.start
		return p.errorf("ObjectId needs %d hex digits", 2*oid.Size)
	}
	id, err := oid.FromHex(string(p.text[str.start:str.end]))
	if err != nil {
		p.pos = str.start
		return p.errorf("ObjectId needs %d hex digits", 2*oid.Size)
	}
	if p.pos >= len(p.text) || p.text[p.pos] != ')' {
		return p.errorf("expecting ')'")
	}
	end := p.pos + 1
	if end < len(p.text) && !isDelimiter(p.text[end]) {
		p.pos = end
		return p.errorf("unexpected character after ObjectId")
	}
	p.pos = start
	if err := p.valueDone(token{kind: tokenOID, start: start, end: end, oid: id}); err != nil {
		return err
	}
	p.pos = end
	return nil
}

// text returns a string token's contents with escapes decoded.
func (t token) text(src []byte) string {
	raw := src[t.start:t.end]
	if !t.escaped {
		return string(raw)
	}
	return string(unescape(raw))
}

func (t token) scalar(src []byte) Scalar {
	switch t.kind {
	case tokenString:
		return Scalar{Kind: ScalarString, String: t.text(src)}
	case tokenInt:
		return Scalar{Kind: ScalarInt, Int: t.i}
	case tokenFloat:
		return Scalar{Kind: ScalarDouble, Double: t.f}
	case tokenTrue:
		return Scalar{Kind: ScalarBool, Bool: true}
	case tokenFalse:
		return Scalar{Kind: ScalarBool, Bool: false}
	case tokenOID:
		return Scalar{Kind: ScalarObjectID, OID: t.oid}
	}
	return Scalar{Kind: ScalarNull}
}

// unescape decodes the escapes of a string already validated by scanString.
// Unpaired surrogates become U+FFFD.
func unescape(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		switch raw[i] {
		case '"', '\\', '/':
			out = append(out, raw[i])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, _ := hex4(raw[i+1 : i+5])
			i += 4
			if utf16.IsSurrogate(r) {
				if i+6 < len(raw) && raw[i+1] == '\\' && raw[i+2] == 'u' {
					if r2, ok := hex4(raw[i+3 : i+7]); ok {
						if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
							r = dec
							i += 6
						} else {
							r = utf8.RuneError
						}
					}
				} else {
					r = utf8.RuneError
				}
			}
			out = utf8.AppendRune(out, r)
		}
	}
	return out
}
