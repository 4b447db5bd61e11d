package bsonkit

import "strconv"

// Type is a BSON element type tag.
type Type byte

// Element type tags.  MinKey is the signed byte -1.
const (
	TypeEOO           Type = 0x00
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeDocument      Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeObjectID      Type = 0x07
	TypeBoolean       Type = 0x08
	TypeDateTime      Type = 0x09
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeDBPointer     Type = 0x0C
	TypeJavaScript    Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11
	TypeInt64         Type = 0x12
	TypeMinKey        Type = 0xFF
	TypeMaxKey        Type = 0x7F
)

// Binary subtypes.
const (
	BinaryGeneric     byte = 0x00
	BinaryFunction    byte = 0x01
	BinaryBinaryOld   byte = 0x02
	BinaryUUIDOld     byte = 0x03
	BinaryUUID        byte = 0x04
	BinaryMD5         byte = 0x05
	BinaryUserDefined byte = 0x80
)

const (
	nullByte  byte = 0x00
	oidLength      = 12
	// Smallest document: length prefix and terminator.
	minDocumentLength = 5
)

var emptyLength = []byte{0x00, 0x00, 0x00, 0x00}

// Pre-rendered keys for the first array indexes.
var arrayKey [100]string

func init() {
	for i := range arrayKey {
		arrayKey[i] = strconv.Itoa(i)
	}
}

func indexKey(i uint64) string {
	if i < uint64(len(arrayKey)) {
		return arrayKey[i]
	}
	return strconv.FormatUint(i, 10)
}

// Valid reports whether t is one of the known element types.  TypeEOO is not
// a valid element type.
func (t Type) Valid() bool {
	switch t {
	case TypeDouble, TypeString, TypeDocument, TypeArray, TypeBinary,
		TypeUndefined, TypeObjectID, TypeBoolean, TypeDateTime, TypeNull,
		TypeRegex, TypeDBPointer, TypeJavaScript, TypeSymbol,
		TypeCodeWithScope, TypeInt32, TypeTimestamp, TypeInt64,
		TypeMinKey, TypeMaxKey:
		return true
	}
	return false
}

func (t Type) String() string {
	switch t {
	case TypeEOO:
		return "end of object"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "embedded document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectID"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "UTC datetime"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeDBPointer:
		return "dbPointer"
	case TypeJavaScript:
		return "javascript"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWithScope:
		return "code with scope"
	case TypeInt32:
		return "32-bit integer"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "64-bit integer"
	case TypeMinKey:
		return "min key"
	case TypeMaxKey:
		return "max key"
	}
	return "invalid type 0x" + strconv.FormatUint(uint64(t), 16)
}
