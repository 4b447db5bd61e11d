package oid

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Generator produces identifiers.  The machine number, process id and the
// random counter seed are resolved once, on first use.  Both counters are
// advanced atomically, so a Generator may be shared between goroutines.
type Generator struct {
	now func() time.Time

	machine    uint32
	machineSet bool
	pid        uint16
	pidSet     bool
	seed       uint32
	seedSet    bool

	saltOnce sync.Once
	salt     [5]byte
	counter  atomic.Uint32
	sequence atomic.Uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithMachine fixes the machine number.  Only the low 3 bytes are used.
func WithMachine(m uint32) Option {
	return func(g *Generator) {
		g.machine = m & 0xFFFFFF
		g.machineSet = true
	}
}

// WithPid fixes the process id.
func WithPid(pid uint16) Option {
	return func(g *Generator) {
		g.pid = pid
		g.pidSet = true
	}
}

// WithSeed fixes the starting value of the random-mode counter.
func WithSeed(seed uint32) Option {
	return func(g *Generator) {
		g.seed = seed
		g.seedSet = true
	}
}

// NewGenerator returns a Generator with independent counters.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) initSalt() {
	if !g.machineSet {
		g.machine = machineNumber()
	}
	if !g.pidSet {
		g.pid = uint16(os.Getpid())
	}
	if !g.seedSet {
		g.seed = randomUint32()
	}
	g.salt[0] = byte(g.machine >> 16)
	g.salt[1] = byte(g.machine >> 8)
	g.salt[2] = byte(g.machine)
	binary.BigEndian.PutUint16(g.salt[3:5], g.pid)
	g.counter.Store(g.seed)
}

// New returns a random-mode ID: timestamp, machine, pid and a 3-byte counter.
func (g *Generator) New() ID {
	g.saltOnce.Do(g.initSalt)

	var id ID
	putTimestamp(&id, g.now())
	copy(id[4:9], g.salt[:])
	c := g.counter.Add(1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// NewSequential returns a sequential-mode ID: timestamp and an 8-byte
// counter that starts at one.
func (g *Generator) NewSequential() ID {
	var id ID
	putTimestamp(&id, g.now())
	binary.BigEndian.PutUint64(id[4:12], g.sequence.Add(1))
	return id
}

var defaultGenerator = NewGenerator()

// New returns a random-mode ID from the process-wide generator.
func New() ID {
	return defaultGenerator.New()
}

// NewSequential returns a sequential-mode ID from the process-wide
// generator.
func NewSequential() ID {
	return defaultGenerator.NewSequential()
}

func machineNumber() uint32 {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return randomUint32() & 0xFFFFFF
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return h.Sum32() & 0xFFFFFF
}

func randomUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(b[:])
}
