package oid

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()

	const s = "56e1fc72e0c917e9c4714161"
	id, err := FromHex(s)
	require.NoError(t, err)
	assert.Equal(t, s, id.Hex())
	assert.Equal(t, s, id.String())

	upper, err := FromHex("56E1FC72E0C917E9C4714161")
	require.NoError(t, err)
	assert.Equal(t, id, upper)

	for _, bad := range []string{"", "56e1fc72", "56e1fc72e0c917e9c471416", "56e1fc72e0c917e9c47141612", "56e1fc72e0c917e9c471416g"} {
		_, err := FromHex(bad)
		assert.ErrorIs(t, err, ErrInvalidHex, bad)
	}
}

func TestFromBytes(t *testing.T) {
	t.Parallel()

	b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	id, err := FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, "000102030405060708090a0b", id.Hex())

	b[0] = 0xff
	assert.Equal(t, byte(0), id[0], "FromBytes copies")

	_, err = FromBytes(b[:11])
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = FromBytes(append(b, 0))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestFieldAccessors(t *testing.T) {
	t.Parallel()

	id, err := FromHex("5e8469d8abcdef1234000102")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 4, 1, 10, 15, 52, 0, time.UTC), id.Timestamp())
	assert.Equal(t, uint32(0xabcdef), id.Machine())
	assert.Equal(t, uint16(0x1234), id.Pid())
	assert.Equal(t, uint32(0x000102), id.Counter())
	assert.Equal(t, uint64(0xabcdef1234000102), id.Sequence())
}

func TestCompareAndZero(t *testing.T) {
	t.Parallel()

	a, err := FromHex("000000000000000000000001")
	require.NoError(t, err)
	b, err := FromHex("000000000000000000000002")
	require.NoError(t, err)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, Nil.IsZero())
	assert.False(t, a.IsZero())
}

func TestTextMarshaling(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		ID ID `json:"id"`
	}
	id, err := FromHex("56e1fc72e0c917e9c4714161")
	require.NoError(t, err)

	out, err := json.Marshal(wrapper{ID: id})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"56e1fc72e0c917e9c4714161"}`, string(out))

	var w wrapper
	require.NoError(t, json.Unmarshal(out, &w))
	assert.Equal(t, id, w.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &w))
}

func TestPrimitiveInterop(t *testing.T) {
	t.Parallel()

	p := primitive.NewObjectID()
	id := FromPrimitive(p)
	assert.Equal(t, p.Hex(), id.Hex())
	assert.Equal(t, p, id.Primitive())
	assert.Equal(t, p.Timestamp().Unix(), id.Timestamp().Unix())
}

func TestGeneratorRandomMode(t *testing.T) {
	t.Parallel()

	g := NewGenerator(
		WithClock(fixedClock(1585735584)),
		WithMachine(0x01abcdef),
		WithPid(0x4242),
		WithSeed(0xfffffe),
	)

	first := g.New()
	assert.Equal(t, "5e8467a0abcdef4242ffffff", first.Hex())
	second := g.New()
	assert.Equal(t, uint32(0), second.Counter(), "counter wraps at 3 bytes")
	third := g.New()
	assert.Equal(t, uint32(1), third.Counter())

	for _, id := range []ID{first, second, third} {
		assert.Equal(t, uint32(0xabcdef), id.Machine())
		assert.Equal(t, uint16(0x4242), id.Pid())
		assert.Equal(t, int64(1585735584), id.Timestamp().Unix())
	}
}

func TestGeneratorSequentialMode(t *testing.T) {
	t.Parallel()

	g := NewGenerator(WithClock(fixedClock(1585735584)))

	const n = 100000
	seen := make(map[ID]struct{}, n)
	prev := Nil
	for i := 1; i <= n; i++ {
		id := g.NewSequential()
		require.Equal(t, uint64(i), id.Sequence())
		require.Equal(t, 1, id.Compare(prev), "sequential ids increase")
		seen[id] = struct{}{}
		prev = id
	}
	assert.Len(t, seen, n)
}

func TestGeneratorConcurrent(t *testing.T) {
	t.Parallel()

	g := NewGenerator(WithClock(fixedClock(1585735584)), WithSeed(0))

	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	random := make(map[ID]struct{}, workers*perWorker)
	sequential := make(map[uint64]struct{}, workers*perWorker)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			local := make([]ID, 0, 2*perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.New(), g.NewSequential())
			}
			mu.Lock()
			defer mu.Unlock()
			for i, id := range local {
				if i%2 == 0 {
					random[id] = struct{}{}
				} else {
					sequential[id.Sequence()] = struct{}{}
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Len(t, random, workers*perWorker, "duplicate random-mode ids")
	assert.Len(t, sequential, workers*perWorker, "duplicate sequence numbers")
	for i := uint64(1); i <= workers*perWorker; i++ {
		_, ok := sequential[i]
		require.True(t, ok, "sequence %d missing", i)
	}
}

func TestDefaultGenerator(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	assert.NotEqual(t, a, b)
	assert.Equal(t, a.Machine(), b.Machine())
	assert.Equal(t, a.Pid(), b.Pid())
	assert.WithinDuration(t, time.Now(), a.Timestamp(), time.Minute)

	s1 := NewSequential()
	s2 := NewSequential()
	assert.Greater(t, s2.Sequence(), s1.Sequence())
}
