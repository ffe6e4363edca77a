package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

var (
	// ErrDuplicateCollection is returned when two collections share an id.
	ErrDuplicateCollection = errors.New("state: duplicate collection id")

	// ErrSealed is returned when registering after the first Advance.
	ErrSealed = errors.New("state: store already advanced")

	// ErrFrameOrder is returned when Advance is called out of sequence.
	ErrFrameOrder = errors.New("state: frame out of order")

	// ErrSnapshotMismatch is returned when a snapshot does not cover the
	// registered collections.
	ErrSnapshotMismatch = errors.New("state: snapshot does not match store")
)

// Collection is a piece of simulation state that takes part in rollback.
type Collection interface {
	// CollectionID names the collection inside composite snapshots.
	CollectionID() string
	// Capture returns an independent copy of the current contents.
	Capture() any
	// Apply replaces the contents with a value returned by Capture. The
	// captured value must stay usable for later Apply calls.
	Apply(captured any) error
	// Hash writes a deterministic encoding of the contents.
	Hash(w io.Writer)
}

// SystemFunc advances one aspect of the simulation by one frame.
type SystemFunc func(ctx *AdvanceContext)

type system struct {
	name string
	fn   SystemFunc
}

// Snapshot is an opaque composite capture of every collection in a store.
type Snapshot struct {
	// Frame is the next frame the store would advance.
	Frame domain.Frame

	parts map[string]any
}

// Valid reports whether s was produced by Store.Snapshot.
func (s Snapshot) Valid() bool {
	return s.parts != nil
}

// Store aggregates collections and systems.
type Store struct {
	seed        uint64
	collections []Collection
	byID        map[string]Collection
	systems     []system
	next        domain.Frame
	sealed      bool
}

// NewStore creates an empty store. seed is mixed into every frame's PRNG
// and must be identical on all peers of a session.
func NewStore(seed uint64) *Store {
	return &Store{
		seed: seed,
		byID: make(map[string]Collection),
	}
}

// Register adds a collection. Collections must be registered before the
// first Advance.
func (s *Store) Register(c Collection) error {
	if s.sealed {
		return ErrSealed
	}
	id := c.CollectionID()
	if _, ok := s.byID[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCollection, id)
	}
	s.byID[id] = c
	s.collections = append(s.collections, c)
	sort.Slice(s.collections, func(i, j int) bool {
		return s.collections[i].CollectionID() < s.collections[j].CollectionID()
	})
	return nil
}

// AddSystem appends a system. Systems run in the order they were added.
func (s *Store) AddSystem(name string, fn SystemFunc) error {
	if s.sealed {
		return ErrSealed
	}
	s.systems = append(s.systems, system{name: name, fn: fn})
	return nil
}

// Systems returns the system names in execution order.
func (s *Store) Systems() []string {
	names := make([]string, len(s.systems))
	for i, sys := range s.systems {
		names[i] = sys.name
	}
	return names
}

// NextFrame returns the frame the next Advance must carry.
func (s *Store) NextFrame() domain.Frame {
	return s.next
}

// Snapshot captures every collection.
func (s *Store) Snapshot() Snapshot {
	parts := make(map[string]any, len(s.collections))
	for _, c := range s.collections {
		parts[c.CollectionID()] = c.Capture()
	}
	return Snapshot{Frame: s.next, parts: parts}
}

// Restore makes the store exactly equal to the moment snap was taken.
func (s *Store) Restore(snap Snapshot) error {
	if !snap.Valid() || len(snap.parts) != len(s.collections) {
		return ErrSnapshotMismatch
	}
	for _, c := range s.collections {
		part, ok := snap.parts[c.CollectionID()]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrSnapshotMismatch, c.CollectionID())
		}
		if err := c.Apply(part); err != nil {
			return fmt.Errorf("restore %q: %w", c.CollectionID(), err)
		}
	}
	s.next = snap.Frame
	return nil
}

// Advance runs every system once for frame with inputs indexed by handle.
func (s *Store) Advance(frame domain.Frame, inputs []domain.PlayerInput) error {
	if frame != s.next {
		return fmt.Errorf("%w: advance %d, expected %d", ErrFrameOrder, frame, s.next)
	}
	s.sealed = true

	ctx := &AdvanceContext{
		Frame:  frame,
		Inputs: inputs,
		rng:    rand.New(rand.NewPCG(s.seed^uint64(uint32(frame)), inputDigest(inputs))),
		active: true,
	}
	for _, sys := range s.systems {
		sys.fn(ctx)
	}
	ctx.active = false
	s.next = frame + 1
	return nil
}

// Checksum folds every collection, in id order, into a murmur3 hash.
func (s *Store) Checksum() uint64 {
	h := murmur3.New64()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(s.next))
	h.Write(buf[:])
	for _, c := range s.collections {
		io.WriteString(h, c.CollectionID())
		c.Hash(h)
	}
	return h.Sum64()
}

func inputDigest(inputs []domain.PlayerInput) uint64 {
	h := murmur3.New64()
	buf := make([]byte, 0, domain.InputSize)
	for _, in := range inputs {
		buf, _ = in.AppendBinary(buf[:0])
		h.Write(buf)
	}
	return h.Sum64()
}

// AdvanceContext is the only handle through which systems may mutate state.
type AdvanceContext struct {
	// Frame being simulated.
	Frame domain.Frame

	// Inputs for Frame, indexed by handle.
	Inputs []domain.PlayerInput

	rng    *rand.Rand
	active bool
}

// Rand returns the frame's deterministic PRNG. Systems draw from it in
// registration order, so every peer sees the same sequence.
func (c *AdvanceContext) Rand() *rand.Rand {
	return c.rng
}

// Input returns the input of handle h, or the zero input if h is unknown.
func (c *AdvanceContext) Input(h domain.Handle) domain.PlayerInput {
	if int(h) >= len(c.Inputs) {
		return domain.PlayerInput{}
	}
	return c.Inputs[h]
}

func (c *AdvanceContext) mustBeActive() {
	if c == nil || !c.active {
		panic("state: mutation outside Store.Advance")
	}
}
