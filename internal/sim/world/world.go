package world

import (
	"slices"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/rollback/state"
)

// Tuning constants. Distances are millimetres, durations frames.
const (
	MaxHealth = 100
	MaxMana   = 100

	// SpawnSpacing separates players along the x axis.
	SpawnSpacing = 4000

	// HitRadius is the distance from a head at which a projectile hits.
	HitRadius = 300

	// CastCooldown is the minimum spacing between two casts of a player.
	CastCooldown = 15

	// RespawnDelay is how long a defeated player stays out.
	RespawnDelay = 180

	// CritChance is the critical hit probability in percent.
	CritChance = 10
)

// Player is the simulated state of one participant.
type Player struct {
	Head domain.Vec3
	Hand domain.Vec3
	Aim  domain.Quat

	Health   int32
	Mana     int32
	Cooldown int32
	Respawn  int32

	Score uint32
	Crits uint32
}

// Alive reports whether the player can act and be hit.
func (p Player) Alive() bool { return p.Respawn == 0 }

// Projectile is a spell in flight.
type Projectile struct {
	ID    uint32
	Owner domain.Handle
	Spell uint8
	Pos   domain.Vec3
	Vel   domain.Vec3
	TTL   int32
}

type counters struct {
	NextID uint32
	Hits   uint32
}

// World is a duel arena on a state.Store. It implements rollback.Game.
type World struct {
	*state.Store

	players     *state.Value[[]Player]
	projectiles *state.Value[[]Projectile]
	counters    *state.Value[counters]
}

// New creates a world for n players. Every peer of a session must use the
// same seed and n.
func New(seed uint64, n int) (*World, error) {
	if n <= 0 || n > domain.MaxParticipants {
		return nil, domain.ErrInvalidSessionConfig.WithDetailsf("%d players", n)
	}
	initial := make([]Player, n)
	for h := range initial {
		initial[h] = Player{
			Head:   spawn(domain.Handle(h)),
			Hand:   spawn(domain.Handle(h)),
			Health: MaxHealth,
			Mana:   MaxMana,
		}
	}

	w := &World{
		Store:       state.NewStore(seed),
		players:     state.NewValue("players", initial, slices.Clone[[]Player], nil),
		projectiles: state.NewValue("projectiles", []Projectile(nil), slices.Clone[[]Projectile], nil),
		counters:    state.NewValue("counters", counters{}, nil, nil),
	}
	for _, c := range []state.Collection{w.players, w.projectiles, w.counters} {
		if err := w.Register(c); err != nil {
			return nil, err
		}
	}
	systems := []struct {
		name string
		fn   state.SystemFunc
	}{
		{"apply_input", w.applyInput},
		{"cast_spells", w.castSpells},
		{"move_projectiles", w.moveProjectiles},
		{"resolve_hits", w.resolveHits},
		{"regen", w.regen},
	}
	for _, sys := range systems {
		if err := w.AddSystem(sys.name, sys.fn); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Players returns a copy of the player states indexed by handle.
func (w *World) Players() []Player {
	return slices.Clone(w.players.Get())
}

// Projectiles returns a copy of the projectiles in flight.
func (w *World) Projectiles() []Projectile {
	return slices.Clone(w.projectiles.Get())
}

// Hits returns the number of projectile hits so far.
func (w *World) Hits() uint32 {
	return w.counters.Get().Hits
}

func spawn(h domain.Handle) domain.Vec3 {
	return domain.Vec3{X: int32(h) * SpawnSpacing}
}

func add(a, b domain.Vec3) domain.Vec3 {
	return domain.Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func (w *World) applyInput(ctx *state.AdvanceContext) {
	w.players.Update(ctx, func(ps []Player) []Player {
		for h := range ps {
			if !ps[h].Alive() {
				continue
			}
			in := ctx.Input(domain.Handle(h))
			base := spawn(domain.Handle(h))
			ps[h].Head = add(base, in.Head.Position)
			ps[h].Hand = add(base, in.RightHand.Position)
			ps[h].Aim = in.RightHand.Orientation
		}
		return ps
	})
}

func (w *World) castSpells(ctx *state.AdvanceContext) {
	next := w.counters.Get().NextID
	var cast []Projectile
	w.players.Update(ctx, func(ps []Player) []Player {
		for h := range ps {
			p := &ps[h]
			if p.Cooldown > 0 {
				p.Cooldown--
			}
			in := ctx.Input(domain.Handle(h))
			if !in.Casting() || !p.Alive() || p.Cooldown > 0 {
				continue
			}
			sp, ok := LookupSpell(in.Spell)
			if !ok || p.Mana < sp.Cost {
				continue
			}
			p.Mana -= sp.Cost
			p.Cooldown = CastCooldown
			cast = append(cast, Projectile{
				ID:    next,
				Owner: domain.Handle(h),
				Spell: in.Spell,
				Pos:   p.Hand,
				Vel:   velocity(p.Aim, sp.Speed),
				TTL:   sp.Lifetime,
			})
			next++
		}
		return ps
	})
	if len(cast) == 0 {
		return
	}
	w.projectiles.Update(ctx, func(pr []Projectile) []Projectile { return append(pr, cast...) })
	w.counters.Update(ctx, func(c counters) counters {
		c.NextID = next
		return c
	})
}

// velocity rotates the forward axis (0, 0, -1) by the Q14 quaternion q and
// scales it to speed millimetres per frame.
func velocity(q domain.Quat, speed int32) domain.Vec3 {
	const one = domain.OrientationScale
	x, y, z, qw := int64(q.X), int64(q.Y), int64(q.Z), int64(q.W)
	dx := -2 * (x*z + qw*y) / one
	dy := -2 * (y*z - qw*x) / one
	dz := -(one - 2*(x*x+y*y)/one)
	s := int64(speed)
	return domain.Vec3{
		X: int32(dx * s / one),
		Y: int32(dy * s / one),
		Z: int32(dz * s / one),
	}
}

func (w *World) moveProjectiles(ctx *state.AdvanceContext) {
	w.projectiles.Update(ctx, func(pr []Projectile) []Projectile {
		live := pr[:0]
		for _, p := range pr {
			p.TTL--
			if p.TTL <= 0 {
				continue
			}
			p.Pos = add(p.Pos, p.Vel)
			live = append(live, p)
		}
		return live
	})
}

func (w *World) resolveHits(ctx *state.AdvanceContext) {
	if len(w.projectiles.Get()) == 0 {
		return
	}
	var hits uint32
	w.players.Update(ctx, func(ps []Player) []Player {
		w.projectiles.Update(ctx, func(pr []Projectile) []Projectile {
			live := pr[:0]
			for _, p := range pr {
				target := -1
				for h := range ps {
					if domain.Handle(h) != p.Owner && ps[h].Alive() && near(p.Pos, ps[h].Head) {
						target = h
						break
					}
				}
				if target < 0 {
					live = append(live, p)
					continue
				}
				hits++
				sp, _ := LookupSpell(p.Spell)
				dmg := sp.Damage
				if ctx.Rand().IntN(100) < CritChance {
					dmg *= 2
					ps[p.Owner].Crits++
				}
				t := &ps[target]
				t.Health -= dmg
				if t.Health <= 0 {
					t.Health = 0
					t.Respawn = RespawnDelay
					ps[p.Owner].Score++
				}
			}
			return live
		})
		return ps
	})
	if hits > 0 {
		w.counters.Update(ctx, func(c counters) counters {
			c.Hits += hits
			return c
		})
	}
}

func near(a, b domain.Vec3) bool {
	dx, dy, dz := int64(a.X)-int64(b.X), int64(a.Y)-int64(b.Y), int64(a.Z)-int64(b.Z)
	return dx*dx+dy*dy+dz*dz <= HitRadius*HitRadius
}

func (w *World) regen(ctx *state.AdvanceContext) {
	w.players.Update(ctx, func(ps []Player) []Player {
		for h := range ps {
			p := &ps[h]
			if p.Respawn > 0 {
				p.Respawn--
				if p.Respawn == 0 {
					p.Health = MaxHealth
					p.Mana = MaxMana
				}
				continue
			}
			if p.Mana < MaxMana && ctx.Frame%2 == 0 {
				p.Mana++
			}
		}
		return ps
	})
}
