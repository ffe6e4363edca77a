package world

// Spell describes one castable projectile.
type Spell struct {
	Name string
	// Cost in mana.
	Cost int32
	// Damage on hit; a critical hit doubles it.
	Damage int32
	// Speed in millimetres per frame.
	Speed int32
	// Lifetime in frames.
	Lifetime int32
}

// Spells indexed by PlayerInput.Spell. Index 0 is "no spell".
var Spells = [...]Spell{
	{},
	{Name: "firebolt", Cost: 20, Damage: 15, Speed: 150, Lifetime: 60},
	{Name: "frost", Cost: 15, Damage: 10, Speed: 100, Lifetime: 90},
	{Name: "arcane", Cost: 30, Damage: 25, Speed: 200, Lifetime: 45},
}

// LookupSpell returns the spell with the given id.
func LookupSpell(id uint8) (Spell, bool) {
	if id == 0 || int(id) >= len(Spells) {
		return Spell{}, false
	}
	return Spells[id], true
}
