package main

// Minimum damage any hit deals, regardless of armor.
const minHitDamage = 5.0

// ComputeDamage resolves a shell hit against hull armor. Full damage when
// penetration beats the armor value, half otherwise, plus the shell's
// explosion magnitude, floored at minHitDamage. Turret armor is tracked
// on the vehicle but not consulted here.
func ComputeDamage(rawDamage, penetration, targetArmor, explosion float64) float64 {
	base := rawDamage
	if penetration <= targetArmor {
		base = rawDamage / 2
	}
	total := base + explosion
	if total < minHitDamage {
		total = minHitDamage
	}
	return total
}

// ApplyDamage reduces health, clamped at zero. Returns the new health and
// whether this hit was the killing blow.
func ApplyDamage(h *Health, damage float64) (float64, bool) {
	if h.Current <= 0 {
		return 0, false
	}
	h.Current -= damage
	if h.Current <= 0 {
		h.Current = 0
		return 0, true
	}
	return h.Current, false
}
