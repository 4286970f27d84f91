package main

import (
	"crypto/rand"
	"encoding/hex"
	"math"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeAngle wraps angle to [-PI, PI]. Constant time for any finite
// input; target angles come straight off the wire and can be arbitrarily
// large while still passing the finiteness check.
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// DegToRad converts degrees to radians
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// IsFinite reports whether f is neither NaN nor infinite
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MoveToward advances current toward target by at most maxDelta
func MoveToward(current, target, maxDelta float64) float64 {
	diff := target - current
	if diff > maxDelta {
		diff = maxDelta
	} else if diff < -maxDelta {
		diff = -maxDelta
	}
	return current + diff
}

// MoveTowardAngle advances current toward target along the shortest arc,
// by at most maxDelta radians
func MoveTowardAngle(current, target, maxDelta float64) float64 {
	diff := NormalizeAngle(target - current)
	if diff > maxDelta {
		diff = maxDelta
	} else if diff < -maxDelta {
		diff = -maxDelta
	}
	return NormalizeAngle(current + diff)
}
