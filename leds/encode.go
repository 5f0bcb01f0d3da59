package leds

// Encode spreads value over pinCount levels, least significant bit first.
// Bits above pinCount are dropped.
func Encode(value uint, pinCount int) []bool {
	if pinCount < 0 {
		pinCount = 0
	}

	levels := make([]bool, pinCount)
	for i := range levels {
		levels[i] = value&1 == 1
		value >>= 1
	}
	return levels
}
