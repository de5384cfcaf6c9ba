package codec

import "math"

func float32ToInt16(sample float32) int16 {
	scaled := float64(sample) * 32768.0
	if scaled > 32767.0 {
		return 32767
	}
	if scaled < -32768.0 {
		return -32768
	}
	return int16(math.RoundToEven(scaled))
}

// appendS16 appends float samples to dst as signed 16-bit little-endian.
func appendS16(dst []byte, src []float32) []byte {
	for _, s := range src {
		v := uint16(float32ToInt16(s))
		dst = append(dst, byte(v), byte(v>>8))
	}
	return dst
}
