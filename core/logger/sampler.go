package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets through num out of every den calls. A zero ratio
// disables sampling and lets everything through.
type ratioSampler struct {
	// ratio packs num in the high 32 bits and den in the low 32 bits so
	// Set and Allow never observe a torn pair.
	ratio atomic.Uint64
	calls atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	num = min(num, den)
	s.ratio.Store(uint64(uint32(num))<<32 | uint64(uint32(den)))
	s.calls.Store(0)
}

func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if num == 0 || den == 0 {
		return true
	}
	return (s.calls.Add(1)-1)%den < num
}

// parseRatioSpec accepts "n/d" or a bare "d" meaning 1/d. Anything else,
// including "off", yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if d, err := strconv.Atoi(spec); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
