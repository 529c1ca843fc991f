package ui

import "strings"

// SparklineChars are the block characters used for sparklines, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the most recent throughput samples in a ring and renders
// them as block characters scaled to the largest sample held.
type Sparkline struct {
	samples []float64
	head    int // next write position
	count   int // samples held, at most len(samples)
}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add records a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	if s.count < len(s.samples) {
		s.count++
	}
}

// Render draws every slot; unfilled slots are blank.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(len(s.samples))
}

// RenderWithWidth draws the newest width samples, left-padded with blanks
// when fewer are held. An empty sparkline renders as a flat baseline.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	recent := s.recent(min(width, s.count))
	peak := 1.0
	for _, v := range recent {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(recent)))
	top := len(SparklineChars) - 1
	for _, v := range recent {
		level := int(v / peak * float64(top))
		sb.WriteRune(SparklineChars[max(0, min(level, top))])
	}
	return sb.String()
}

// recent returns the newest n samples, oldest first.
func (s *Sparkline) recent(n int) []float64 {
	out := make([]float64, n)
	size := len(s.samples)
	for i := 0; i < n; i++ {
		out[i] = s.samples[(s.head-n+i+size)%size]
	}
	return out
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
}

// Count returns the number of samples held.
func (s *Sparkline) Count() int {
	return s.count
}
