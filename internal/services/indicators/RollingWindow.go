package indicators

// RollingWindow is a bounded FIFO of the most recent prices for one
// symbol, seeded from historical bars and extended by live ticks.
type RollingWindow struct {
	length int
	data   []float64
}

// NewRollingWindow creates a window holding at most length prices.
func NewRollingWindow(length int) *RollingWindow {
	if length <= 0 {
		length = 20
	}
	return &RollingWindow{
		length: length,
		data:   make([]float64, 0, length),
	}
}

// Preload loads initial historical values, oldest first.
func (w *RollingWindow) Preload(values []float64) {
	for _, v := range values {
		w.Append(v)
	}
}

// Append adds a new tick price, evicting the oldest once full.
func (w *RollingWindow) Append(v float64) {
	if len(w.data) == w.length {
		copy(w.data, w.data[1:])
		w.data[len(w.data)-1] = v
		return
	}
	w.data = append(w.data, v)
}

// Window returns a copy of the current window, oldest first.
func (w *RollingWindow) Window() []float64 {
	out := make([]float64, len(w.data))
	copy(out, w.data)
	return out
}

// Len returns the number of prices currently held.
func (w *RollingWindow) Len() int {
	return len(w.data)
}

// Capacity returns the configured window length.
func (w *RollingWindow) Capacity() int {
	return w.length
}
