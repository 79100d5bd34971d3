// Package gpio reads local digital inputs (e.g. pump run feedback contacts)
// with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the logical state of every configured input.
type Reader interface {
	// Read returns input name -> logical state (true = ON).
	Read() (map[string]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Input is one digital input line.
type Input struct {
	Name string
	Pin  int // BCM numbering
	// ActiveLow inverts the raw value: raw 0 = logical ON.
	// Optocoupler modules usually pull the line low when energised.
	ActiveLow bool
}

// DefaultChip is the GPIO chip on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// ToReadings converts a Read result to 1/0 values keyed by input name.
func ToReadings(states map[string]bool) map[string]float64 {
	out := make(map[string]float64, len(states))
	for name, on := range states {
		if on {
			out[name] = 1
		} else {
			out[name] = 0
		}
	}
	return out
}
