//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

type realLine struct {
	input Input
	line  *gpiocdev.Line
}

// RealReader reads inputs from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []realLine
}

// NewRealReader requests every input line on chip.
func NewRealReader(chip string, inputs []Input) (*RealReader, error) {
	if chip == "" {
		chip = DefaultChip
	}
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: c}
	for _, in := range inputs {
		// Input with pull-down matches Pi boot defaults.
		l, err := c.RequestLine(in.Pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", in.Name, in.Pin, err)
		}
		r.lines = append(r.lines, realLine{input: in, line: l})
	}
	return r, nil
}

// Read returns the logical state of every input.
func (r *RealReader) Read() (map[string]bool, error) {
	out := make(map[string]bool, len(r.lines))
	for _, l := range r.lines {
		raw, err := l.line.Value()
		if err != nil {
			return nil, fmt.Errorf("read %s pin: %w", l.input.Name, err)
		}
		on := raw != 0
		if l.input.ActiveLow {
			on = !on
		}
		out[l.input.Name] = on
	}
	return out, nil
}

// Close releases GPIO resources.
// Lines are put back to input with pull-down before closing so the Pi boots
// cleanly with external hardware attached.
func (r *RealReader) Close() error {
	var errs []error
	for _, l := range r.lines {
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.input.Name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.input.Name, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}
