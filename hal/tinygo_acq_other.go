//go:build tinygo && baremetal && !rp2040

package hal

import "machine"

// Only the RP2040 front end is wired; other boards run the analyzer
// without acquisition hardware.
func newBoardAcquisition(machine.Pin) Acquisition { return nil }
