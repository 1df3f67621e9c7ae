// internal/device/cot.go
package device

import "fmt"

// COT is one cause-of-trip catalogue entry.
type COT struct {
	Code        uint16 `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// COTNormal is reported while nothing has tripped.
const COTNormal uint16 = 1

var cotCatalogue = buildCOTCatalogue()

func buildCOTCatalogue() map[uint16]COT {
	m := make(map[uint16]COT, 80)

	add := func(code uint16, name, desc string) {
		m[code] = COT{Code: code, Name: name, Description: desc}
	}
	// series adds name[1..n] starting at code first.
	series := func(first uint16, n int, name, desc string) {
		for i := 0; i < n; i++ {
			add(first+uint16(i), fmt.Sprintf("%s[%d]", name, i+1), desc)
		}
	}

	add(COTNormal, "NORM", "normal operation")

	series(1001, 4, "AnaP", "analog process value")
	series(1201, 4, "IE", "earth overcurrent")
	series(1306, 4, "ExS", "external protection")
	add(1310, "LS-Mitnahme", "breaker intertrip")

	series(1401, 3, "f", "overfrequency")
	for i := 0; i < 3; i++ {
		add(1404+uint16(i), fmt.Sprintf("f[%d]", i+4), "underfrequency")
	}
	add(1407, "df/dt", "rate of change of frequency")
	add(1408, "delta phi", "vector surge")

	series(2501, 2, "LVRT", "low voltage ride through")
	series(2901, 2, "I2>", "negative sequence overcurrent")
	series(3001, 6, "U012", "symmetrical component voltage")
	series(3201, 6, "I", "phase overcurrent")
	series(3401, 6, "PQS", "power protection")
	add(3407, "P", "active power")
	add(3408, "Q", "reactive power")
	series(3501, 2, "LF", "power factor")
	add(3601, "Q->&U<", "reactive power undervoltage")
	add(3801, "ThA", "thermal overload")
	series(4001, 2, "UE", "residual voltage")

	series(4101, 3, "U", "overvoltage")
	for i := 0; i < 3; i++ {
		add(4104+uint16(i), fmt.Sprintf("U[%d]", i+4), "undervoltage")
	}
	series(4107, 2, "HVRT", "high voltage ride through")

	return m
}

// LookupCOT returns the catalogue entry for code.
func LookupCOT(code uint16) (COT, bool) {
	c, ok := cotCatalogue[code]
	return c, ok
}

// DescribeCOT returns the short name of code, or "unknown(<code>)".
func DescribeCOT(code uint16) string {
	if c, ok := cotCatalogue[code]; ok {
		return c.Name
	}
	return fmt.Sprintf("unknown(%d)", code)
}

// IsFaultCOT reports whether code names an actual trip cause.
// 0 and COTNormal both mean no fault.
func IsFaultCOT(code uint16) bool {
	return code != 0 && code != COTNormal
}
