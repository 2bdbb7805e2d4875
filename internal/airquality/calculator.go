package airquality

import "math"

// IndexFromConcentrations is a stand-in index: the largest concentration,
// rounded. It is not an EPA breakpoint calculation.
func IndexFromConcentrations(cs []Concentration) AQI {
	highest := 0
	for _, c := range cs {
		v := int(math.Round(c.MicrogramsPerCubicMeter))
		if v > highest {
			highest = v
		}
	}
	return AQI(highest)
}
