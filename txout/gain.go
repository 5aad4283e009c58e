package txout

// GainStages is the split of one logical TX gain over the HackRF stages.
type GainStages struct {
	RF float64
	IF float64
	BB float64
}

// DefaultHackRFGain is used for any gain that is not in the table.
var DefaultHackRFGain = GainStages{RF: 0, IF: 30, BB: 0}

// hackrfGainTable maps the logical TX gain to the HackRF stages.
// The BB stage is kept at 0 on every row. Older notes list BB values of
// 8/16/16/24/32 but those were never applied to the device.
var hackrfGainTable = map[float64]GainStages{
	0:  {RF: 0, IF: 0, BB: 0},
	20: {RF: 0, IF: 20, BB: 0},
	30: {RF: 0, IF: 30, BB: 0},
	40: {RF: 14, IF: 26, BB: 0},
	60: {RF: 14, IF: 46, BB: 0},
	80: {RF: 14, IF: 66, BB: 0},
}

// HackRFGainStages returns the stage split for gain. matched is false when
// gain is not a table entry and DefaultHackRFGain was returned instead.
func HackRFGainStages(gain float64) (stages GainStages, matched bool) {
	stages, matched = hackrfGainTable[gain]
	if !matched {
		return DefaultHackRFGain, false
	}
	return stages, true
}
