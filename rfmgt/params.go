package rfmgt

// RFParams holds the RF settings shared by the transmit chain.
// Units are Hz for rates and frequencies; TxGain is in device units.
type RFParams struct {
	SampleRate float64
	CenterFreq float64
	TxGain     float64
}
