package rtltcp

import "unsafe"

const DongleInfoSize = unsafe.Sizeof(DongleInfo{})

var dongleMagic = [4]uint8{'R', 'T', 'L', '0'}

// DongleInfo is the greeting an rtl_tcp server sends on connect.
type DongleInfo struct {
	Magic          [4]uint8
	TunerType      TunerType
	TunerGainCount uint32
}

func (d DongleInfo) Valid() bool {
	return d.Magic == dongleMagic
}
