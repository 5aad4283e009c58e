package rtltcp

import "encoding/binary"

type CommandType uint8

const (
	SetFrequency           CommandType = 0x01
	SetSampleRate          CommandType = 0x02
	SetGainMode            CommandType = 0x03
	SetGain                CommandType = 0x04
	SetFrequencyCorrection CommandType = 0x05
	SetIfStage             CommandType = 0x06
	SetTestMode            CommandType = 0x07
	SetAgcMode             CommandType = 0x08
	SetDirectSampling      CommandType = 0x09
	SetOffsetTuning        CommandType = 0x0A
	SetRtlCrystal          CommandType = 0x0B
	SetTunerCrystal        CommandType = 0x0C
	SetTunerGainByIndex    CommandType = 0x0D
	SetTunerBandwidth      CommandType = 0x0E
	SetBiasTee             CommandType = 0x0F
	Invalid                CommandType = 0xFF
)

// CommandSize is the wire size of a client command: type byte plus big endian uint32.
const CommandSize = 5

func (c CommandType) String() string {
	if name, ok := CommandTypeToName[c]; ok {
		return name
	}
	return "Invalid"
}

var CommandTypeToName = map[CommandType]string{
	SetFrequency:           "SetFrequency",
	SetSampleRate:          "SetSampleRate",
	SetGainMode:            "SetGainMode",
	SetGain:                "SetGain",
	SetFrequencyCorrection: "SetFrequencyCorrection",
	SetIfStage:             "SetIfStage",
	SetTestMode:            "SetTestMode",
	SetAgcMode:             "SetAgcMode",
	SetDirectSampling:      "SetDirectSampling",
	SetOffsetTuning:        "SetOffsetTuning",
	SetRtlCrystal:          "SetRtlCrystal",
	SetTunerCrystal:        "SetTunerCrystal",
	SetTunerGainByIndex:    "SetTunerGainByIndex",
	SetTunerBandwidth:      "SetTunerBandwidth",
	SetBiasTee:             "SetBiasTee",
}

type Command struct {
	Type  CommandType
	Param [4]byte
}

func NewCommand(t CommandType, value uint32) Command {
	cmd := Command{Type: t}
	binary.BigEndian.PutUint32(cmd.Param[:], value)
	return cmd
}

// Value decodes the big endian parameter.
func (c Command) Value() uint32 {
	return binary.BigEndian.Uint32(c.Param[:])
}

func (c Command) Bytes() []byte {
	return []byte{byte(c.Type), c.Param[0], c.Param[1], c.Param[2], c.Param[3]}
}

func parseCommand(b []byte) Command {
	cmd := Command{Type: CommandType(b[0])}
	copy(cmd.Param[:], b[1:CommandSize])
	return cmd
}
