package si4735

// Property identifiers used with SetProperty and GetProperty.
const (
	PropGPOIEN                   uint16 = 0x0001
	PropDigitalOutputFormat      uint16 = 0x0102
	PropDigitalOutputSampleRate  uint16 = 0x0104
	PropRefClkFreq               uint16 = 0x0201
	PropRefClkPrescale           uint16 = 0x0202
	PropRXVolume                 uint16 = 0x4000
	PropRXHardMute               uint16 = 0x4001
	PropFMDeemphasis             uint16 = 0x1100
	PropFMChannelFilter          uint16 = 0x1102
	PropFMBlendStereoThreshold   uint16 = 0x1105
	PropFMBlendMonoThreshold     uint16 = 0x1106
	PropFMMaxTuneError           uint16 = 0x1108
	PropFMRSQIntSource           uint16 = 0x1200
	PropFMSoftMuteMaxAttenuation uint16 = 0x1302
	PropFMSeekBandBottom         uint16 = 0x1400
	PropFMSeekBandTop            uint16 = 0x1401
	PropFMSeekFreqSpacing        uint16 = 0x1402
	PropFMSeekTuneSNRThreshold   uint16 = 0x1403
	PropFMSeekTuneRSSIThreshold  uint16 = 0x1404
	PropRDSIntSource             uint16 = 0x1500
	PropRDSIntFIFOCount          uint16 = 0x1501
	PropRDSConfig                uint16 = 0x1502
	PropAMDeemphasis             uint16 = 0x3100
	PropAMChannelFilter          uint16 = 0x3102
	PropAMAVCMaxGain             uint16 = 0x3103
	PropAMRSQIntSource           uint16 = 0x3200
	PropAMSeekBandBottom         uint16 = 0x3400
	PropAMSeekBandTop            uint16 = 0x3401
	PropAMSeekFreqSpacing        uint16 = 0x3402
	PropAMSeekTuneSNRThreshold   uint16 = 0x3403
	PropAMSeekTuneRSSIThreshold  uint16 = 0x3404
)

// Property values.
const (
	DeemphasisEUR50us uint16 = 0x0001
	DeemphasisUSA75us uint16 = 0x0002

	AMChannelFilter6kHz uint16 = 0x0000
	AMChannelFilter4kHz uint16 = 0x0001
	AMChannelFilter3kHz uint16 = 0x0002
	AMChannelFilter2kHz uint16 = 0x0003
	AMChannelFilter1kHz uint16 = 0x0004
	AMPowerLineFilter   uint16 = 0x0100

	RDSEnable uint16 = 0x0001
	HardMute  uint16 = 0x0003
)
