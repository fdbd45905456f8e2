package media

// AudioSampleRate48k is the fixed sample rate every audio edge in the
// graph operates at once decoded to PCM.
const AudioSampleRate48k uint16 = 48000

// AudioChannelsStereo is the fixed channel count the mixer operates at;
// audio is always treated as stereo internally.
const AudioChannelsStereo uint16 = 2

// DefaultAudioBitrate is the default target bitrate for audio encoders
// when an archive/layout does not specify one.
const DefaultAudioBitrate = 65536
