package model

// PCMFormat describes raw little-endian PCM samples produced by a capture device.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultPCMFormat is 16 kHz mono 16-bit, what speech recognizers expect.
var DefaultPCMFormat = PCMFormat{
	SampleRate:    16000,
	Channels:      1,
	BitsPerSample: 16,
}

// BlockAlign returns the size in bytes of one sample frame.
func (f PCMFormat) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of bytes per second of audio.
func (f PCMFormat) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

const (
	AudioMIMEType = "audio/wav"
	AudioFileName = "voice_note.wav"
)

// Audio is a finalized recording ready to be uploaded.
type Audio struct {
	Data     []byte
	MIMEType string
	FileName string

	// PCMBytes is the sample payload size, excluding container headers.
	PCMBytes int
}

// Empty reports whether the recording carries no audio samples.
func (a *Audio) Empty() bool {
	return a == nil || a.PCMBytes == 0
}
