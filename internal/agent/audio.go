package agent

import (
	"encoding/binary"
)

// Sample rates across the bridge: the room runs Opus at 48kHz, the model
// takes 16kHz input and produces 24kHz output.
const (
	roomSampleRate   = 48000
	inputSampleRate  = 16000
	outputSampleRate = 24000

	channels = 1

	// 20ms of audio at the room rate, the Opus frame size we publish
	frameSamples = roomSampleRate / 50
)

// pcmToBytes encodes mono PCM16 samples as little-endian bytes
func pcmToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToPCM decodes little-endian bytes into mono PCM16 samples.
// A trailing odd byte is dropped.
func bytesToPCM(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// downsample48to16 reduces 48kHz audio to 16kHz by averaging each group of
// three samples, which also gives a little low-pass filtering.
func downsample48to16(in []int16) []int16 {
	n := len(in) / 3
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		sum := int(in[i*3]) + int(in[i*3+1]) + int(in[i*3+2])
		out[i] = int16(sum / 3)
	}
	return out
}

// upsample24to48 doubles 24kHz audio to 48kHz with linear interpolation
func upsample24to48(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}

	out := make([]int16, len(in)*2)
	for i := 0; i < len(in); i++ {
		out[i*2] = in[i]
		if i+1 < len(in) {
			out[i*2+1] = int16((int(in[i]) + int(in[i+1])) / 2)
		} else {
			out[i*2+1] = in[i]
		}
	}
	return out
}
