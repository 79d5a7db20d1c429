// Package local runs a session on the machine's default microphone and
// speakers, with typed prompts as an alternative to speech.
package local

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-chef/core/audio"
)

const (
	captureFramesPerPeriod = 480
	captureBufferPeriods   = 3
	playbackBufferPeriods  = 4
)

// Device records from the default capture device and plays on the default
// playback device, both as mono linear16 at one sample rate.
type Device struct {
	// audioContext is kept to be uninitialized on Close.
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	capture  *malgo.Device
	playback *malgo.Device

	captureMu sync.Mutex
	onAudio   func(audio []byte)

	playbackMu sync.Mutex
	pending    []byte
}

func NewDevice(encodingInfo audio.EncodingInfo) (*Device, error) {
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("local audio needs %s, got %s", audio.EncodingLinear16, encodingInfo.Format.Name())
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	d := &Device{audioContext: audioContext, encodingInfo: encodingInfo}

	if d.playback, err = d.initPlayback(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.playback.Start(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	if d.capture, err = d.initCapture(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) EncodingInfo() audio.EncodingInfo {
	return d.encodingInfo
}

func (d *Device) deviceConfig(deviceType malgo.DeviceType) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(deviceType)
	config.SampleRate = uint32(d.encodingInfo.SampleRate)
	config.Alsa.NoMMap = 1
	return config
}

func (d *Device) initCapture() (*malgo.Device, error) {
	config := d.deviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = captureFramesPerPeriod
	config.Periods = captureBufferPeriods
	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16)

	device, err := malgo.InitDevice(d.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(input) < n {
				return
			}

			d.captureMu.Lock()
			onAudio := d.onAudio
			d.captureMu.Unlock()
			if onAudio != nil {
				onAudio(append([]byte(nil), input[:n]...))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	return device, nil
}

func (d *Device) initPlayback() (*malgo.Device, error) {
	config := d.deviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	// ~100ms per period
	config.PeriodSizeInFrames = uint32(d.encodingInfo.SampleRate / 10)
	config.Periods = playbackBufferPeriods
	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16)

	device, err := malgo.InitDevice(d.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			d.fill(output[:min(len(output), int(frameCount)*bytesPerFrame)])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return device, nil
}

// StartCapture streams microphone audio to onAudio until StopCapture.
func (d *Device) StartCapture(onAudio func(audio []byte)) error {
	d.captureMu.Lock()
	d.onAudio = onAudio
	d.captureMu.Unlock()

	if d.capture.IsStarted() {
		return nil
	}
	if err := d.capture.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *Device) StopCapture() error {
	d.captureMu.Lock()
	d.onAudio = nil
	d.captureMu.Unlock()

	if !d.capture.IsStarted() {
		return nil
	}
	if err := d.capture.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

// Play queues audio behind what is still playing.
func (d *Device) Play(audio []byte) error {
	d.playbackMu.Lock()
	defer d.playbackMu.Unlock()
	d.pending = append(d.pending, audio...)
	return nil
}

// ClearPlayback drops queued audio, e.g. when the user starts talking.
func (d *Device) ClearPlayback() {
	d.playbackMu.Lock()
	defer d.playbackMu.Unlock()
	d.pending = nil
}

func (d *Device) fill(output []byte) {
	d.playbackMu.Lock()
	defer d.playbackMu.Unlock()

	n := copy(output, d.pending)
	d.pending = d.pending[n:]
	clear(output[n:])
}

func (d *Device) Close() {
	if d.capture != nil {
		d.capture.Uninit()
	}
	if d.playback != nil {
		d.playback.Uninit()
	}
	_ = d.audioContext.Uninit()
	d.audioContext.Free()
}
