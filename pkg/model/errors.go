package model

import "github.com/m-mizutani/goerr/v2"

var (
	// Audio capture
	ErrPermissionDenied   = goerr.New("microphone permission denied")
	ErrDeviceUnavailable  = goerr.New("microphone device unavailable")
	ErrCaptureInProgress  = goerr.New("audio capture already in progress")
	ErrStorageUnavailable = goerr.New("session storage unavailable")

	// Transport
	ErrTransport = goerr.New("assistant transport failure")
	ErrSynthesis = goerr.New("speech synthesis failure")

	// Playback
	ErrPlayback = goerr.New("audio playback failure")

	// Conversation guards
	ErrBusy       = goerr.New("a reply is still pending")
	ErrEmptyInput = goerr.New("neither text nor audio given")
)
