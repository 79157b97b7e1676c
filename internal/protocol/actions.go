// Package protocol defines the actions returned to the telephony platform
// and the callback events it sends.
package protocol

// ActionKind identifies an action variant.
type ActionKind string

const (
	KindSpeak            ActionKind = "speak"
	KindPlayAudio        ActionKind = "play_audio"
	KindDeclineAndHangup ActionKind = "decline_and_hangup"
	KindNone             ActionKind = "none"
)

// Listen asks the platform to capture caller input after the prompt.
type Listen struct {
	Enabled        bool
	Hints          []string
	TimeoutSeconds int
}

// Action is the next thing the platform should do on the call.
type Action struct {
	Kind ActionKind
	// Text is spoken for Speak and DeclineAndHangup.
	Text string
	// AudioRef names the artifact played for PlayAudio.
	AudioRef string
	Listen   Listen
}

func Speak(text string, listen Listen) Action {
	return Action{Kind: KindSpeak, Text: text, Listen: listen}
}

func PlayAudio(ref string, listen Listen) Action {
	return Action{Kind: KindPlayAudio, AudioRef: ref, Listen: listen}
}

func DeclineAndHangup(text string) Action {
	return Action{Kind: KindDeclineAndHangup, Text: text}
}

func NoAction() Action {
	return Action{Kind: KindNone}
}
