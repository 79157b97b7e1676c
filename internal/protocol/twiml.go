package protocol

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// TwiMLConfig holds the platform rendering settings shared by all calls.
type TwiMLConfig struct {
	Language string
	Voice    string
	// InputURL receives caller input and listen timeouts.
	InputURL string
	// AudioBaseURL prefixes artifact references in Play verbs.
	AudioBaseURL string
}

type sayElement struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type playElement struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type gatherElement struct {
	XMLName       xml.Name     `xml:"Gather"`
	Input         string       `xml:"input,attr"`
	Language      string       `xml:"language,attr,omitempty"`
	Timeout       string       `xml:"timeout,attr,omitempty"`
	SpeechTimeout string       `xml:"speechTimeout,attr,omitempty"`
	Action        string       `xml:"action,attr"`
	Method        string       `xml:"method,attr"`
	Hints         string       `xml:"hints,attr,omitempty"`
	Say           *sayElement  `xml:",omitempty"`
	Play          *playElement `xml:",omitempty"`
}

type redirectElement struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type hangupElement struct {
	XMLName xml.Name `xml:"Hangup"`
}

type responseElement struct {
	XMLName  xml.Name         `xml:"Response"`
	Say      *sayElement      `xml:",omitempty"`
	Play     *playElement     `xml:",omitempty"`
	Gather   *gatherElement   `xml:",omitempty"`
	Redirect *redirectElement `xml:",omitempty"`
	Hangup   *hangupElement   `xml:",omitempty"`
}

// RenderTwiML serializes an action as a TwiML document.
func RenderTwiML(cfg TwiMLConfig, a Action) ([]byte, error) {
	resp := responseElement{}
	switch a.Kind {
	case KindSpeak:
		resp.attach(cfg, a.Listen, cfg.say(a.Text), nil)
	case KindPlayAudio:
		resp.attach(cfg, a.Listen, nil, &playElement{URL: cfg.audioURL(a.AudioRef)})
	case KindDeclineAndHangup:
		if strings.TrimSpace(a.Text) != "" {
			resp.Say = cfg.say(a.Text)
		}
		resp.Hangup = &hangupElement{}
	case KindNone:
	}

	out, err := xml.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// attach places the prompt inside a Gather when listening, followed by a
// Redirect so an expired listen window still reaches InputURL.
func (r *responseElement) attach(cfg TwiMLConfig, l Listen, say *sayElement, play *playElement) {
	if !l.Enabled {
		r.Say, r.Play = say, play
		return
	}
	g := &gatherElement{
		Input:         "speech dtmf",
		Language:      cfg.Language,
		SpeechTimeout: "auto",
		Action:        cfg.InputURL,
		Method:        "POST",
		Hints:         strings.Join(l.Hints, ", "),
		Say:           say,
		Play:          play,
	}
	if l.TimeoutSeconds > 0 {
		g.Timeout = strconv.Itoa(l.TimeoutSeconds)
	}
	r.Gather = g
	r.Redirect = &redirectElement{Method: "POST", URL: cfg.InputURL}
}

func (c TwiMLConfig) say(text string) *sayElement {
	return &sayElement{Voice: c.Voice, Language: c.Language, Text: text}
}

func (c TwiMLConfig) audioURL(ref string) string {
	if c.AudioBaseURL == "" {
		return ref
	}
	return strings.TrimRight(c.AudioBaseURL, "/") + "/" + ref
}
