package kasa

import (
	"encoding/json"

	"github.com/dokzlo13/cutelights/internal/jsonutil"
)

const (
	lightingService = "smartlife.iot.smartbulb.lightingservice"
	transitionState = "transition_light_state"
)

// sysInfoRequest asks the bulb for its identity and light state
var sysInfoRequest = []byte(`{"system":{"get_sysinfo":{}}}`)

// transition is the body of a transition_light_state command
type transition struct {
	OnOff            jsonutil.IntBool `json:"on_off"`
	Hue              *int             `json:"hue,omitempty"`
	Saturation       *int             `json:"saturation,omitempty"`
	Brightness       *int             `json:"brightness,omitempty"`
	TransitionPeriod int              `json:"transition_period"`
}

func transitionMessage(t transition) []byte {
	data, _ := json.Marshal(map[string]map[string]transition{
		lightingService: {transitionState: t},
	})
	return data
}

func onOffMessage(on bool) []byte {
	return transitionMessage(transition{OnOff: jsonutil.IntBool(on)})
}

func colorMessage(h, s, b int) []byte {
	return transitionMessage(transition{OnOff: true, Hue: &h, Saturation: &s, Brightness: &b})
}

func brightnessMessage(b int) []byte {
	return transitionMessage(transition{OnOff: true, Brightness: &b})
}

// sysInfoResponse is the reply to sysInfoRequest
type sysInfoResponse struct {
	System struct {
		GetSysInfo *sysInfo `json:"get_sysinfo"`
	} `json:"system"`
}

type sysInfo struct {
	Alias      string           `json:"alias"`
	MicMAC     string           `json:"mic_mac"`
	MAC        string           `json:"mac"`
	IsColor    jsonutil.IntBool `json:"is_color"`
	LightState lightState       `json:"light_state"`
	ErrCode    int              `json:"err_code"`
}

type lightState struct {
	OnOff      jsonutil.IntBool `json:"on_off"`
	Brightness *int             `json:"brightness"`
	Hue        *int             `json:"hue"`
	Saturation *int             `json:"saturation"`
	// Bulbs that are off report their last state here instead
	DftOnState *struct {
		Brightness *int `json:"brightness"`
		Hue        *int `json:"hue"`
		Saturation *int `json:"saturation"`
	} `json:"dft_on_state"`
}

// effective returns brightness, hue and saturation, falling back to
// dft_on_state for fields missing from the top level
func (s lightState) effective() (bri, hue, sat int) {
	pick := func(top *int, dft func() *int) int {
		if top != nil {
			return *top
		}
		if s.DftOnState != nil {
			if v := dft(); v != nil {
				return *v
			}
		}
		return 0
	}
	bri = pick(s.Brightness, func() *int { return s.DftOnState.Brightness })
	hue = pick(s.Hue, func() *int { return s.DftOnState.Hue })
	sat = pick(s.Saturation, func() *int { return s.DftOnState.Saturation })
	return bri, hue, sat
}

// vendorID prefers mic_mac and falls back to mac
func (s *sysInfo) vendorID() string {
	if s.MicMAC != "" {
		return s.MicMAC
	}
	return s.MAC
}

// transitionResponse is the reply to transition_light_state
type transitionResponse map[string]map[string]struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}
