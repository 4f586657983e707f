package govee

import (
	"encoding/json"

	"github.com/dokzlo13/cutelights/internal/jsonutil"
)

// Command names on the LAN API
const (
	cmdScan       = "scan"
	cmdDevStatus  = "devStatus"
	cmdTurn       = "turn"
	cmdBrightness = "brightness"
	cmdColor      = "colorwc"
)

// colorTemperature is sent with every color command; the devices ignore it while a color is set
const colorTemperature = 7200

type requestMessage struct {
	Msg request `json:"msg"`
}

type request struct {
	Cmd  string `json:"cmd"`
	Data any    `json:"data"`
}

type valueData struct {
	Value int `json:"value"`
}

type switchData struct {
	Value jsonutil.IntBool `json:"value"`
}

type rgb struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type colorData struct {
	Color            rgb `json:"color"`
	ColorTemInKelvin int `json:"colorTemInKelvin"`
}

func encode(cmd string, data any) []byte {
	// Only fixed shapes are encoded here
	out, _ := json.Marshal(requestMessage{Msg: request{Cmd: cmd, Data: data}})
	return out
}

var (
	scanMessage      = encode(cmdScan, map[string]string{"account_topic": "reserve"})
	devStatusMessage = encode(cmdDevStatus, struct{}{})
)

func turnMessage(on bool) []byte {
	return encode(cmdTurn, switchData{Value: jsonutil.IntBool(on)})
}

func brightnessMessage(pct uint8) []byte {
	return encode(cmdBrightness, valueData{Value: int(pct)})
}

func colorMessage(r, g, b uint8) []byte {
	return encode(cmdColor, colorData{Color: rgb{R: r, G: g, B: b}, ColorTemInKelvin: colorTemperature})
}

type responseMessage struct {
	Msg struct {
		Cmd  string          `json:"cmd"`
		Data json.RawMessage `json:"data"`
	} `json:"msg"`
}

// scanResponse is the data of a scan reply
type scanResponse struct {
	IP              string `json:"ip"`
	Device          string `json:"device"`
	SKU             string `json:"sku"`
	BleVersionHard  string `json:"bleVersionHard"`
	BleVersionSoft  string `json:"bleVersionSoft"`
	WifiVersionHard string `json:"wifiVersionHard"`
	WifiVersionSoft string `json:"wifiVersionSoft"`
}

// statusResponse is the data of a devStatus reply
type statusResponse struct {
	OnOff            jsonutil.IntBool `json:"onOff"`
	Brightness       int              `json:"brightness"`
	Color            rgb              `json:"color"`
	ColorTemInKelvin int              `json:"colorTemInKelvin"`
}

// decodeResponse returns the command tag and raw data of a datagram
func decodeResponse(payload []byte) (string, json.RawMessage, error) {
	var msg responseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", nil, err
	}
	return msg.Msg.Cmd, msg.Msg.Data, nil
}
