package decode

import "encoding/json"

// JSONDecoder reads the JSON export produced by the browser parser:
// {"records": [...], "laps": [...], "sessions": [...]}.
type JSONDecoder struct{}

func (JSONDecoder) Format() string { return "json" }

type jsonExport struct {
	Records  []Attributes `json:"records"`
	Laps     []Attributes `json:"laps"`
	Sessions []Attributes `json:"sessions"`
}

func (JSONDecoder) Decode(data []byte) (RawActivity, error) {
	var doc jsonExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawActivity{}, &Error{Format: "json", Err: err}
	}
	return RawActivity{
		Format:   "json",
		Records:  doc.Records,
		Laps:     doc.Laps,
		Sessions: doc.Sessions,
	}, nil
}
