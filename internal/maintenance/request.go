package maintenance

import "encoding/json"

// Request is the decoded maintenance request body
type Request struct {
	Operation  string
	Authorized bool
	Token      string
}

// ParseRequest decodes body field by field. Fields with the wrong JSON type
// are treated as absent, and a body that is not a JSON object yields a
// Request with every field absent. Authorized is only set by a literal true.
func ParseRequest(body []byte) Request {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Request{}
	}

	var req Request
	decodeField(fields, "operation", &req.Operation)
	decodeField(fields, "authorized", &req.Authorized)
	decodeField(fields, "token", &req.Token)
	return req
}

func decodeField(fields map[string]json.RawMessage, name string, dst interface{}) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	// null leaves dst untouched; type mismatches fail and are ignored
	_ = json.Unmarshal(raw, dst)
}
