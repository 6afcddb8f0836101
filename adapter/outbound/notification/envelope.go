package notification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ajkula/notifytrigger/domain/model"
)

// envelope is the wire shape of one notification: {"type": "...", "body": ...}.
// body is either a JSON string holding the payload or the payload object itself.
type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

func decodeEnvelope(data []byte) (*model.Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: invalid notification envelope: %v", model.ErrDecode, err)
	}

	body := bytes.TrimSpace(env.Body)
	switch {
	case len(body) == 0 || bytes.Equal(body, []byte("null")):
		body = nil
	case body[0] == '"':
		var payload string
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: invalid notification body: %v", model.ErrDecode, err)
		}
		body = []byte(payload)
	}

	return &model.Notification{Type: env.Type, Body: body}, nil
}
