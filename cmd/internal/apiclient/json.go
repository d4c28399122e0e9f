package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	apiv1 "glowguard/shared/contracts/api/v1"
)

// maxResponseBytes bounds how much of a response body is buffered.
// Analyze responses carry an annotated JPEG as base64, hence the headroom.
const maxResponseBytes = 32 << 20

var errResponseTooLarge = errors.New("response body too large")

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func readBody(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxResponseBytes {
		return nil, errResponseTooLarge
	}
	return b, nil
}

func decodeJSON(body []byte, dst any) error {
	if dst == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// detailOf extracts the backend's {"detail": ...} text, if any.
func detailOf(body []byte) string {
	var eb apiv1.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.DetailText()
}
