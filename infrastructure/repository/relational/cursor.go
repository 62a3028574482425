package relational

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// threadCursor is the keyset position of the last returned row. Encoded
// opaque; only this backend can decode its own cursors.
type threadCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func encodeCursor(cur threadCursor) string {
	raw, err := json.Marshal(cur)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (threadCursor, error) {
	var cur threadCursor
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cur, err
	}
	if err := json.Unmarshal(raw, &cur); err != nil {
		return cur, err
	}
	return cur, nil
}
