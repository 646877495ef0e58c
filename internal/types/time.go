package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a millisecond-precision instant that decodes from either
// an epoch-millis number or an ISO-8601 string, the two encodings the
// fetch gateway is allowed to use.
type Timestamp struct {
	time.Time
}

// TimestampFromMillis creates a Timestamp from epoch milliseconds
func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp{time.UnixMilli(ms).UTC()}
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be epoch millis or ISO-8601 string: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UnixMilli())
}

// Bucket truncates the timestamp to its whole second
func (t Timestamp) Bucket() time.Time {
	return time.UnixMilli(t.UnixMilli() / 1000 * 1000).UTC()
}
