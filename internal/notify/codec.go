// Package notify delivers committed-transition notifications to external
// consumers.
package notify

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

// encMode uses Core Deterministic Encoding so the same notification always
// produces the same bytes. Times keep nanoseconds.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("notify: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("notify: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a notification as deterministic CBOR.
func Encode(n domain.Notification) ([]byte, error) {
	b, err := encMode.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return b, nil
}

func Decode(data []byte) (domain.Notification, error) {
	var n domain.Notification
	if err := decMode.Unmarshal(data, &n); err != nil {
		return domain.Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}
