package stats

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// RunFingerprint creates a stable identifier of a training run
// based on its start time and training configuration.
func RunFingerprint(created time.Time, conf string) string {
	sum := sha1.New()
	_, err := sum.Write([]byte(created.UTC().Format(time.RFC3339Nano) + "#"))
	if err != nil {
		panic("problem generating hash")
	}
	_, err = sum.Write([]byte(conf))
	if err != nil {
		panic("problem generating hash")
	}

	return hex.EncodeToString(sum.Sum(nil))
}
