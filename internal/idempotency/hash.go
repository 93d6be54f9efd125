package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StableHash serializes v deterministically (object keys sorted, array
// order preserved) and returns the hex SHA-256 of the result. Operators
// use it to detect semantic drift on retried keys; it never gates
// execution.
func StableHash(v interface{}) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize request: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON round-trips v through generic JSON values so that map
// keys come out sorted regardless of the original struct field order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	// encoding/json sorts map keys on marshal.
	return json.Marshal(generic)
}
