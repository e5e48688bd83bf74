// Package canonical produces comparable representations of run artifacts:
// streaming file digests, deterministic JSON serialization, and normalization
// that strips volatile fields so two logically-equivalent documents compare
// equal regardless of when or where they were produced.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// VolatileValueKeys lists every object key that carries run-local volatility
// (timestamps, durations, generated-at markers). Normalize strips these keys
// recursively. Any new timestamp- or duration-shaped field added to an
// artifact schema must be added here as well; the validation package carries
// a meta-test that enforces the lock-step.
var VolatileValueKeys = map[string]struct{}{
	"created_at":       {},
	"created_at_utc":   {},
	"ended_at":         {},
	"fetched_at":       {},
	"generated_at":     {},
	"generated_at_utc": {},
	"run_started_at":   {},
	"scored_at":        {},
	"scraped_at":       {},
	"started_at":       {},
	"timestamp":        {},
	"updated_at":       {},
	"duration_sec":     {},
}

const hashChunkSize = 1 << 20 // 1 MiB

// SHA256File returns the hex digest of a file, streamed in fixed-size chunks.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return SHA256Reader(f)
}

// SHA256Reader returns the hex digest of everything readable from r.
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Decode parses JSON preserving number literals via json.Number, so that
// canonical re-serialization reproduces the original digits.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}

// DecodeFile reads and parses a JSON document from disk.
func DecodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// JSON serializes a value with lexicographically sorted object keys, minimal
// separators, and unescaped UTF-8. This exact byte sequence is the unit that
// gets hashed or string-compared.
func JSON(v any) (string, error) {
	var b strings.Builder
	if err := encode(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Normalize returns a deep copy of v with every key in VolatileValueKeys
// removed, and optionally run_id as well. Non-container values pass through
// unchanged.
func Normalize(v any, dropRunID bool) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if _, volatile := VolatileValueKeys[k]; volatile {
				continue
			}
			if dropRunID && k == "run_id" {
				continue
			}
			out[k] = Normalize(item, dropRunID)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item, dropRunID)
		}
		return out
	default:
		return v
	}
}

// NormalizedJSON is the composition used for semantic equality checks:
// canonical serialization of the normalized value.
func NormalizedJSON(v any, dropRunID bool) (string, error) {
	return JSON(Normalize(v, dropRunID))
}

func encode(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		s, err := encodeString(val)
		if err != nil {
			return err
		}
		b.WriteString(s)
	case json.Number:
		b.WriteString(string(val))
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encode(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			s, err := encodeString(k)
			if err != nil {
				return err
			}
			b.WriteString(s)
			b.WriteByte(':')
			if err := encode(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		// Structs and other marshalable values take a round trip through
		// encoding/json so they canonicalize like decoded documents.
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("failed to marshal %T: %w", val, err)
		}
		decoded, err := Decode(data)
		if err != nil {
			return err
		}
		return encode(b, decoded)
	}
	return nil
}

// encodeString emits a JSON string without HTML escaping, keeping non-ASCII
// characters as raw UTF-8.
func encodeString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("failed to encode string: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
