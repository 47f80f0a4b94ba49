package sync

import (
	"encoding/json"
	"slices"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

// mergeFields copies the named top-level fields of patch onto base. A field
// patch leaves out, such as an emptied omitempty field, is written as null so
// the target column is cleared.
func mergeFields(base, patch []byte, fields []string) ([]byte, error) {
	var dst, src map[string]json.RawMessage
	if err := json.Unmarshal(base, &dst); err != nil {
		return nil, domainerrors.Deserialization("document is not a JSON object").WithCause(err)
	}
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, domainerrors.Deserialization("patch is not a JSON object").WithCause(err)
	}
	if dst == nil {
		dst = make(map[string]json.RawMessage, len(src))
	}

	for _, f := range fields {
		if v, ok := src[f]; ok {
			dst[f] = v
		} else {
			dst[f] = json.RawMessage("null")
		}
	}
	return json.Marshal(dst)
}

func unionFields(a, b []string) []string {
	out := slices.Clone(a)
	for _, f := range b {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
