package synth

import (
	"fmt"

	"github.com/roach88/apfuzz/internal/placeholder"
)

// NullNote is how a missing corpus note arrives after URI decoding.
const NullNote = "null"

// Label returns the text used for <string> replacements. An empty note or
// the literal "null" yields "<Type>(<ObjectType>) from <software>", where
// absent types render as "undefined" and an empty software label as
// "unknown software".
func Label(note string, doc map[string]any, software string) string {
	if note != "" && note != NullNote {
		return note
	}
	if software == "" {
		software = "unknown software"
	}
	var objectType any
	if obj, ok := doc["object"].(map[string]any); ok {
		objectType = obj["type"]
	}
	return fmt.Sprintf("%s(%s) from %s", display(doc["type"]), display(objectType), software)
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	default:
		data, err := placeholder.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
