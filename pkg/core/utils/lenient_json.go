// Package utils holds small shared helpers: lenient parsing for
// human-written scenario and override files, and markdown hygiene for the
// report renderer.
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors in hand-edited files:
// missing quotes around keys, single quotes, unclosed brackets, trailing
// commas, comments.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSONToStruct parses Hjson (comments, unquoted keys, optional commas)
// directly into a Go struct.
func ParseHJSONToStruct(data string, schema interface{}) error {
	if err := hjson.Unmarshal([]byte(data), schema); err != nil {
		return fmt.Errorf("hjson unmarshal: %w", err)
	}
	return nil
}

// SmartParse tries multiple strategies to load a scenario file: strict JSON,
// Hjson, then repaired JSON. Hjson goes before the repair step because the
// repairer can turn Hjson text into valid but wrong JSON. The scenario files
// this tool consumes are written and re-edited by analysts, so strictness is
// a poor default.
func SmartParse(input string, schema interface{}) error {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	if err := ParseHJSONToStruct(input, schema); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	return fmt.Errorf("all parsing strategies failed for input")
}
