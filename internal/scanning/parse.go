package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// meterScanPrompt is the shared prompt used by all vision model providers
const meterScanPrompt = `You are looking at a photo of an electricity meter. Carefully read the meter and extract the following information:

1. **Meter number**: the serial number printed on the meter faceplate, usually letters followed by digits and sometimes a trailing letter. Examples: "AM051V", "BK12345", "CM0042V". It is often labelled "No", "№" or "S/N".

2. **Reading**: the current value shown on the counter drum or display, in kWh. Read only the whole-number part; ignore digits after a decimal separator or in a red window.

Return ONLY valid JSON in this exact format:
{
  "meterNumber": "AM051V",
  "reading": 4451
}

Important:
- The reading must be a number (not a string) without leading zeros
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

type meterResponse struct {
	MeterNumber *string         `json:"meterNumber"`
	Reading     json.RawMessage `json:"reading"`
}

var digitRun = regexp.MustCompile(`\d+`)

// parseMeterJSON parses the JSON answer of a vision model
func parseMeterJSON(text string) (*MeterData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var resp meterResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if resp.MeterNumber == nil || normalizeMeterNumber(*resp.MeterNumber) == "" {
		return nil, errors.New("meter number not found in response")
	}
	reading, err := parseReadingValue(resp.Reading)
	if err != nil {
		return nil, err
	}

	return &MeterData{
		MeterNumber: normalizeMeterNumber(*resp.MeterNumber),
		Reading:     reading,
	}, nil
}

// parseReadingValue accepts a JSON number or a string of digits. Fractional parts are dropped.
func parseReadingValue(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("reading not found in response")
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("parsing reading: %w", err)
		}
	} else {
		s = string(raw)
	}

	whole, _, _ := strings.Cut(strings.ReplaceAll(s, ",", "."), ".")
	digits := strings.Join(digitRun.FindAllString(whole, -1), "")
	if digits == "" {
		return 0, fmt.Errorf("reading %q is not a number", s)
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing reading %q: %w", s, err)
	}
	return v, nil
}

func normalizeMeterNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

var meterNumberPattern = regexp.MustCompile(`\b[A-Z]{1,4}\d{2,8}[A-Z]?\b`)

// ExtractMeterData finds a meter number and a reading in free OCR text. The meter
// number is the first letters-then-digits token; the reading is the longest run
// of 3 to 7 digits outside it, the earliest winning ties.
func ExtractMeterData(text string) (*MeterData, error) {
	upper := strings.ToUpper(text)

	loc := meterNumberPattern.FindStringIndex(upper)
	if loc == nil {
		return nil, errors.New("no meter number found in recognised text")
	}

	var reading string
	for _, run := range digitRun.FindAllStringIndex(upper, -1) {
		if run[0] < loc[1] && run[1] > loc[0] {
			continue
		}
		n := run[1] - run[0]
		if n < 3 || n > 7 || n <= len(reading) {
			continue
		}
		reading = upper[run[0]:run[1]]
	}
	if reading == "" {
		return nil, errors.New("no reading found in recognised text")
	}

	v, err := strconv.ParseInt(reading, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing reading %q: %w", reading, err)
	}
	return &MeterData{
		MeterNumber: upper[loc[0]:loc[1]],
		Reading:     v,
	}, nil
}
