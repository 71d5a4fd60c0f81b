package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mixelka/metaleads/pkg/models"
)

// input is what every heuristic sees
type input struct {
	text string
	msg  *Message
}

// heuristic fills fields of info that are still empty
type heuristic func(in *input, info *models.LeadInfo)

// pipeline is ordered by precedence: labelled fields, key/value lines,
// message headers, embedded JSON
var pipeline = []heuristic{
	labelledFields,
	keyValueLines,
	headerFallback,
	embeddedJSON,
}

type fieldPattern struct {
	Field string
	Regex *regexp.Regexp
}

var labelledPatterns = []fieldPattern{
	{"name", regexp.MustCompile(`(?im)^[ \t]*full[ \t]*name[ \t]*[:\-][ \t]*(.+)$`)},
	{"name", regexp.MustCompile(`(?im)^[ \t]*name[ \t]*[:\-][ \t]*(.+)$`)},
	{"name", regexp.MustCompile(`(?im)^[ \t]*first[ \t]*name[ \t]*[:\-][ \t]*(.+)$`)},
	{"name", regexp.MustCompile(`(?im)^[ \t]*last[ \t]*name[ \t]*[:\-][ \t]*(.+)$`)},
	{"email", regexp.MustCompile(`(?im)^[ \t]*e-?mail(?:[ \t]*address)?[ \t]*[:\-][ \t]*<?([^\s<>@]+@[^\s<>@]+\.[^\s<>@]+?)>?[ \t]*$`)},
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"phone", regexp.MustCompile(`(?im)^[ \t]*(?:phone(?:[ \t]*number)?|mobile(?:[ \t]*number)?|cell|telephone)[ \t]*[:\-][ \t]*(\+?[\d \-()]{7,})`)},
}

// labelledFields applies labelledPatterns; the first matching pattern wins per field
func labelledFields(in *input, info *models.LeadInfo) {
	for _, p := range labelledPatterns {
		target := fieldRef(info, p.Field)
		if *target != "" {
			continue
		}

		match := p.Regex.FindStringSubmatch(in.text)
		if match == nil {
			continue
		}
		value := match[0]
		if len(match) > 1 {
			value = match[1]
		}
		*target = strings.TrimSpace(value)
	}
}

func fieldRef(info *models.LeadInfo, field string) *string {
	switch field {
	case "name":
		return &info.Name
	case "email":
		return &info.Email
	default:
		return &info.Phone
	}
}

var messageKeys = []string{"message", "comment", "notes", "question"}

// keyValueLines scans "key: value" lines into Fields and backfills the main
// fields from keys that look like them
func keyValueLines(in *input, info *models.LeadInfo) {
	for _, line := range strings.Split(in.text, "\n") {
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}

		info.Fields.Set(key, value)

		switch {
		case strings.Contains(key, "email") || strings.Contains(key, "e-mail"):
			if info.Email == "" {
				info.Email = value
			}
		case strings.Contains(key, "phone") || strings.Contains(key, "mobile"):
			if info.Phone == "" {
				info.Phone = value
			}
		case strings.Contains(key, "name"):
			if info.Name == "" {
				info.Name = value
			}
		}

		if strings.Contains(key, "city") {
			info.Fields.SetIfAbsent("city", value)
		}
		if strings.Contains(key, "address") && !strings.Contains(key, "email") {
			info.Fields.SetIfAbsent("address", value)
		}
		for _, mk := range messageKeys {
			if strings.Contains(key, mk) && len(value) > len(info.Message) {
				info.Message = value
				break
			}
		}
	}
}

// splitKeyValue accepts lines like "Phone Number: +1 416 555 1234". Sentences,
// URLs and JSON fragments are rejected.
func splitKeyValue(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}

	key := strings.ToLower(strings.TrimSpace(line[:idx]))
	value := strings.TrimSpace(line[idx+1:])
	if key == "" || value == "" || len(key) > 40 {
		return "", "", false
	}
	if strings.HasPrefix(value, "//") || strings.ContainsAny(key, `{}[]"<>`) {
		return "", "", false
	}
	return key, value, true
}

// headerFallback uses the From header when the body did not name the sender
func headerFallback(in *input, info *models.LeadInfo) {
	if in.msg == nil {
		return
	}
	if info.Email == "" && IsValidEmail(in.msg.FromAddr) {
		info.Email = in.msg.FromAddr
	}
	if info.Name == "" && in.msg.FromName != "" {
		info.Name = in.msg.FromName
	}
}

var jsonBlockRegex = regexp.MustCompile(`\{[^{}]*\}`)

// embeddedJSON merges recognised keys from a {...} block in the text
func embeddedJSON(in *input, info *models.LeadInfo) {
	obj := findJSONObject(in.text)
	if obj == nil {
		return
	}

	values := make(map[string]string, len(obj))
	for key, raw := range obj {
		if value := jsonString(raw); value != "" {
			values[strings.ReplaceAll(strings.ToLower(key), "_", "")] = value
		}
	}

	fill := func(target *string, keys ...string) {
		for _, k := range keys {
			if *target == "" && values[k] != "" {
				*target = values[k]
			}
		}
	}
	fill(&info.Name, "name", "fullname")
	fill(&info.Email, "email")
	fill(&info.Phone, "phone", "phonenumber")
	if city := values["city"]; city != "" {
		info.Fields.SetIfAbsent("city", city)
	}
}

func findJSONObject(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
		return obj
	}

	// The outer span may cover unrelated braces; try flat blocks one by one
	for _, block := range jsonBlockRegex.FindAllString(text, -1) {
		obj = nil
		if err := json.Unmarshal([]byte(block), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t))
	default:
		return ""
	}
}
