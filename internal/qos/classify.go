package qos

import "strings"

// Tags describes the classification inputs a packet carries, independent
// of its wire encoding (APRS bulletin tags, priority hints, category).
type Tags struct {
	Category     string   // e.g. "bulletin", "weather", "status", "B"
	PriorityHint string   // "H", "M", "L" if explicitly tagged
	Keywords     []string // e.g. SAME/NWS product codes: TOR, SVR, FFW...
}

var emergencyKeywords = map[string]struct{}{
	"TOR": {}, "SVR": {}, "FFW": {}, "EMERGENCY": {}, "MAYDAY": {},
}

// Classify assigns a Priority per spec.md section 4.5: Emergency if
// tagged with a severe-weather/emergency keyword or priority "H"; High if
// bulletin/weather or priority "M"; Low if category "B"/priority "L"/
// status; otherwise Normal.
func Classify(t Tags) Priority {
	for _, kw := range t.Keywords {
		if _, ok := emergencyKeywords[strings.ToUpper(kw)]; ok {
			return Emergency
		}
	}
	if strings.EqualFold(t.PriorityHint, "H") {
		return Emergency
	}

	cat := strings.ToLower(t.Category)
	if cat == "bulletin" || cat == "weather" || strings.EqualFold(t.PriorityHint, "M") {
		return High
	}

	if cat == "b" || cat == "status" || strings.EqualFold(t.PriorityHint, "L") {
		return Low
	}

	return Normal
}
