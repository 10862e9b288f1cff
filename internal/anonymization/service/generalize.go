package service

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

var ageBands = []struct {
	min, max int
}{
	{3, 5}, {6, 8}, {9, 11}, {12, 14}, {15, 17},
}

var cycleByGrade = map[string]string{
	"PS": "cycle_1", "MS": "cycle_1", "GS": "cycle_1",
	"CP": "cycle_2", "CE1": "cycle_2", "CE2": "cycle_2",
	"CM1": "cycle_3", "CM2": "cycle_3", "6EME": "cycle_3",
	"5EME": "cycle_4", "4EME": "cycle_4", "3EME": "cycle_4",
	"2NDE": "lycee", "1ERE": "lycee", "TERMINALE": "lycee",
}

// Generalize replaces a precise value with a coarser bucket chosen by field:
//
//	birth_date      -> year ("2016")
//	age             -> band ("6-8")
//	grade_level     -> school cycle ("cycle_2")
//	completion_rate -> lower bound of its quartile (0.5)
//	ip_address      -> network ("203.0.113.0/24", "/48" for IPv6)
//	postal_code     -> department ("75000")
//	user_agent      -> browser family ("Firefox")
//
// Anything else becomes "[GENERALIZED]".
func Generalize(field string, value any) any {
	switch field {
	case "birth_date":
		return generalizeDate(value)
	case "age":
		return generalizeAge(value)
	case "grade_level":
		if cycle, ok := cycleByGrade[strings.ToUpper(stringify(value))]; ok {
			return cycle
		}
	case "completion_rate":
		return generalizeRate(value)
	case "ip_address":
		return generalizeIP(stringify(value))
	case "postal_code":
		return generalizePostalCode(stringify(value))
	case "user_agent":
		return BrowserFamily(stringify(value))
	}
	return generalizedValue
}

func generalizeDate(value any) any {
	switch v := value.(type) {
	case time.Time:
		return strconv.Itoa(v.Year())
	case *time.Time:
		if v != nil {
			return strconv.Itoa(v.Year())
		}
	case string:
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			return strconv.Itoa(t.Year())
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return strconv.Itoa(t.Year())
		}
	}
	return generalizedValue
}

func generalizeAge(value any) any {
	age, ok := toInt(value)
	if !ok {
		return generalizedValue
	}
	for _, band := range ageBands {
		if age >= band.min && age <= band.max {
			return fmt.Sprintf("%d-%d", band.min, band.max)
		}
	}
	return generalizedValue
}

func generalizeRate(value any) any {
	var rate float64
	switch v := value.(type) {
	case float64:
		rate = v
	case *float64:
		if v == nil {
			return nil
		}
		rate = *v
	default:
		return generalizedValue
	}
	rate = math.Max(0, math.Min(1, rate))
	return math.Floor(rate*4) / 4
}

func generalizeIP(value string) any {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return generalizedValue
	}
	bits := 24
	if !addr.Unmap().Is4() {
		bits = 48
	}
	prefix, err := addr.Unmap().Prefix(bits)
	if err != nil {
		return generalizedValue
	}
	return prefix.String()
}

func generalizePostalCode(value string) any {
	value = strings.TrimSpace(value)
	if len(value) < 2 {
		return generalizedValue
	}
	return value[:2] + "000"
}

// BrowserFamily reduces a user agent string to its browser family.
func BrowserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "edg/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Other"
	}
}

// AgeBandLowerBound returns the first age of a band produced by Generalize.
func AgeBandLowerBound(band string) (int, bool) {
	lower, _, found := strings.Cut(band, "-")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(lower)
	return n, err == nil
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
