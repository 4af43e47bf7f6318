package store

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

// NormalizePhone strips spaces and checks the phone format.
func NormalizePhone(raw string) (string, error) {
	phone := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if phone == "" {
		return "", invalid("phone", "required")
	}
	if !phonePattern.MatchString(phone) {
		return "", invalid("phone", "expected an optional + followed by 6 to 15 digits")
	}
	return phone, nil
}

func requireName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "required")
	}
	return value, nil
}
