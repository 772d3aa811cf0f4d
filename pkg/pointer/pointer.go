package pointer

import "time"

// String returns a pointer to the provided string value
func String(value string) *string {
	return &value
}

// StringOrDefault returns the pointer if not nil, otherwise the default value
func StringOrDefault(value *string, defaultValue string) *string {
	if value != nil {
		return value
	}
	return &defaultValue
}

// StringIfValid returns a pointer to the value if it's valid, otherwise nil
func StringIfValid(valid bool, value string) *string {
	if valid {
		return &value
	}
	return nil
}

// StringCopy returns a pointer that's a copy of the provided value
func StringCopy(value *string) *string {
	if value == nil {
		return nil
	}

	copied := *value
	return &copied
}

// Bool returns a pointer to the provided bool value
func Bool(value bool) *bool {
	return &value
}

// BoolOrDefault returns the pointer if not nil, otherwise the default value
func BoolOrDefault(value *bool, defaultValue bool) *bool {
	if value != nil {
		return value
	}
	return &defaultValue
}

// BoolCopy returns a pointer that's a copy of the provided value
func BoolCopy(value *bool) *bool {
	if value == nil {
		return nil
	}

	copied := *value
	return &copied
}

// Uint64 returns a pointer to the provided uint64 value
func Uint64(value uint64) *uint64 {
	return &value
}

// Uint64OrDefault returns the pointer if not nil, otherwise the default value
func Uint64OrDefault(value *uint64, defaultValue uint64) *uint64 {
	if value != nil {
		return value
	}
	return &defaultValue
}

// Float64 returns a pointer to the provided float64 value
func Float64(value float64) *float64 {
	return &value
}

// Float64OrDefault returns the pointer if not nil, otherwise the default value
func Float64OrDefault(value *float64, defaultValue float64) *float64 {
	if value != nil {
		return value
	}
	return &defaultValue
}

// Float64Copy returns a pointer that's a copy of the provided value
func Float64Copy(value *float64) *float64 {
	if value == nil {
		return nil
	}

	copied := *value
	return &copied
}

// Time returns a pointer to the provided time value
func Time(value time.Time) *time.Time {
	return &value
}

// TimeOrDefault returns the pointer if not nil, otherwise the default value
func TimeOrDefault(value *time.Time, defaultValue time.Time) *time.Time {
	if value != nil {
		return value
	}
	return &defaultValue
}

// TimeCopy returns a pointer that's a copy of the provided value
func TimeCopy(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}

	copied := *value
	return &copied
}
