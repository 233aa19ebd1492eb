package config

import (
	"fmt"
	"strings"

	"github.com/framekit/framekit/pkg/types"
)

// ParseQualityLevel maps a configured level name to its QualityLevel.
func ParseQualityLevel(name string) (types.QualityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return types.QualityLow, nil
	case "medium":
		return types.QualityMedium, nil
	case "high":
		return types.QualityHigh, nil
	case "ultra":
		return types.QualityUltra, nil
	default:
		return 0, fmt.Errorf("invalid quality level: %s (must be one of: low, medium, high, ultra)", name)
	}
}
