package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// HarmCategory names a category of content the service can filter.
type HarmCategory string

const (
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmCategoryCivicIntegrity   HarmCategory = "HARM_CATEGORY_CIVIC_INTEGRITY"
)

// HarmBlockThreshold controls at which probability content is blocked.
type HarmBlockThreshold string

const (
	BlockNone           HarmBlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       HarmBlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove HarmBlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    HarmBlockThreshold = "BLOCK_LOW_AND_ABOVE"
	BlockOff            HarmBlockThreshold = "OFF"
)

var harmCategories = []HarmCategory{
	HarmCategoryHarassment,
	HarmCategoryHateSpeech,
	HarmCategorySexuallyExplicit,
	HarmCategoryDangerousContent,
	HarmCategoryCivicIntegrity,
}

var harmThresholds = []HarmBlockThreshold{
	BlockNone,
	BlockOnlyHigh,
	BlockMediumAndAbove,
	BlockLowAndAbove,
	BlockOff,
}

// SafetySettings maps harm categories to block thresholds.
type SafetySettings map[HarmCategory]HarmBlockThreshold

// Merge returns a new map holding s overridden, per category, by override.
func (s SafetySettings) Merge(override SafetySettings) SafetySettings {
	if len(s) == 0 && len(override) == 0 {
		return nil
	}
	return lo.Assign(map[HarmCategory]HarmBlockThreshold(s), map[HarmCategory]HarmBlockThreshold(override))
}

// Categories returns the configured categories in a stable order.
func (s SafetySettings) Categories() []HarmCategory {
	keys := lo.Keys(map[HarmCategory]HarmBlockThreshold(s))
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ParseHarmCategory accepts the wire name (HARM_CATEGORY_DANGEROUS_CONTENT)
// or its short form (dangerous_content, dangerous-content).
func ParseHarmCategory(name string) (HarmCategory, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if !strings.HasPrefix(norm, "HARM_CATEGORY_") {
		norm = "HARM_CATEGORY_" + norm
	}
	if lo.Contains(harmCategories, HarmCategory(norm)) {
		return HarmCategory(norm), nil
	}
	return "", fmt.Errorf("unknown harm category %q", name)
}

// ParseHarmBlockThreshold accepts BLOCK_ONLY_HIGH, only_high, block-none, off.
func ParseHarmBlockThreshold(name string) (HarmBlockThreshold, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if norm != string(BlockOff) && !strings.HasPrefix(norm, "BLOCK_") {
		norm = "BLOCK_" + norm
	}
	if lo.Contains(harmThresholds, HarmBlockThreshold(norm)) {
		return HarmBlockThreshold(norm), nil
	}
	return "", fmt.Errorf("unknown harm block threshold %q", name)
}

// ParseSafetySettings converts a name-to-name mapping, as found in config
// files and CLI flags, into SafetySettings.
func ParseSafetySettings(raw map[string]string) (SafetySettings, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(SafetySettings, len(raw))
	for category, threshold := range raw {
		c, err := ParseHarmCategory(category)
		if err != nil {
			return nil, err
		}
		t, err := ParseHarmBlockThreshold(threshold)
		if err != nil {
			return nil, err
		}
		out[c] = t
	}
	return out, nil
}
