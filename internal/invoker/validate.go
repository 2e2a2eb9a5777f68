package invoker

import (
	"fmt"
	"strings"

	"github.com/resilient-ai-invoker/internal/jsonx"
)

// maxCommonTags bounds the synthesized commonTags list.
const maxCommonTags = 10

// ValidationResult is produced fresh per attempt and never retained across
// attempts. Data may be mutated relative to the parsed input (synthesized
// commonTags).
type ValidationResult struct {
	IsValid bool
	Data    map[string]interface{}
	Errors  []string
}

// Validate parses text as JSON and checks it against the expected field
// set. All expected fields are checked before returning; absence
// accumulates an error but does not short-circuit.
func Validate(text string, expectedFields []string) ValidationResult {
	if strings.TrimSpace(text) == "" {
		return ValidationResult{Errors: []string{"empty response"}}
	}

	var data map[string]interface{}
	if err := jsonx.UnmarshalFromString(text, &data); err != nil {
		return ValidationResult{Errors: []string{"invalid JSON: " + err.Error()}}
	}

	var errs []string
	for _, field := range expectedFields {
		value, present := data[field]
		if !present || !truthy(value) {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field))
			continue
		}

		switch field {
		case "rules":
			errs = append(errs, validateRules(value)...)
		case "titleFormulas":
			errs = append(errs, validateTitleFormulas(value)...)
		case "contentStructure":
			errs = append(errs, validateContentStructure(value)...)
		case "tagStrategy":
			errs = append(errs, validateTagStrategy(value)...)
		case "coverStyleAnalysis":
			errs = append(errs, validateCoverStyle(value)...)
		}
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Data:    data,
		Errors:  errs,
	}
}

func validateRules(value interface{}) []string {
	if arr, ok := value.([]interface{}); !ok || len(arr) == 0 {
		return []string{"rules must be a non-empty array"}
	}
	return nil
}

func validateTitleFormulas(value interface{}) []string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return []string{"titleFormulas must be an object"}
	}
	var errs []string
	if arr, ok := obj["suggestedFormulas"].([]interface{}); !ok || len(arr) == 0 {
		errs = append(errs, "titleFormulas.suggestedFormulas must be a non-empty array")
	}
	if _, ok := obj["commonKeywords"].([]interface{}); !ok {
		errs = append(errs, "titleFormulas.commonKeywords must be an array")
	}
	return errs
}

func validateContentStructure(value interface{}) []string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return []string{"contentStructure must be an object"}
	}
	var errs []string
	if arr, ok := obj["openingHooks"].([]interface{}); !ok || len(arr) == 0 {
		errs = append(errs, "contentStructure.openingHooks must be a non-empty array")
	}
	if arr, ok := obj["endingHooks"].([]interface{}); !ok || len(arr) == 0 {
		errs = append(errs, "contentStructure.endingHooks must be a non-empty array")
	}
	if _, ok := obj["bodyTemplate"].(string); !ok {
		errs = append(errs, "contentStructure.bodyTemplate must be a string")
	}
	return errs
}

// validateTagStrategy checks the tagStrategy object and, when commonTags is
// absent, synthesizes it from tagCategories.coreKeywords and
// tagCategories.longTailKeywords, truncated to maxCommonTags entries.
func validateTagStrategy(value interface{}) []string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return []string{"tagStrategy must be an object"}
	}

	common, present := obj["commonTags"]
	if !present || common == nil {
		merged := keywordList(obj, "coreKeywords")
		merged = append(merged, keywordList(obj, "longTailKeywords")...)
		if len(merged) > maxCommonTags {
			merged = merged[:maxCommonTags]
		}
		obj["commonTags"] = merged
		return nil
	}

	if _, ok := common.([]interface{}); !ok {
		return []string{"tagStrategy.commonTags must be an array"}
	}
	return nil
}

// keywordList pulls an optional keyword array out of tagStrategy's
// tagCategories sub-object, treating absence as empty.
func keywordList(tagStrategy map[string]interface{}, key string) []interface{} {
	categories, ok := tagStrategy["tagCategories"].(map[string]interface{})
	if !ok {
		return nil
	}
	arr, _ := categories[key].([]interface{})
	return arr
}

func validateCoverStyle(value interface{}) []string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return []string{"coverStyleAnalysis must be an object"}
	}
	if arr, ok := obj["commonStyles"].([]interface{}); !ok || len(arr) == 0 {
		return []string{"coverStyleAnalysis.commonStyles must be a non-empty array"}
	}
	return nil
}

// truthy mirrors loose truthiness for decoded JSON values: null, false,
// empty string, and zero are absent for the purposes of field presence.
func truthy(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case float64:
		return value != 0
	case int64:
		return value != 0
	default:
		return true
	}
}
