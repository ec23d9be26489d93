package documents

import (
	"sort"
	"strings"
)

// AllTypes is every document type tag, in the order metadata lists them.
var AllTypes = []string{
	"stakeholder-register",
	"high-level-requirements",
	"requirements-management-plan",
	"business-case",
	"scope-statement",
	"product-roadmap",
	"feasibility-study",
	"cost-benefit-analysis",
	"risk-register",
	"compliance",
	"hld-arch",
	"hld-cloud",
	"hld-tech",
	"lld-arch",
	"lld-db",
	"lld-api",
	"lld-pseudo",
	"uiux-wireframe",
	"uiux-mockup",
	"uiux-prototype",
	"rtm",
	"srs",
	"class-diagram",
	"usecase-diagram",
	"activity-diagram",
	"wireframe",
}

const (
	ExtractionAutoAssigned = "auto_assigned"
	ExtractionPending      = "pending"
	ExtractionSuccess      = "success"
	ExtractionFailed       = "failed"
	ExtractionSkipped      = "skipped"
)

// CountLines counts newline separated lines, at least one.
func CountLines(content string) int {
	if content == "" {
		return 1
	}
	return strings.Count(content, "\n") + 1
}

func lineRange(start, end int) map[string]any {
	return map[string]any{"line_start": start, "line_end": end}
}

// GeneratedMetadata describes an AI generated file: the whole content belongs
// to docType and every other type is marked absent with -1.
func GeneratedMetadata(docType, content, message string, aiResponse map[string]any, step Step) map[string]any {
	total := CountLines(content)
	types := make(map[string]any, len(AllTypes))
	for _, t := range AllTypes {
		if t == docType {
			types[t] = lineRange(1, total)
		} else {
			types[t] = lineRange(-1, -1)
		}
	}

	meta := map[string]any{
		"extraction_status": ExtractionAutoAssigned,
		"document_types":    types,
		"primary_type":      docType,
		"total_lines":       total,
	}
	if message != "" {
		meta["message"] = message
	}
	if len(aiResponse) > 0 {
		meta["ai_response"] = aiResponse
	}
	if step != "" {
		meta["step"] = string(step)
	}
	return meta
}

// ParseExtraction reads the metadata service answer
// {"response": [{"type", "line_start", "line_end"}]}.
func ParseExtraction(raw map[string]any) map[string]any {
	types := map[string]any{}
	items, ok := raw["response"].([]any)
	if !ok {
		return types
	}
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		docType, _ := item["type"].(string)
		if docType == "" {
			continue
		}
		types[docType] = lineRange(intField(item, "line_start"), intField(item, "line_end"))
	}
	return types
}

// UploadMetadata is the metadata stored after a successful extraction.
func UploadMetadata(raw map[string]any, content, filename string) map[string]any {
	return map[string]any{
		"extraction_status": ExtractionSuccess,
		"document_types":    ParseExtraction(raw),
		"total_lines":       CountLines(content),
		"source_file":       filename,
	}
}

func FailedMetadata(err error) map[string]any {
	return map[string]any{
		"extraction_status": ExtractionFailed,
		"error":             err.Error(),
	}
}

// MergeMetadata keeps the existing keys and takes document_types and the
// extraction status from update. Other keys of update overwrite existing ones.
func MergeMetadata(existing, update map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(update))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	if _, ok := update["document_types"]; ok {
		if _, hasStatus := update["extraction_status"]; !hasStatus {
			merged["extraction_status"] = "updated"
		}
	}
	return merged
}

// DetectedTypes lists the types whose line_start is not -1.
func DetectedTypes(meta map[string]any) []string {
	types, ok := meta["document_types"].(map[string]any)
	if !ok {
		return nil
	}
	var detected []string
	for _, t := range AllTypes {
		if r, ok := types[t].(map[string]any); ok && intField(r, "line_start") != -1 {
			detected = append(detected, t)
		}
	}
	var extra []string
	for t, v := range types {
		if _, known := catalog[t]; known {
			continue
		}
		if r, ok := v.(map[string]any); ok && intField(r, "line_start") != -1 {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	detected = append(detected, extra...)
	return detected
}

// intField reads a number that may have been decoded from JSON as float64.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return -1
	}
}
