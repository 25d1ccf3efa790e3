package documents

import (
	"maps"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// prepareFields merges incoming into existing, keeping only the fields the
// type defines under their defined names, and checks required fields.
// Non-coupled types carry no field values.
func prepareFields(docType *DocumentType, existing, incoming map[string]any) (map[string]any, error) {
	if docType == nil || !docType.IsCoupled {
		return nil, nil
	}
	out := make(map[string]any, len(docType.Fields))
	for key, value := range existing {
		if def, ok := docType.Field(key); ok {
			out[def.Name] = value
		}
	}
	for key, value := range incoming {
		if def, ok := docType.Field(key); ok {
			out[def.Name] = value
		}
	}

	errs := validation.Errors{}
	for _, def := range docType.Fields {
		if !def.Required {
			continue
		}
		if isBlank(out[def.Name]) {
			errs[def.Name] = validation.NewError("documents.fields.required", def.Name+" is required")
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// retainFields keeps the values whose names docType defines.
func retainFields(docType *DocumentType, values map[string]any) map[string]any {
	out := map[string]any{}
	if docType == nil {
		return out
	}
	for key, value := range values {
		if def, ok := docType.Field(key); ok {
			out[def.Name] = value
		}
	}
	return out
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return maps.Clone(values)
}
