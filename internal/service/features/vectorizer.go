package features

// Vectorize orders the record's values by schema. The result has exactly
// len(schema) entries; an unknown name fails with ReasonSchemaMismatch.
func Vectorize(r Record, schema Schema) ([]float64, error) {
	if len(schema) == 0 {
		return nil, &ExtractionError{Reason: ReasonSchemaMismatch, Value: "empty schema"}
	}

	out := make([]float64, len(schema))
	for i, name := range schema {
		v, ok := r.Lookup(name)
		if !ok {
			return nil, &ExtractionError{Reason: ReasonSchemaMismatch, Feature: name}
		}
		out[i] = v
	}
	return out, nil
}
