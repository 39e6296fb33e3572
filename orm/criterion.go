package orm

// Criterion is one equality condition. A list of criteria is ANDed and bound
// positionally in list order.
type Criterion struct {
	Column string
	Value  any
}

// Eq returns the criterion column=value.
func Eq(column string, value any) Criterion {
	return Criterion{Column: column, Value: value}
}

func criteriaArgs(criteria []Criterion) []any {
	if len(criteria) == 0 {
		return nil
	}
	args := make([]any, len(criteria))
	for i, c := range criteria {
		args[i] = c.Value
	}
	return args
}
