package stats

type ListFilter struct {
	ModelType *string
	Limit     int
}

func (filter ListFilter) SetModelType(v string) ListFilter {
	filter.ModelType = &v
	return filter
}

func (filter ListFilter) SetLimit(v int) ListFilter {
	filter.Limit = v
	return filter
}
