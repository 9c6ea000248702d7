package plugins

func builtinCalculations() []CalculationPlugin {
	return []CalculationPlugin{
		&sumCalculation{},
		&averageCalculation{},
		&minCalculation{},
		&maxCalculation{},
		&countDistinctCalculation{},
	}
}

type sumCalculation struct{}

func (p *sumCalculation) Spec() Spec {
	return Spec{Name: "sum", Kind: KindCalculation, FullName: "Sum"}
}

func (p *sumCalculation) Execute(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

type averageCalculation struct{}

func (p *averageCalculation) Spec() Spec {
	return Spec{Name: "average", Kind: KindCalculation, FullName: "Average"}
}

func (p *averageCalculation) Execute(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

type minCalculation struct{}

func (p *minCalculation) Spec() Spec {
	return Spec{Name: "min", Kind: KindCalculation, FullName: "Minimum"}
}

func (p *minCalculation) Execute(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

type maxCalculation struct{}

func (p *maxCalculation) Spec() Spec {
	return Spec{Name: "max", Kind: KindCalculation, FullName: "Maximum"}
}

func (p *maxCalculation) Execute(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	highest := values[0]
	for _, v := range values[1:] {
		if v > highest {
			highest = v
		}
	}
	return highest
}

type countDistinctCalculation struct{}

func (p *countDistinctCalculation) Spec() Spec {
	return Spec{Name: "countdistinct", Kind: KindCalculation, FullName: "Count distinct"}
}

func (p *countDistinctCalculation) Execute(values []float64) float64 {
	seen := map[float64]struct{}{}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return float64(len(seen))
}
