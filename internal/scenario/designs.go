package scenario

// BuiltIn returns predefined study designs with arm descriptions.
func BuiltIn() map[string]Design {
	return map[string]Design{
		"coverage": {
			Name:        "coverage",
			Description: "Sweep intervention coverage to see how completeness of ring enrollment drives the detectable effect.",
			Arms: []Arm{
				{Name: "cov50", Overrides: Overrides{Coverage: fptr(0.50)}},
				{Name: "cov65", Overrides: Overrides{Coverage: fptr(0.65)}},
				{Name: "cov80", Overrides: Overrides{Coverage: fptr(0.80)}},
				{Name: "cov95", Overrides: Overrides{Coverage: fptr(0.95)}},
			},
		},
		"delay": {
			Name:        "delay",
			Description: "Vary the response delay window; slower rings give transmission more time to run before the intervention lands.",
			Arms: []Arm{
				{Name: "rapid", Overrides: Overrides{DelayMinDays: fptr(1), DelayMaxDays: fptr(3)}},
				{Name: "routine", Overrides: Overrides{DelayMinDays: fptr(1), DelayMaxDays: fptr(12)}},
				{Name: "delayed", Overrides: Overrides{DelayMinDays: fptr(7), DelayMaxDays: fptr(21)}},
			},
		},
		"null": {
			Name:        "null",
			Description: "All intervention effects switched off. Estimated power against this arm is the false-positive rate and should sit near alpha.",
			Arms: []Arm{
				{Name: "no-effect", Overrides: Overrides{
					WashEfficacy:       fptr(0),
					AntibioticEfficacy: fptr(0),
					VaccineEfficacy:    fptr(0),
				}},
			},
		},
	}
}

func fptr(v float64) *float64 { return &v }
