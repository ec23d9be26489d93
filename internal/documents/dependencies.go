package documents

// Dependency lists the document types that must (Required) or should
// (Recommended) exist in a project before a type can be generated.
type Dependency struct {
	Required    []string
	Recommended []string
}

var dependencies = map[string]Dependency{
	"stakeholder-register": {},
	"high-level-requirements": {
		Recommended: []string{"stakeholder-register"},
	},
	"requirements-management-plan": {
		Recommended: []string{"stakeholder-register", "high-level-requirements"},
	},
	"business-case": {
		Recommended: []string{"stakeholder-register", "high-level-requirements"},
	},
	"scope-statement": {
		Required:    []string{"business-case", "high-level-requirements"},
		Recommended: []string{"stakeholder-register"},
	},
	"product-roadmap": {
		Required:    []string{"scope-statement", "high-level-requirements"},
		Recommended: []string{"business-case"},
	},
	"feasibility-study": {
		Required:    []string{"business-case", "scope-statement", "high-level-requirements"},
		Recommended: []string{"product-roadmap"},
	},
	"cost-benefit-analysis": {
		Required:    []string{"business-case", "feasibility-study", "scope-statement"},
		Recommended: []string{"product-roadmap"},
	},
	"risk-register": {
		Required:    []string{"feasibility-study", "scope-statement"},
		Recommended: []string{"cost-benefit-analysis", "stakeholder-register"},
	},
	"compliance": {
		Required:    []string{"scope-statement", "high-level-requirements"},
		Recommended: []string{"risk-register"},
	},
	"srs": {
		Required:    []string{"high-level-requirements", "scope-statement", "feasibility-study"},
		Recommended: []string{"compliance", "stakeholder-register"},
	},
	"hld-arch": {
		Required: []string{"srs", "feasibility-study", "high-level-requirements"},
	},
	"hld-cloud": {
		Required:    []string{"hld-arch", "srs"},
		Recommended: []string{"cost-benefit-analysis"},
	},
	"hld-tech": {
		Required:    []string{"hld-arch", "srs"},
		Recommended: []string{"feasibility-study"},
	},
	"lld-arch": {
		Required: []string{"hld-arch", "srs", "hld-tech"},
	},
	"lld-db": {
		Required:    []string{"srs", "lld-arch"},
		Recommended: []string{"hld-tech"},
	},
	"lld-api": {
		Required:    []string{"srs", "lld-arch", "lld-db"},
		Recommended: []string{"hld-tech"},
	},
	"lld-pseudo": {
		Required:    []string{"srs"},
		Recommended: []string{"lld-api", "lld-db"},
	},
	"uiux-wireframe": {
		Required:    []string{"srs", "high-level-requirements"},
		Recommended: []string{"stakeholder-register"},
	},
	"uiux-mockup": {
		Required: []string{"uiux-wireframe", "srs"},
	},
	"uiux-prototype": {
		Required:    []string{"uiux-mockup", "uiux-wireframe"},
		Recommended: []string{"lld-api"},
	},
	"rtm": {
		Required:    []string{"srs", "high-level-requirements"},
		Recommended: []string{"lld-arch", "lld-db", "lld-api", "uiux-wireframe"},
	},
}

// DependenciesOf returns the dependency entry of docType. Types without an
// entry have no dependencies.
func DependenciesOf(docType string) Dependency {
	return dependencies[docType]
}

type CheckResult struct {
	CanProceed         bool     `json:"can_proceed"`
	MissingRequired    []string `json:"missing_required"`
	MissingRecommended []string `json:"missing_recommended"`
}

// CheckDependencies compares the dependencies of docType against the types
// already present in the project.
func CheckDependencies(docType string, existing []string) CheckResult {
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t] = struct{}{}
	}

	dep := dependencies[docType]
	res := CheckResult{
		MissingRequired:    []string{},
		MissingRecommended: []string{},
	}
	for _, t := range dep.Required {
		if _, ok := have[t]; !ok {
			res.MissingRequired = append(res.MissingRequired, t)
		}
	}
	for _, t := range dep.Recommended {
		if _, ok := have[t]; !ok {
			res.MissingRecommended = append(res.MissingRecommended, t)
		}
	}
	res.CanProceed = len(res.MissingRequired) == 0
	return res
}

// Waves orders the requested types into batches. Every type lands in a wave
// after the waves holding its required dependencies that are also requested,
// so a batch can be generated concurrently. Input order is kept inside a wave.
func Waves(docTypes []string) [][]string {
	requested := make(map[string]struct{}, len(docTypes))
	for _, t := range docTypes {
		requested[t] = struct{}{}
	}

	placed := make(map[string]struct{}, len(docTypes))
	remaining := append([]string(nil), docTypes...)
	var waves [][]string
	for len(remaining) > 0 {
		var wave, next []string
		for _, t := range remaining {
			if ready(t, requested, placed) {
				wave = append(wave, t)
			} else {
				next = append(next, t)
			}
		}
		if len(wave) == 0 {
			// cycle in the requested subset; run the rest together
			wave, next = next, nil
		}
		for _, t := range wave {
			placed[t] = struct{}{}
		}
		waves = append(waves, wave)
		remaining = next
	}
	return waves
}

func ready(docType string, requested, placed map[string]struct{}) bool {
	for _, dep := range dependencies[docType].Required {
		if _, want := requested[dep]; !want {
			continue
		}
		if _, done := placed[dep]; !done {
			return false
		}
	}
	return true
}
