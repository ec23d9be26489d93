package documents

import (
	"reflect"
	"testing"
)

func TestCheckDependencies(t *testing.T) {
	tests := []struct {
		name        string
		docType     string
		existing    []string
		canProceed  bool
		missingReq  []string
		missingRecc []string
	}{
		{
			name:        "no dependencies",
			docType:     "stakeholder-register",
			canProceed:  true,
			missingReq:  []string{},
			missingRecc: []string{},
		},
		{
			name:        "recommended only",
			docType:     "business-case",
			canProceed:  true,
			missingReq:  []string{},
			missingRecc: []string{"stakeholder-register", "high-level-requirements"},
		},
		{
			name:        "missing required",
			docType:     "scope-statement",
			existing:    []string{"business-case"},
			canProceed:  false,
			missingReq:  []string{"high-level-requirements"},
			missingRecc: []string{"stakeholder-register"},
		},
		{
			name:        "all present",
			docType:     "srs",
			existing:    []string{"high-level-requirements", "scope-statement", "feasibility-study", "compliance", "stakeholder-register", ".pdf"},
			canProceed:  true,
			missingReq:  []string{},
			missingRecc: []string{},
		},
		{
			name:        "unknown type has no dependencies",
			docType:     "wireframe",
			canProceed:  true,
			missingReq:  []string{},
			missingRecc: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckDependencies(tt.docType, tt.existing)
			if got.CanProceed != tt.canProceed {
				t.Errorf("CanProceed = %v, want %v", got.CanProceed, tt.canProceed)
			}
			if !reflect.DeepEqual(got.MissingRequired, tt.missingReq) {
				t.Errorf("MissingRequired = %v, want %v", got.MissingRequired, tt.missingReq)
			}
			if !reflect.DeepEqual(got.MissingRecommended, tt.missingRecc) {
				t.Errorf("MissingRecommended = %v, want %v", got.MissingRecommended, tt.missingRecc)
			}
		})
	}
}

func TestDependencyGraphReferencesKnownTypes(t *testing.T) {
	for docType, dep := range dependencies {
		if _, ok := Lookup(docType); !ok {
			t.Errorf("dependency entry for unknown type %q", docType)
		}
		for _, d := range append(append([]string{}, dep.Required...), dep.Recommended...) {
			if _, ok := Lookup(d); !ok {
				t.Errorf("%s depends on unknown type %q", docType, d)
			}
		}
	}
}

func TestWaves(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want [][]string
	}{
		{
			name: "planning chain",
			in:   []string{"product-roadmap", "stakeholder-register", "business-case", "high-level-requirements", "scope-statement"},
			want: [][]string{
				{"stakeholder-register", "business-case", "high-level-requirements"},
				{"scope-statement"},
				{"product-roadmap"},
			},
		},
		{
			name: "dependencies outside the request are ignored",
			in:   []string{"risk-register", "compliance"},
			want: [][]string{{"risk-register", "compliance"}},
		},
		{
			name: "design layers",
			in:   []string{"lld-api", "lld-db", "lld-arch"},
			want: [][]string{{"lld-arch"}, {"lld-db"}, {"lld-api"}},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Waves(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Waves() = %v, want %v", got, tt.want)
			}
		})
	}
}
