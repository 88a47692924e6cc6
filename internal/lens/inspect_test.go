package lens

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		query      string
		wantType   QueryType
		wantNormal string
	}{
		{"AS13335", QueryASN, "13335"},
		{"as13335", QueryASN, "13335"},
		{"13335", QueryASN, "13335"},
		{"1.1.1.0/24", QueryPrefix, "1.1.1.0/24"},
		{"1.1.1.1", QueryPrefix, "1.1.1.1/32"},
		{"2001:db8::1", QueryPrefix, "2001:db8::1/128"},
		{"cloudflare", QueryName, "cloudflare"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.query)
			if gotType != tt.wantType {
				t.Errorf("type: want %s, got %s", tt.wantType, gotType)
			}
			if gotNorm != tt.wantNormal {
				t.Errorf("normalized: want %s, got %s", tt.wantNormal, gotNorm)
			}
		})
	}
}

func TestDefaultSectionsASNExcludesPrefixes(t *testing.T) {
	sections := defaultSections(QueryASN)
	for _, s := range sections {
		if s == SectionPrefixes {
			t.Fatal("want ASN defaults to exclude prefixes section")
		}
	}

	hasConnectivity, hasROAs := false, false
	for _, s := range sections {
		if s == SectionConnectivity {
			hasConnectivity = true
		}
		if s == SectionROAs {
			hasROAs = true
		}
	}
	if !hasConnectivity || !hasROAs {
		t.Errorf("want ASN defaults to include connectivity and roas, got %v", sections)
	}
}

func TestDefaultSectionsPrefixIncludesBasicAndROAs(t *testing.T) {
	sections := defaultSections(QueryPrefix)
	want := map[Section]bool{SectionBasic: true, SectionROAs: true}
	got := map[Section]bool{}
	for _, s := range sections {
		got[s] = true
	}
	for s := range want {
		if !got[s] {
			t.Errorf("want prefix defaults to include %s, got %v", s, sections)
		}
	}
}
