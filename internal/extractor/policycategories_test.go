package extractor

import "testing"

func TestResolveCategoryKnownAndUnknown(t *testing.T) {
	if got := ResolveCategory("%%8280"); got != "Account_Logon" {
		t.Errorf("ResolveCategory(%%8280) = %q, want Account_Logon", got)
	}
	if got := ResolveCategory("%%9999"); got != "%%9999" {
		t.Errorf("unknown category should fall back to the raw token, got %q", got)
	}
}

func TestResolveSubcategoryKnownAndUnknown(t *testing.T) {
	if got := ResolveSubcategory("{0cce9215-69ae-11d9-bed3-505054503030}"); got != "Logon" {
		t.Errorf("ResolveSubcategory(Logon guid) = %q, want Logon", got)
	}
	if got := ResolveSubcategory("{deadbeef}"); got != "{deadbeef}" {
		t.Errorf("unknown subcategory should fall back to the raw guid, got %q", got)
	}
}
