package metadata

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPackageDerivation(t *testing.T) {
	cases := []struct {
		typeName   string
		fullName   string
		wantPkg    string
		thirdParty bool
	}{
		{"ApexClass", "InvoiceService", "", false},
		{"ApexClass", "acme_billing__InvoiceService", "acme_billing", true},
		{"CustomObject", "acme_billing__Invoice__c", "acme_billing", true},
		{"CustomObject", "Invoice__c", "", false},
		{"CustomObject", "acme_billing__Settings__mdt", "acme_billing", true},
		// Container types never carry a package, namespace prefix or not.
		{"CustomField", "acme_billing__Invoice__c.Amount__c", "", false},
		{"ValidationRule", "Invoice__c.Positive_Amount", "", false},
	}
	for _, tc := range cases {
		c := NewComponent(tc.typeName, tc.fullName, StatusSynced)
		if c.PackageName != tc.wantPkg || c.IsThirdParty != tc.thirdParty {
			t.Errorf("NewComponent(%s, %s): package %q thirdParty %v, want %q %v",
				tc.typeName, tc.fullName, c.PackageName, c.IsThirdParty, tc.wantPkg, tc.thirdParty)
		}
	}
}

func TestComponentIDsAreUnique(t *testing.T) {
	a := NewComponent("ApexClass", "Invoice", StatusSynced)
	b := NewComponent("ApexClass", "Invoice", StatusSynced)
	if a.ID == b.ID {
		t.Error("Expected distinct synthetic IDs for separate materializations")
	}
	if a.Key() != b.Key() {
		t.Errorf("Expected identical identity keys, got %s vs %s", a.Key(), b.Key())
	}
}

func TestRetagKeepsIdentity(t *testing.T) {
	a := NewComponent("ApexClass", "Invoice", StatusLocalOnly)
	b := a.Retag(StatusSynced)
	if b.Status != StatusSynced || b.ID != a.ID {
		t.Errorf("Retag must change only the status, got %+v", b)
	}
	if a.Status != StatusLocalOnly {
		t.Error("Retag must not mutate the original")
	}
}

// TestUnknownTimestampElidedFromJSON checks that a component with no known
// last-modified date serializes without the field, so the cache never
// records a fabricated zero time.
func TestUnknownTimestampElidedFromJSON(t *testing.T) {
	local := NewComponent("ApexClass", "Invoice", StatusLocalOnly)
	data, err := json.Marshal(local)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "lastModifiedDate") {
		t.Errorf("Expected the zero timestamp elided, got %s", data)
	}

	remote := NewComponent("ApexClass", "Invoice", StatusRemoteOnly)
	remote.LastModifiedDate = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	data, err = json.Marshal(remote)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "lastModifiedDate") {
		t.Errorf("Expected a known timestamp serialized, got %s", data)
	}
}
