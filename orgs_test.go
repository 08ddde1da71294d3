package main

import "testing"

func TestOrgFromEmail(t *testing.T) {
	cases := map[string]string{
		"dev@huawei.com":          "Huawei",
		"dev@mail.huawei.com":     "Huawei",
		"dev@redhat.com":          "Red Hat",
		"Dev@REDHAT.COM":          "Red Hat",
		"dev@linux.alibaba.com":   "Alibaba",
		"dev@somewhere.ex.ample":  "Ex",
		"not-an-email":            "Unknown",
		"trailing@":               "Unknown",
	}
	for email, want := range cases {
		if got := OrgFromEmail(email); got != want {
			t.Fatalf("OrgFromEmail(%q): expected %q, got %q", email, want, got)
		}
	}
}

func TestMatchesDomainFilter(t *testing.T) {
	if !MatchesDomainFilter("dev@huawei.com", nil) {
		t.Fatalf("expected empty filter to match everything")
	}
	if !MatchesDomainFilter("dev@huawei.com", []string{"@huawei.com"}) {
		t.Fatalf("expected direct domain match")
	}
	if !MatchesDomainFilter("dev@mail.huawei.com", []string{"huawei.com"}) {
		t.Fatalf("expected subdomain match without @ prefix")
	}
	if MatchesDomainFilter("dev@intel.com", []string{"@huawei.com", "@hisilicon.com"}) {
		t.Fatalf("expected non-matching domain rejected")
	}
	if MatchesDomainFilter("dev@nothuawei.com", []string{"@huawei.com"}) {
		t.Fatalf("expected suffix-only match rejected")
	}
}
