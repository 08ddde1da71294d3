package main

import "strings"

// knownOrgs maps email domains to organization names. Domains not listed
// fall back to the second-level domain, capitalized.
var knownOrgs = map[string]string{
	"huawei.com":      "Huawei",
	"hisilicon.com":   "HiSilicon",
	"alibaba.com":     "Alibaba",
	"alibaba-inc.com": "Alibaba",
	"antgroup.com":    "AntGroup",
	"tencent.com":     "Tencent",
	"bytedance.com":   "ByteDance",
	"baidu.com":       "Baidu",
	"xiaomi.com":      "Xiaomi",
	"oppo.com":        "OPPO",
	"vivo.com":        "vivo",
	"zte.com.cn":      "ZTE",
	"zte.com":         "ZTE",
	"lenovo.com":      "Lenovo",
	"loongson.cn":     "Loongson",
	"kylinos.cn":      "Kylin",
	"uniontech.com":   "UnionTech",
	"mediatek.com":    "MediaTek",
	"starfivetech.com": "StarFive",
	"thead.cn":        "T-Head",
	"spacemit.com":    "Spacemit",
	"amd.com":         "AMD",
	"intel.com":       "Intel",
	"nvidia.com":      "NVIDIA",
	"qualcomm.com":    "Qualcomm",
	"arm.com":         "ARM",
	"google.com":      "Google",
	"microsoft.com":   "Microsoft",
	"amazon.com":      "Amazon",
	"meta.com":        "Meta",
	"oracle.com":      "Oracle",
	"ibm.com":         "IBM",
	"redhat.com":      "Red Hat",
	"suse.com":        "SUSE",
	"canonical.com":   "Canonical",
	"collabora.com":   "Collabora",
	"linaro.org":      "Linaro",
	"bootlin.com":     "Bootlin",
	"nxp.com":         "NXP",
	"st.com":          "STMicroelectronics",
	"ti.com":          "Texas Instruments",
	"renesas.com":     "Renesas",
	"broadcom.com":    "Broadcom",
	"marvell.com":     "Marvell",
	"realtek.com":     "Realtek",
	"rockchip.com":    "Rockchip",
	"allwinnertech.com": "Allwinner",
	"unisoc.com":      "Unisoc",
	"sophgo.com":      "Sophgo",
}

// OrgFromEmail resolves an organization name from an email address.
func OrgFromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "Unknown"
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))

	for orgDomain, name := range knownOrgs {
		if domain == orgDomain || strings.HasSuffix(domain, "."+orgDomain) {
			return name
		}
	}

	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		second := parts[len(parts)-2]
		if second != "" {
			return strings.ToUpper(second[:1]) + second[1:]
		}
	}
	return "Unknown"
}

// MatchesDomainFilter reports whether the email matches any of the given
// "@domain" filters. An empty filter list matches everything.
func MatchesDomainFilter(email string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	domain := strings.ToLower(strings.TrimSpace(email))
	if at := strings.LastIndex(domain, "@"); at >= 0 {
		domain = domain[at+1:]
	}
	for _, f := range filters {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "@"))
		if f == "" {
			continue
		}
		if domain == f || strings.HasSuffix(domain, "."+f) {
			return true
		}
	}
	return false
}
