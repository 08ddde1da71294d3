package main

import (
	"sort"
	"strings"
)

// subsystemTiers ranks code areas by criticality. Tier 1 is the most
// critical; tier 6 the least. A commit's tier is the best (lowest) tier of
// any file it touches.
var subsystemTiers = map[int][]string{
	1: {"mm/", "kernel/sched/", "kernel/locking/", "net/core/", "init/", "lib/"},
	2: {"kernel/bpf/", "kernel/trace/", "kernel/", "net/", "fs/", "block/",
		"security/", "crypto/", "ipc/", "virt/kvm/"},
	3: {"drivers/gpu/drm/", "drivers/net/", "drivers/scsi/", "drivers/nvme/",
		"drivers/ata/", "drivers/usb/", "drivers/pci/", "drivers/input/",
		"sound/", "arch/"},
	4: {"drivers/", "tools/", "samples/", "scripts/"},
	5: {"Documentation/devicetree/", "MAINTAINERS", "CREDITS", ".mailmap"},
	6: {"Documentation/"},
}

// vfsCoreFiles are always tier 1 regardless of the fs/ prefix match.
var vfsCoreFiles = map[string]bool{
	"fs/namei.c":      true,
	"fs/read_write.c": true,
	"fs/super.c":      true,
	"fs/inode.c":      true,
}

// tierCriticality maps a subsystem tier to subsystem_criticality points.
var tierCriticality = map[int]int{1: 10, 2: 8, 3: 6, 4: 4, 5: 2, 6: 1}

// SubsystemTier returns the tier (1-6) for the set of touched files.
// Defaults to 6 when nothing matches.
func SubsystemTier(files []string) int {
	best := 6
	for _, f := range files {
		if vfsCoreFiles[f] {
			return 1
		}
		if strings.Contains(f, "/boot/dts/") && (strings.HasSuffix(f, ".dts") || strings.HasSuffix(f, ".dtsi")) {
			if best > 5 {
				best = 5
			}
			continue
		}
		lower := strings.ToLower(f)
		for tier, prefixes := range subsystemTiers {
			if tier >= best {
				continue
			}
			for _, prefix := range prefixes {
				if strings.HasPrefix(f, prefix) || strings.HasPrefix(lower, strings.ToLower(prefix)) {
					best = tier
					break
				}
			}
		}
	}
	return best
}

// SubsystemsFromFiles returns the primary subsystem prefix and the sorted
// list of all top-level subsystems touched.
func SubsystemsFromFiles(files []string) (string, []string) {
	seen := make(map[string]bool)
	for _, f := range files {
		if idx := strings.Index(f, "/"); idx > 0 {
			seen[f[:idx+1]] = true
		}
	}
	subsystems := make([]string, 0, len(seen))
	for s := range seen {
		subsystems = append(subsystems, s)
	}
	sort.Strings(subsystems)
	if len(subsystems) == 0 {
		return "unknown", nil
	}
	return subsystems[0], subsystems
}
