// Package deepgram holds helpers shared by the Deepgram speech clients.
package deepgram

import "strings"

const defaultHost = "api.deepgram.com"

// Host maps a configured region to the Deepgram API host. An empty region or
// "us" selects the default host, "eu" the EU data residency host, and any
// value containing a dot is used as a host verbatim.
func Host(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	switch {
	case region == "", region == "us", region == "global":
		return defaultHost
	case strings.Contains(region, "."):
		return region
	default:
		return "api." + region + ".deepgram.com"
	}
}
