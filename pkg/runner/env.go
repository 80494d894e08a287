package runner

import "strings"

var proxyVars = []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

// cleanEnv drops proxy variables: adb talks to its local server over TCP and
// a system proxy breaks that.
func cleanEnv(env []string, extra []string) []string {
	out := make([]string, 0, len(env)+len(extra))
	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			out = append(out, e)
		}
	}
	return append(out, extra...)
}
