package shell

import (
	"regexp"
	"strings"
)

// yesFlagPatterns match scaffolding commands that prompt interactively
// unless told to accept defaults.
var yesFlagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnpm\s+init\b`),
	regexp.MustCompile(`\bnpm\s+create\b`),
	regexp.MustCompile(`\bnpx\s+[^ ]*create`),
	regexp.MustCompile(`\byarn\s+create\b`),
	regexp.MustCompile(`\bpnpm\s+create\b`),
}

// devServerPatterns match commands that start a long-running dev server
// or watcher and never exit on their own.
var devServerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnpm\s+run\s+(dev|start|preview|serve|storybook)\b`),
	regexp.MustCompile(`\bnpm\s+run\s+.*(--watch|--serve)\b`),
	regexp.MustCompile(`\bnpx\s+next\s+dev\b`),
	regexp.MustCompile(`\bnext\s+dev\b`),
	regexp.MustCompile(`\bvite\s+dev\b`),
	regexp.MustCompile(`\bnpx\s+vite\s+dev\b`),
	regexp.MustCompile(`\bpnpm\s+(dev|preview|start|serve)\b`),
	regexp.MustCompile(`\byarn\s+(dev|start|preview|serve|storybook)\b`),
	regexp.MustCompile(`\bnpx\s+astro\s+dev\b`),
	regexp.MustCompile(`\bnpx\s+remix\s+dev\b`),
	regexp.MustCompile(`\bnpx\s+expo\b`),
	regexp.MustCompile(`\bexpo\s+start\b`),
	regexp.MustCompile(`\buvicorn\b.+(--reload|--workers)`),
	regexp.MustCompile(`\bflask\s+run\b`),
	regexp.MustCompile(`\bdjango-admin\s+runserver\b`),
	regexp.MustCompile(`\bpython\s+-m\s+http\.server\b`),
	regexp.MustCompile(`\bnuxi\s+dev\b`),
	regexp.MustCompile(`\bnpx\s+nuxt\s+dev\b`),
}

// Rewriter normalizes commands before execution: scaffolding tools get
// consent flags so they never block on a prompt, and create-next-app gets
// an explicit React compiler choice.
type Rewriter struct {
	// ForceNonInteractive enables all rewriting. When false, Prepare only
	// trims whitespace.
	ForceNonInteractive bool
	// ReactCompiler is "use" or "no".
	ReactCompiler string
}

// NonInteractiveEnv returns environment seeds that make common CLIs pick
// defaults instead of prompting. Empty when rewriting is disabled.
func (r *Rewriter) NonInteractiveEnv() map[string]string {
	if !r.ForceNonInteractive {
		return nil
	}
	return map[string]string{
		"CI":                             "1",
		"npm_config_yes":                 "true",
		"NPX_YES":                        "1",
		"HUSKY_SKIP_HOOKS":               "1",
		"YARN_ENABLE_IMMUTABLE_INSTALLS": "false",
		"SKIP_PROMPTS":                   "1",
	}
}

// Prepare returns the command as it will actually be executed. Prepare is
// idempotent: rewriting an already-rewritten command changes nothing.
func (r *Rewriter) Prepare(command string) string {
	prepared := strings.TrimSpace(command)
	lower := strings.ToLower(prepared)

	if r.ForceNonInteractive {
		if !hasYesFlag(lower) {
			for _, pattern := range yesFlagPatterns {
				if pattern.MatchString(lower) {
					prepared = appendFlag(prepared, "--yes")
					lower = strings.ToLower(prepared)
					break
				}
			}
		}

		if strings.Contains(lower, "create-next-app") &&
			!strings.Contains(lower, "--use-react-compiler") &&
			!strings.Contains(lower, "--no-use-react-compiler") {
			flag := "--no-use-react-compiler"
			if r.ReactCompiler == "use" {
				flag = "--use-react-compiler"
			}
			prepared = appendFlag(prepared, flag)
		}
	}

	return prepared
}

// RequiresBackground reports whether the command starts a dev server or
// watcher that must be run with a trailing "&".
func (r *Rewriter) RequiresBackground(command string) bool {
	normalized := strings.ToLower(strings.TrimSpace(command))
	for _, pattern := range devServerPatterns {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}

// IsBackgrounded reports whether the command already runs detached.
func (r *Rewriter) IsBackgrounded(command string) bool {
	stripped := strings.TrimRight(command, " \t\n")
	if strings.HasSuffix(stripped, "&") {
		return true
	}
	return strings.Contains(stripped, "nohup ") && strings.Contains(stripped, "&")
}

func hasYesFlag(commandLower string) bool {
	return strings.Contains(commandLower, " --yes") || strings.Contains(commandLower, " -y")
}

// appendFlag inserts the flag before the first " -- " separator so it
// reaches the tool itself, not the arguments forwarded past the "--".
func appendFlag(command, flag string) string {
	if strings.Contains(command, " -- ") {
		return strings.Replace(command, " -- ", " "+flag+" -- ", 1)
	}
	return command + " " + flag
}
