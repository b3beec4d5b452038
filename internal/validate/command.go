// internal/validate/command.go

package validate

import (
	"fmt"
	"regexp"
	"strings"

	"quantumxfer/internal/sanitize"
)

// defaultDenyPatterns flag high-risk shell constructs. This is a
// defense-in-depth heuristic over an inherently command-running interface,
// not a sandbox: it can over-block odd-but-legitimate commands and cannot
// catch obfuscated ones. It rejects, never rewrites.
var defaultDenyPatterns = []string{
	`\$\(`,                              // command substitution $( )
	"`",                                 // command substitution backticks
	`(^|[;&|]\s*)rm\s+(-\w+\s+)*/(\s|$)`, // rm against the filesystem root
	`(^|[;&|]\s*)mkfs(\.\w+)?\s`,        // filesystem creation
	`(^|[;&|]\s*)dd\s+[^;|&]*of=/dev/`,  // raw writes to block devices
	`>\s*/dev/sd[a-z]`,                  // redirection onto block devices
	`:\(\)\s*\{\s*:\|:&\s*\}\s*;`,       // fork bomb
}

// CommandPolicy holds the compiled denylist for command validation.
type CommandPolicy struct {
	patterns []*regexp.Regexp
}

// NewCommandPolicy compiles the default denylist plus any extra operator
// patterns. Invalid extras fail construction so misconfiguration surfaces at
// startup.
func NewCommandPolicy(extra []string) (*CommandPolicy, error) {
	p := &CommandPolicy{}
	for _, src := range append(append([]string{}, defaultDenyPatterns...), extra...) {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to compile deny pattern %q: %w", src, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Command validates one remote command string against shape bounds and the
// denylist. Dangerous commands are rejected outright, never sanitized.
func (p *CommandPolicy) Command(cmd string) (string, Result) {
	var res Result

	switch {
	case strings.TrimSpace(cmd) == "":
		res.fail("command", "required", "command is required")
	case len(cmd) > MaxCommandLen:
		res.fail("command", "max_length", "command exceeds %d characters", MaxCommandLen)
	case sanitize.HasNullBytes(cmd):
		res.fail("command", "charset", "command contains null bytes")
	default:
		for _, re := range p.patterns {
			if re.MatchString(cmd) {
				res.fail("command", "denied_pattern", "command matches blocked pattern %q", re.String())
				break
			}
		}
	}

	return cmd, res
}

// TimeoutMS validates an optional caller-supplied timeout in milliseconds.
func TimeoutMS(field string, ms int64) Result {
	var res Result
	if ms < 0 {
		res.fail(field, "range", "timeout must not be negative")
	}
	if ms > MaxTimeoutMS {
		res.fail(field, "range", "timeout exceeds %d ms", int64(MaxTimeoutMS))
	}
	return res
}
