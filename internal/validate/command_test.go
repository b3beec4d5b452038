// internal/validate/command_test.go

package validate

import (
	"strings"
	"testing"
)

func mustPolicy(t *testing.T, extra ...string) *CommandPolicy {
	t.Helper()
	p, err := NewCommandPolicy(extra)
	if err != nil {
		t.Fatalf("NewCommandPolicy: %v", err)
	}
	return p
}

func TestCommandAccepted(t *testing.T) {
	p := mustPolicy(t)
	cases := []string{
		"ls -la /var/log",
		"systemctl status nginx",
		"grep -r pattern .",
		"rm -rf ./build",
		"tar czf backup.tar.gz /srv/data",
	}
	for _, cmd := range cases {
		if _, res := p.Command(cmd); !res.Valid() {
			t.Errorf("Command(%q) rejected: %+v", cmd, res.Errors)
		}
	}
}

func TestCommandRejected(t *testing.T) {
	p := mustPolicy(t)
	cases := []struct {
		name, cmd, constraint string
	}{
		{"empty", "", "required"},
		{"whitespace", "   ", "required"},
		{"oversized", strings.Repeat("x", MaxCommandLen+1), "max_length"},
		{"null byte", "echo a\x00b", "charset"},
		{"substitution", "echo $(cat /etc/shadow)", "denied_pattern"},
		{"backticks", "echo `id`", "denied_pattern"},
		{"rm root", "rm -rf /", "denied_pattern"},
		{"chained rm root", "true; rm -rf /", "denied_pattern"},
		{"mkfs", "mkfs.ext4 /dev/sda1", "denied_pattern"},
		{"dd to device", "dd if=/dev/zero of=/dev/sda", "denied_pattern"},
		{"fork bomb", ":(){ :|:& };:", "denied_pattern"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := p.Command(tc.cmd)
			if res.Valid() {
				t.Fatalf("Command(%q) accepted", tc.cmd)
			}
			if res.Errors[0].Constraint != tc.constraint {
				t.Fatalf("constraint = %q, want %q", res.Errors[0].Constraint, tc.constraint)
			}
		})
	}
}

func TestCommandExtraPatterns(t *testing.T) {
	p := mustPolicy(t, `shutdown`)
	if _, res := p.Command("shutdown -h now"); res.Valid() {
		t.Fatal("operator pattern not applied")
	}

	if _, err := NewCommandPolicy([]string{"("}); err == nil {
		t.Fatal("expected invalid extra pattern to fail construction")
	}
}

func TestTimeoutMS(t *testing.T) {
	if res := TimeoutMS("timeout", -1); res.Valid() {
		t.Fatal("negative timeout accepted")
	}
	if res := TimeoutMS("timeout", MaxTimeoutMS+1); res.Valid() {
		t.Fatal("oversized timeout accepted")
	}
	if res := TimeoutMS("timeout", 500); !res.Valid() {
		t.Fatalf("valid timeout rejected: %+v", res.Errors)
	}
}
