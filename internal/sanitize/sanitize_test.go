package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "baseline", "baseline"},
		{"keeps allowed punctuation", "sweep/k4_p0.1-v2", "sweep/k4_p0.1-v2"},
		{"spaces kept", "outbreak run 3", "outbreak run 3"},
		{"control characters dropped", "run\x00\x1b[31m1", "run31m1"},
		{"tabs become spaces", "a\tb", "a b"},
		{"markup dropped", "<script>x</script>", "scriptx/script"},
		{"collapses separators", "a---b__c   d", "a-b_c d"},
		{"collapses dots", "../../etc", "etc"},
		{"trims edges", "  -name- ", "name"},
		{"unicode dropped", "réseau", "rseau"},
		{"only junk", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunName(tt.input))
		})
	}
}

func TestRunName_Truncates(t *testing.T) {
	assert.Len(t, RunName(strings.Repeat("ab", MaxNameLength)), MaxNameLength)
}
