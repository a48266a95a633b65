package publicid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatsPrefixedID(t *testing.T) {
	re := regexp.MustCompile(`^lst-\d{5}-\d{4}$`)
	for i := 0; i < 50; i++ {
		id, err := New("lst")
		require.NoError(t, err)
		assert.Regexp(t, re, id)
	}
}
