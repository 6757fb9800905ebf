package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchAnswer(t *testing.T) {
	constraints := []string{No, Yes}
	assert.Equal(t, No, matchAnswer("", constraints))
	assert.Equal(t, Yes, matchAnswer("Y", constraints))
	assert.Equal(t, Yes, matchAnswer(" y ", constraints))
	assert.Equal(t, No, matchAnswer("yes please", constraints))
}
