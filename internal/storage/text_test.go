package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"reset", "password"}, Terms("How do I reset my PASSWORD? password!"))
	assert.Empty(t, Terms("how do i"))
	assert.Equal(t, []string{"10", "1000", "doi"}, Terms("10.1000 DOI doi"))
}

func TestTermOverlap(t *testing.T) {
	terms := Terms("reset password link")
	assert.InDelta(t, 2.0/3.0, TermOverlap(terms, "Reset your password"), 1e-9)
	assert.Equal(t, 0.0, TermOverlap(nil, "anything"))
	assert.Equal(t, 1.0, TermOverlap(terms, "link to reset the password"))
}
