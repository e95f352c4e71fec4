package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadTestConfigIsValid(t *testing.T) {
	cfg := LoadTestConfig()
	assert.NoError(t, cfg.Validate())
}
