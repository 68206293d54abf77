package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("cache_cleanup", log)
	d := stop()

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Contains(t, buf.String(), `"operation":"cache_cleanup"`)
	assert.Contains(t, buf.String(), "Operation completed")
}
