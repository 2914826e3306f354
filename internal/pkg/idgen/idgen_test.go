package idgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KirkDiggler/pcg-director/internal/pkg/idgen"
)

func TestUUIDGenerator(t *testing.T) {
	gen := idgen.NewUUID(idgen.PrefixRequest)
	a, b := gen.Generate(), gen.Generate()

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.Len(t, a, len("req_")+36)
	assert.NotEqual(t, a, b)

	assert.Len(t, idgen.NewUUID("").Generate(), 36)
}

func TestSequentialGenerator(t *testing.T) {
	gen := idgen.NewSequential("test")
	assert.Equal(t, "test_1", gen.Generate())
	assert.Equal(t, "test_2", gen.Generate())

	assert.Equal(t, "1", idgen.NewSequential("").Generate())
}
