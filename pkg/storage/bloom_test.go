package storage

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBloom(t *testing.T) {
	id1 := sha256.Sum256([]byte{1})
	id2 := sha256.Sum256([]byte{2})
	absent := sha256.Sum256([]byte{3})

	b, err := MakeBloom([][]byte{id1[:], id2[:]})
	if err != nil {
		t.Fatal(err)
	}

	yes, err := BloomContains(b, id1[:])
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, yes)

	yes, _ = BloomContains(b, id2[:])
	assert.True(t, yes)

	_, err = BloomContains(b, absent[:])
	assert.NoError(t, err)

	falsePositives := 0
	for i := 0; i < 200; i++ {
		other := sha256.Sum256([]byte{0xff, byte(i)})
		if ok, _ := BloomContains(b, other[:]); ok {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 40)
}

func TestBloomEmptyFilter(t *testing.T) {
	yes, err := BloomContains(nil, []byte{1})
	assert.NoError(t, err)
	assert.True(t, yes)
}
