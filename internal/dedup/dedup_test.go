package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rkj2096/gossip-protocol/internal/dedup"
)

func TestObserveFirstThenDuplicate(t *testing.T) {
	c := dedup.New(1024)
	msg := []byte("12345678")

	assert.False(t, c.Observe(msg), "first observation must not be reported as a duplicate")
	assert.True(t, c.Observe(msg), "second observation of the same bytes must be a duplicate")
}

func TestObserveDistinguishesSentinel(t *testing.T) {
	c := dedup.New(1024)
	assert.False(t, c.Observe([]byte("START-MN")))
	assert.True(t, c.Observe([]byte("START-MN")))
	assert.False(t, c.Observe([]byte("AAAAAAAA")), "distinct bytes are independent entries")
}

func TestMarkPreventsFutureDuplicateReport(t *testing.T) {
	c := dedup.New(1024)
	msg := []byte("abcdefgh")
	c.Mark(msg)
	assert.True(t, c.Observe(msg))
}
