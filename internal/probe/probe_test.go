package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripEmailDomain(t *testing.T) {
	assert.Equal(t, "alice", stripEmailDomain("alice@example.com", "example.com"))
	assert.Equal(t, "alice@other.com", stripEmailDomain("alice@other.com", "example.com"))
	assert.Equal(t, "alice", stripEmailDomain("alice", "example.com"))
	assert.Equal(t, "alice", stripEmailDomain("alice", ""))
}
