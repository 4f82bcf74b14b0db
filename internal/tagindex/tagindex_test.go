package tagindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcowham/cvs2git/internal/changeset"
)

func TestPutKeepsLatestMaxTimeWinner(t *testing.T) {
	x := New()
	early := changeset.NewKey("HEAD", "alice", 1000, []byte("a"), nil, 300)
	late := changeset.NewKey("HEAD", "bob", 2000, []byte("b"), nil, 300)

	x.Put("release_1", early)
	x.Put("release_1", late)

	x.Finalize(func(k *changeset.Key) *changeset.Key { return k })
	assert.Empty(t, early.Tags)
	assert.Equal(t, []string{"release_1"}, late.Tags)
}

func TestFinalizeResolvesMergedKey(t *testing.T) {
	x := New()
	original := changeset.NewKey("HEAD", "alice", 1000, []byte("a"), nil, 300)
	survivor := changeset.NewKey("HEAD", "alice", 1000, []byte("a"), nil, 300)

	x.Put("tag1", original)
	x.Finalize(func(k *changeset.Key) *changeset.Key {
		if k == original {
			return survivor
		}
		return k
	})

	assert.Empty(t, original.Tags)
	assert.Equal(t, []string{"tag1"}, survivor.Tags)
}

func TestResumeStateFindsTipAndExcludesPriorTags(t *testing.T) {
	r := NewResumeState(2000, "bob")

	k1 := changeset.NewKey("HEAD", "alice", 1000, []byte("a"), nil, 300)
	k1.Tags = []string{"old_tag"}
	matched := r.Observe(k1)
	assert.False(t, matched)
	assert.False(t, r.Found())
	assert.True(t, r.Excluded("old_tag"))

	k2 := changeset.NewKey("HEAD", "bob", 2000, []byte("b"), nil, 300)
	k2.Tags = []string{"tip_tag"}
	matched = r.Observe(k2)
	assert.True(t, matched)
	assert.True(t, r.Found())
	// the tip changeset's own tags are recorded as excluded too, matching
	// main()'s loop which appends k.tags to extags before the `continue`
	// even on the matching iteration.
	assert.True(t, r.Excluded("tip_tag"))

	// once found, further Observe calls are no-ops.
	k3 := changeset.NewKey("HEAD", "carol", 3000, []byte("c"), nil, 300)
	k3.Tags = []string{"future_tag"}
	matched = r.Observe(k3)
	assert.False(t, matched)
	assert.False(t, r.Excluded("future_tag"))
}

func TestResumeStateNotFoundWhenNoMatch(t *testing.T) {
	r := NewResumeState(9999, "nobody")
	k1 := changeset.NewKey("HEAD", "alice", 1000, []byte("a"), nil, 300)
	r.Observe(k1)
	assert.False(t, r.Found())
}
