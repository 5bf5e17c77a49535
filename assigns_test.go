package livehtml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysChanged_InitialRenderAlwaysRecomputes(t *testing.T) {
	keys := Keys{Paths: map[string]bool{"user": true}}
	assert.True(t, KeysChanged(keys, map[string]any{"user": "a"}, nil, true))
}

func TestKeysChanged_AllAlwaysRecomputes(t *testing.T) {
	keys := Keys{All: true}
	assert.True(t, KeysChanged(keys, nil, ChangedMap{}, false))
}

func TestKeysChanged_NoDepsNeverRecomputesAfterInitial(t *testing.T) {
	keys := Keys{Paths: map[string]bool{}}
	assert.False(t, KeysChanged(keys, map[string]any{"user": "a"}, ChangedMap{"user": true}, false))
}

func TestKeysChanged_TracksNestedPath(t *testing.T) {
	keys := Keys{Paths: map[string]bool{"user.name": true}}
	changed := ChangedMap{"user": ChangedMap{"name": true}}
	assigns := map[string]any{"user": map[string]any{"name": "bob"}}
	assert.True(t, KeysChanged(keys, assigns, changed, false))
}

func TestKeysChanged_UnrelatedTopLevelChangeIsIgnored(t *testing.T) {
	keys := Keys{Paths: map[string]bool{"user.name": true}}
	changed := ChangedMap{"other": true}
	assert.False(t, KeysChanged(keys, map[string]any{}, changed, false))
}

func TestMarkIndicatesChange_PreviousValueSentinel(t *testing.T) {
	assert.False(t, markIndicatesChange("old", "old"))
	assert.True(t, markIndicatesChange("old", "new"))
	assert.True(t, markIndicatesChange(true, nil))
	assert.False(t, markIndicatesChange(false, nil))
}

func TestAssigns_SpawnMergesOverParent(t *testing.T) {
	root := NewAssigns(map[string]any{"a": 1, "b": 2}, nil)
	child := root.Spawn(map[string]any{"b": 3}, ChangedMap{"b": true})
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, child.Vars())
	assert.False(t, child.Initial())
}

func TestAssigns_EnvMergesBoundOverAssigns(t *testing.T) {
	a := NewAssigns(map[string]any{"x": 1}, nil)
	env := a.Env(map[string]any{"item": "row"})
	assert.Equal(t, "row", env["item"])
	assert.Equal(t, map[string]any{"x": 1}, env["assigns"])
}

func TestAssigns_RootIsInitialOnlyWithNilChanged(t *testing.T) {
	assert.True(t, NewAssigns(nil, nil).Initial())
	assert.False(t, NewAssigns(nil, ChangedMap{}).Initial())
}
