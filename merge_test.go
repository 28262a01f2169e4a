package luzidos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge(t *testing.T) {
	t.Run("disjoint keys union", func(t *testing.T) {
		base := map[string]any{"a": 1}
		update := map[string]any{"b": 2}
		merged := DeepMerge(base, update)
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged)
	})

	t.Run("scalar conflict takes update", func(t *testing.T) {
		base := map[string]any{"a": 1}
		update := map[string]any{"a": 2}
		assert.Equal(t, map[string]any{"a": 2}, DeepMerge(base, update))
	})

	t.Run("nested maps merge recursively", func(t *testing.T) {
		base := map[string]any{
			"state": map[string]any{
				"metadata":   map[string]any{"current_state": "INIT_AGENT", "keep": true},
				"state_data": map[string]any{"x": 1},
			},
		}
		update := map[string]any{
			"state": map[string]any{
				"metadata": map[string]any{"current_state": "SEND_EMAIL"},
			},
		}
		merged := DeepMerge(base, update)
		metadata := merged["state"].(map[string]any)["metadata"].(map[string]any)
		assert.Equal(t, "SEND_EMAIL", metadata["current_state"])
		assert.Equal(t, true, metadata["keep"])
		assert.Equal(t, map[string]any{"x": 1}, merged["state"].(map[string]any)["state_data"])
	})

	t.Run("lists replaced wholesale", func(t *testing.T) {
		base := map[string]any{"items": []any{1, 2, 3}}
		update := map[string]any{"items": []any{4}}
		assert.Equal(t, map[string]any{"items": []any{4}}, DeepMerge(base, update))
	})

	t.Run("map replaces scalar and vice versa", func(t *testing.T) {
		base := map[string]any{"v": 1, "m": map[string]any{"a": 1}}
		update := map[string]any{"v": map[string]any{"nested": true}, "m": "flat"}
		merged := DeepMerge(base, update)
		assert.Equal(t, map[string]any{"nested": true}, merged["v"])
		assert.Equal(t, "flat", merged["m"])
	})

	t.Run("arguments are not mutated", func(t *testing.T) {
		base := map[string]any{"nested": map[string]any{"a": 1}}
		update := map[string]any{"nested": map[string]any{"b": 2}}
		merged := DeepMerge(base, update)
		require.Equal(t, map[string]any{"a": 1}, base["nested"])
		require.Equal(t, map[string]any{"b": 2}, update["nested"])

		// Mutating the result must not leak back into the inputs.
		merged["nested"].(map[string]any)["a"] = 99
		assert.Equal(t, 1, base["nested"].(map[string]any)["a"])
	})

	t.Run("base-only values are copied, not aliased", func(t *testing.T) {
		base := map[string]any{
			"untouched": map[string]any{"a": 1},
			"items":     []any{1, 2},
		}
		merged := DeepMerge(base, map[string]any{"other": true})

		merged["untouched"].(map[string]any)["a"] = 99
		merged["items"].([]any)[0] = 99
		assert.Equal(t, 1, base["untouched"].(map[string]any)["a"])
		assert.Equal(t, 1, base["items"].([]any)[0])
	})

	t.Run("nil base", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": 1}, DeepMerge(nil, map[string]any{"a": 1}))
	})

	t.Run("nil update", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": 1}, DeepMerge(map[string]any{"a": 1}, nil))
	})
}
