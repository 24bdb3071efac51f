package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testEpochDuration = 432000

func TestInferEpochStartTime(t *testing.T) {
	cases := []struct {
		name    string
		target  uint32
		anchors map[uint32]uint64
		want    uint64
		ok      bool
	}{
		{"exact anchor", 10, map[uint32]uint64{10: 1000}, 1000, true},
		{"forward", 12, map[uint32]uint64{10: 1000}, 865000, true},
		{"backward", 8, map[uint32]uint64{10: 1000000}, 136000, true},
		{"before unix epoch", 8, map[uint32]uint64{10: 1000}, 0, false},
		{"no anchors", 8, nil, 0, false},
		{"nearest wins", 19, map[uint32]uint64{10: 1000, 20: 5000000}, 4568000, true},
		{"earlier epoch wins a tie", 15, map[uint32]uint64{10: 1000, 20: 9000000}, 2161000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := InferEpochStartTime(tc.target, tc.anchors, testEpochDuration)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferEpochStartTimeRejectsBadDuration(t *testing.T) {
	_, ok := InferEpochStartTime(5, map[uint32]uint64{4: 100}, 0)
	assert.False(t, ok)
}
