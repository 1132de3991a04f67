package receivables

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Boundary values fall into the lower bucket.
func TestBucketFor_StrictBoundaries(t *testing.T) {
	tests := []struct {
		elapsed float64
		bucket  Bucket
		back    int
	}{
		{0, BucketUpTo2, 2},
		{2.0, BucketUpTo2, 2},
		{2.01, Bucket2To4, 4},
		{4.0, Bucket2To4, 4},
		{4.5, Bucket4To6, 6},
		{6.0, Bucket4To6, 6},
		{6.2, BucketOver6, 7},
		{9.0, BucketOver6, 9},
	}
	for _, tt := range tests {
		bucket, back := bucketFor(tt.elapsed)
		assert.Equal(t, tt.bucket, bucket, "elapsed %v", tt.elapsed)
		assert.Equal(t, tt.back, back, "elapsed %v", tt.elapsed)
	}
}
