package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGCSURL(t *testing.T) {
	cases := []struct {
		in             string
		bucket, object string
		ok             bool
	}{
		{"https://storage.googleapis.com/b1/albums/a%20b.zip", "b1", "albums/a b.zip", true},
		{"https://storage.cloud.google.com/b1/x.mp3", "b1", "x.mp3", true},
		{"gs://b2/tracks/1.flac", "b2", "tracks/1.flac", true},
		{"gs://b2/", "", "", false},
		{"https://example.com/b1/x.mp3", "", "", false},
		{"https://storage.googleapis.com/only-bucket", "", "", false},
	}
	for _, tc := range cases {
		b, o, ok := ParseGCSURL(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.bucket, b, tc.in)
		assert.Equal(t, tc.object, o, tc.in)
	}
}
