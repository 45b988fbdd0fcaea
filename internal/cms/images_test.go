package cms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageURL(t *testing.T) {
	assert.Equal(t,
		"https://cdn.sanity.io/images/proj/production/Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000.jpg",
		ImageURL("proj", "production", "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg"),
	)
	assert.Empty(t, ImageURL("proj", "production", "file-abc-pdf"))
	assert.Empty(t, ImageURL("proj", "production", "image-"))
	assert.Empty(t, ImageURL("proj", "production", ""))
}
