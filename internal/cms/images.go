package cms

import (
	"fmt"
	"strings"
)

// ImageURL turns an image asset ref (image-<id>-<w>x<h>-<ext>) into its CDN URL.
// It returns "" for refs it does not recognize.
func ImageURL(projectID, dataset, ref string) string {
	if !strings.HasPrefix(ref, "image-") {
		return ""
	}
	rest := strings.TrimPrefix(ref, "image-")

	dash := strings.LastIndex(rest, "-")
	if dash <= 0 || dash == len(rest)-1 {
		return ""
	}
	name, ext := rest[:dash], rest[dash+1:]

	return fmt.Sprintf("https://cdn.sanity.io/images/%s/%s/%s.%s", projectID, dataset, name, ext)
}
