package cloudinary

import (
	"regexp"
	"strings"
)

var (
	versionSegment = regexp.MustCompile(`^v\d+$`)
	fileExtension  = regexp.MustCompile(`\.[^/.]+$`)
)

// ExtractPublicID derives the Cloudinary public id from a delivery URL.
// For https://res.cloudinary.com/<cloud>/image/upload/v123/banners/img.jpg
// it returns "banners/img": everything after the /upload/ segment, minus
// a leading v<digits> version segment and the file extension.
//
// Returns the empty string for URLs that carry no /upload/ segment or
// nothing usable after it. Never panics; pure and deterministic.
func ExtractPublicID(rawURL string) string {
	if rawURL == "" || !strings.Contains(rawURL, "/upload/") {
		return ""
	}

	afterUpload := strings.SplitN(rawURL, "/upload/", 2)[1]
	if afterUpload == "" {
		return ""
	}

	segments := strings.Split(afterUpload, "/")
	if versionSegment.MatchString(segments[0]) {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return ""
	}

	last := segments[len(segments)-1]
	segments = segments[:len(segments)-1]
	basename := fileExtension.ReplaceAllString(last, "")

	return strings.Join(append(segments, basename), "/")
}

// ExtractPublicIDs maps URLs to public ids, discarding any that fail
// extraction. The result preserves input order.
func ExtractPublicIDs(urls []string) []string {
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		if pid := ExtractPublicID(u); pid != "" {
			ids = append(ids, pid)
		}
	}
	return ids
}
