package util

import "github.com/dchest/uniuri"

// GenerateRandomString generates a random opaque string of the specified
// length, used as the suffix of the temporary output file a compose run
// writes before renaming it into place.
func GenerateRandomString(length int) string {
	return uniuri.NewLen(length)
}
