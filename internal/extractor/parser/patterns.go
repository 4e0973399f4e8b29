package parser

import "strings"

// adultRatings are the markers recognized inside rating metadata. The
// RTA label is the standardized "Restricted To Adults" tag.
var adultRatings = []string{"adult", "mature", "rta-5042-1996-1400-1577-rta"}

// ContainsAdultRating reports whether a rating string carries any adult
// content marker, case-insensitively.
func ContainsAdultRating(rating string) bool {
	rating = strings.ToLower(rating)
	for _, marker := range adultRatings {
		if strings.Contains(rating, marker) {
			return true
		}
	}
	return false
}
