// Package service implements the social-layer operations over the
// repositories and the change feed.
package service

import "strconv"

func jsonID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
