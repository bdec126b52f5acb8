package model

import (
	"crypto/md5"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

// PostingID derives the posting identifier from the listing's source link:
// the 128-bit MD5 digest of the link rendered in UUID form. The mapping is
// pure, so re-ingesting the same link always yields the same identifier and
// duplicate detection reduces to a key lookup.
func PostingID(link string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", apperrors.New(apperrors.ErrInvalidCandidate, 400, "candidate link is empty")
	}
	sum := md5.Sum([]byte(link))
	return uuid.UUID(sum).String(), nil
}
