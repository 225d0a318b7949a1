package navigation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pscheid92/tracklive/internal/domain"
)

var pathPattern = regexp.MustCompile(`^/u/([A-Za-z0-9-]+)(?:/([0-9]+))?/?$`)

// Path returns the page path for a set, /u/{user}/{set}.
func Path(user domain.UserID, set domain.SetID) string {
	return fmt.Sprintf("/u/%s/%d", user, set)
}

// ParsePath extracts the user and set from a page path. A missing set, or one
// that does not fit an int64, means the live set.
func ParsePath(path string) (domain.UserID, domain.SetID, error) {
	m := pathPattern.FindStringSubmatch(path)
	if m == nil {
		return "", domain.LiveSet, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}

	user := domain.UserID(m[1])
	if m[2] == "" {
		return user, domain.LiveSet, nil
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return user, domain.LiveSet, nil
	}
	return user, domain.SetID(id), nil
}
