package workerrt

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSelfArgs extracts the --slave-id, --slave-alias, and optional
// --slave-title flags the controller appends after a worker's own
// user-supplied arguments, and returns those user arguments unchanged and
// in order. Unlike flag.FlagSet, this scans the whole argument list instead
// of stopping at the first non-flag token, since the controller-appended
// flags come after arbitrary positional arguments a worker program defines
// for itself.
func ParseSelfArgs(args []string) (id uint64, alias, title string, rest []string, err error) {
	const (
		idPrefix    = "--slave-id="
		aliasPrefix = "--slave-alias="
		titlePrefix = "--slave-title="
	)

	var idStr string
	var sawID, sawAlias bool
	rest = make([]string, 0, len(args))

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, idPrefix):
			idStr = strings.TrimPrefix(arg, idPrefix)
			sawID = true
		case strings.HasPrefix(arg, aliasPrefix):
			alias = strings.TrimPrefix(arg, aliasPrefix)
			sawAlias = true
		case strings.HasPrefix(arg, titlePrefix):
			title = strings.TrimPrefix(arg, titlePrefix)
		default:
			rest = append(rest, arg)
		}
	}

	if !sawID {
		return 0, "", "", nil, fmt.Errorf("workerrt: missing required --slave-id argument")
	}
	if !sawAlias || alias == "" {
		return 0, "", "", nil, fmt.Errorf("workerrt: missing required --slave-alias argument")
	}
	id, err = strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("workerrt: invalid --slave-id value %q: %w", idStr, err)
	}

	return id, alias, title, rest, nil
}
