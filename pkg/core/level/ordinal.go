package level

import (
	"regexp"
	"strconv"
	"strings"
)

// Category is the level family used to keep unrelated areas apart.
type Category string

const (
	CategoryMain       Category = "main"
	CategoryParking    Category = "parking"
	CategoryVilla      Category = "villa"
	CategoryMechanical Category = "mechanical"
	CategoryUnknown    Category = "unknown"
)

// UnknownName is the bucket for devices without a level.
const UnknownName = "Unknown"

// Ordinal key bases.
const (
	keyParking    = -500
	keyGround     = 0
	keyFloor      = 1000
	keyVilla      = 5000
	keyMechanical = 9000
	keyUnparsed   = 9999
)

// Separator joins the names of consolidated levels and merged branches.
const Separator = " + "

var (
	numberRe   = regexp.MustCompile(`-?\d+`)
	basementRe = regexp.MustCompile(`^b[-\s]?(\d+)$`)
	parkingRe  = regexp.MustCompile(`^p[-\s]?(\d+)$`)
	floorRe    = regexp.MustCompile(`^(?:l|f)[-\s]?(\d+)$|^(\d+)(?:f|st|nd|rd|th)?(?:\s+floor)?$`)
)

// Normalize maps empty and whitespace level names to [UnknownName].
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownName
	}
	return name
}

// Classify returns the category and ordinal sort key of a level name.
// Combined names ("P1 + P2") classify by their first part.
func Classify(name string) (Category, int) {
	if i := strings.Index(name, Separator); i >= 0 {
		name = name[:i]
	}
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" || s == strings.ToLower(UnknownName) {
		return CategoryUnknown, keyUnparsed
	}

	n, hasNumber := firstNumber(s)

	switch {
	case strings.Contains(s, "villa"):
		return CategoryVilla, keyVilla + n
	case strings.Contains(s, "roof") || strings.Contains(s, "mech") || strings.Contains(s, "plant"):
		return CategoryMechanical, keyMechanical + n
	case strings.Contains(s, "parking") || strings.Contains(s, "garage") || strings.Contains(s, "car park"):
		return CategoryParking, keyParking + abs(n)
	}
	if m := parkingRe.FindStringSubmatch(s); m != nil {
		v, _ := strconv.Atoi(m[1])
		return CategoryParking, keyParking + v
	}
	if m := basementRe.FindStringSubmatch(s); m != nil {
		v, _ := strconv.Atoi(m[1])
		return CategoryMain, -v
	}
	if strings.Contains(s, "basement") || strings.Contains(s, "cellar") {
		if !hasNumber || n == 0 {
			n = 1
		}
		return CategoryMain, -abs(n)
	}
	switch s {
	case "ground", "ground floor", "gf", "g", "lobby":
		return CategoryMain, keyGround
	}
	if strings.HasPrefix(s, "ground") {
		return CategoryMain, keyGround
	}
	if hasNumber {
		if n < 0 {
			return CategoryMain, n
		}
		if n == 0 {
			return CategoryMain, keyGround
		}
		if floorRe.MatchString(s) || strings.Contains(s, "level") || strings.Contains(s, "floor") || strings.Contains(s, "storey") {
			return CategoryMain, keyFloor + n
		}
	}
	return CategoryMain, keyUnparsed
}

func firstNumber(s string) (int, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	// "Level-1" style names read as level 1, not minus one.
	if strings.HasPrefix(m, "-") {
		idx := strings.Index(s, m)
		if idx > 0 && isLetter(s[idx-1]) {
			m = m[1:]
		}
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
