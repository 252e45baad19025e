// Package excludes decides whether a candidate path should be skipped
// during baseline/target discovery.
package excludes

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// DEFAULT_EXCLUDES is the built-in suffix/substring exclusion list,
// carried over unchanged from the original implementation's
// default_excludes.rs.
var DEFAULT_EXCLUDES = []string{
	// binary data with known extension
	".ico$",
	".png$",
	".clf$",
	".tar$",
	".tar.bzip2$",
	".subunit$",
	".sqlite$",
	".db$",
	".bin$",
	".pcap.log.txt$",
	// font
	".eot$",
	".otf$",
	".woff$",
	".woff2$",
	".ttf$",
	// config
	".yaml$",
	".ini$",
	".conf$",
	// not relevant
	"job-output.json$",
	"zuul-manifest.json$",
	".html$",
	// binary data with known location
	"cacerts$",
	"local/creds$",
	"/authkey$",
	"mysql/tc.log.txt$",
	// swifts
	"object.builder$",
	"account.builder$",
	"container.builder$",
	// system config
	"/etc/",
	// hidden files
	"/\\.",
}

// Matcher tests a path against the default excludes plus any
// user-supplied glob patterns.
type Matcher struct {
	defaults []*regexp.Regexp
	globs    []string
}

// New compiles DEFAULT_EXCLUDES and userGlobs (doublestar glob syntax,
// e.g. "**/*.log.gz") into a ready-to-use Matcher.
func New(userGlobs []string) (*Matcher, error) {
	m := &Matcher{globs: userGlobs}
	for _, pattern := range DEFAULT_EXCLUDES {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		m.defaults = append(m.defaults, re)
	}
	return m, nil
}

// Excluded reports whether path matches any default exclude pattern or
// any user-supplied glob.
func (m *Matcher) Excluded(path string) bool {
	for _, re := range m.defaults {
		if re.MatchString(path) {
			return true
		}
	}
	for _, pattern := range m.globs {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(path, "/")); ok {
			return true
		}
	}
	return false
}
