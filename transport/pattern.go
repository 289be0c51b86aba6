package transport

import "strings"

// HasWildcards reports whether the pattern contains any OSC wildcard
// syntax. Plain addresses can be dispatched by exact lookup.
func HasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// MatchAddress reports whether an address matches an OSC address
// pattern, per the OSC 1.0 dispatch rules:
//
//	*      any run of characters within one segment
//	?      any single character within one segment
//	[abc]  character class; ranges (a-z) and negation ([!...]) supported
//	{a,bc} alternation over literal strings
//
// Wildcards never cross a '/' boundary. A malformed class or brace
// group fails the match.
func MatchAddress(pattern, address string) bool {
	return matchPattern(pattern, address)
}

func matchPattern(p, a string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			p = p[1:]
			for i := 0; i <= len(a); i++ {
				if matchPattern(p, a[i:]) {
					return true
				}
				if i == len(a) || a[i] == '/' {
					break
				}
			}
			return false
		case '?':
			if len(a) == 0 || a[0] == '/' {
				return false
			}
			p, a = p[1:], a[1:]
		case '[':
			end := strings.IndexByte(p, ']')
			if end < 0 {
				return false
			}
			if len(a) == 0 || a[0] == '/' || !matchClass(p[1:end], a[0]) {
				return false
			}
			p, a = p[end+1:], a[1:]
		case '{':
			end := strings.IndexByte(p, '}')
			if end < 0 {
				return false
			}
			rest := p[end+1:]
			for _, alt := range strings.Split(p[1:end], ",") {
				if strings.HasPrefix(a, alt) && matchPattern(rest, a[len(alt):]) {
					return true
				}
			}
			return false
		default:
			if len(a) == 0 || a[0] != p[0] {
				return false
			}
			p, a = p[1:], a[1:]
		}
	}
	return len(a) == 0
}

func matchClass(spec string, c byte) bool {
	negate := false
	if strings.HasPrefix(spec, "!") {
		negate = true
		spec = spec[1:]
	}
	matched := false
	for i := 0; i < len(spec); i++ {
		if i+2 < len(spec) && spec[i+1] == '-' {
			if spec[i] <= c && c <= spec[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if spec[i] == c {
			matched = true
		}
	}
	return matched != negate
}
