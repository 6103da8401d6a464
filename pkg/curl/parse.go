package curl

import (
	"regexp"
	"strings"
)

var curlPrefix = regexp.MustCompile(`(?i)^curl\s*`)

// Parse converts curl arguments (without the leading "curl") into a Request.
// When findMarker is set it also reports where the marker appears.
func Parse(commandArgs string, findMarker bool) (*Request, InjectionPoint, error) {
	req := NewRequest()
	args := tokenize(commandArgs)

	var rest []string
	for i := 0; i < len(args); i++ {
		flag := args[i]
		switch flag {
		case "-X", "--request", "-H", "--header", "-d", "--data", "--data-raw":
		default:
			rest = append(rest, flag)
			continue
		}

		if i+1 >= len(args) {
			return nil, NoInjectionPoint, &ParseError{Input: commandArgs, Reason: "flag " + flag + " requires a value"}
		}
		i++
		val := unquote(args[i])

		switch flag {
		case "-X", "--request":
			req.Method = strings.ToUpper(val)
		case "-H", "--header":
			name, value, ok := strings.Cut(val, ":")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			req.Headers[name] = strings.TrimSpace(value)
		default:
			req.Body = val
			if req.Method == "GET" {
				req.Method = "POST"
			}
		}
	}

	for _, arg := range rest {
		if arg = unquote(arg); strings.HasPrefix(arg, "http") {
			req.URL = arg
			break
		}
	}
	if req.URL == "" {
		return nil, NoInjectionPoint, &ParseError{Input: commandArgs, Reason: msgNoURL}
	}

	point := NoInjectionPoint
	if findMarker {
		point = locateMarker(req)
	}
	return req, point, nil
}

// ParseCommand is Parse for a full command line. Surrounding whitespace and
// a leading "curl" word are removed first.
func ParseCommand(command string, findMarker bool) (*Request, InjectionPoint, error) {
	return Parse(TrimCommand(command), findMarker)
}

// TrimCommand strips whitespace and a leading "curl" from command.
func TrimCommand(command string) string {
	return curlPrefix.ReplaceAllString(strings.TrimSpace(command), "")
}
