package construct

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/iancoleman/strcase"
)

const (
	// hiddenID components are dropped from both the readable part and the hash.
	hiddenID = "Default"
	// hiddenFromHumanID components only drop out of the readable part.
	hiddenFromHumanID = "Resource"

	hashLength     = 8
	maxHumanLength = 255 - hashLength
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// LogicalID derives a CloudFormation logical ID from a construct path
// relative to its stack.
//
// A single component is used as-is with non-alphanumeric characters removed.
// Longer paths get a readable prefix plus the first 8 hex characters of the
// MD5 of the full path, so IDs stay stable while remaining unique:
//
//	["LambdaFunction", "Resource"]              → LambdaFunction<hash>
//	["LambdaFunction", "ServiceRole", "Resource"] → LambdaFunctionServiceRole<hash>
func LogicalID(components []string) string {
	var kept []string
	for _, c := range components {
		if c != hiddenID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) == 1 {
		return nonAlphanumeric.ReplaceAllString(kept[0], "")
	}

	sum := md5.Sum([]byte(strings.Join(kept, PathSeparator)))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))[:hashLength]

	var human strings.Builder
	last := ""
	for i, c := range kept {
		if c == hiddenFromHumanID && i == len(kept)-1 {
			continue
		}
		part := strcase.ToCamel(nonAlphanumeric.ReplaceAllString(c, " "))
		if part == last {
			continue
		}
		last = part
		human.WriteString(part)
	}

	readable := human.String()
	if len(readable) > maxHumanLength {
		readable = readable[:maxHumanLength]
	}
	return readable + hash
}
