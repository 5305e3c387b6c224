package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
)

const (
	typeBucket     = "AWS::S3::Bucket"
	typeFunction   = "AWS::Lambda::Function"
	typePermission = "AWS::Lambda::Permission"

	s3Principal = "s3.amazonaws.com"
)

// CheckTemplate runs the structural checks on one stack template:
// references resolve inside the template, and every bucket notification
// targeting a function is backed by an invoke grant for that bucket.
func CheckTemplate(stackName string, tmpl *cdkexample.Template) []Issue {
	c := &checker{stack: stackName, tmpl: tmpl}
	c.checkReferences()
	c.checkNotifications()
	c.checkGrants()
	sortIssues(c.issues)
	return c.issues
}

type checker struct {
	stack  string
	tmpl   *cdkexample.Template
	issues []Issue
}

func (c *checker) add(sev Severity, check, resource, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Severity: sev,
		Stack:    c.stack,
		Resource: resource,
		Check:    check,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) checkReferences() {
	for _, id := range sortedIDs(c.tmpl.Resources) {
		r := c.tmpl.Resources[id]
		walkRefs(r.Properties, func(target string) {
			if strings.HasPrefix(target, "AWS::") {
				return
			}
			if _, ok := c.tmpl.Resources[target]; ok {
				return
			}
			if _, ok := c.tmpl.Parameters[target]; ok {
				return
			}
			c.add(SeverityError, "references", id, "references undefined %q", target)
		})
		for _, dep := range r.DependsOn {
			if _, ok := c.tmpl.Resources[dep]; !ok {
				c.add(SeverityError, "references", id, "depends on undefined %q", dep)
			}
		}
	}
}

// checkNotifications verifies each bucket -> function subscription.
func (c *checker) checkNotifications() {
	for _, bucketID := range sortedIDs(c.tmpl.Resources) {
		bucket := c.tmpl.Resources[bucketID]
		if bucket.Type != typeBucket {
			continue
		}
		for _, cfg := range lambdaConfigurations(bucket) {
			fnID, ok := getAttTarget(cfg["Function"], "Arn")
			if !ok || c.tmpl.Resources[fnID].Type != typeFunction {
				c.add(SeverityError, "notifications", bucketID, "notification target %s is not a function of this stack", jsonString(cfg["Function"]))
				continue
			}
			if event, _ := cfg["Event"].(string); !strings.HasPrefix(event, "s3:") {
				c.add(SeverityError, "notifications", bucketID, "invalid event %q", cfg["Event"])
			}

			permID := c.findGrant(fnID, bucketID)
			if permID == "" {
				c.add(SeverityError, "notifications", bucketID, "no invoke permission lets %s call %s", s3Principal, fnID)
				continue
			}
			if !contains(bucket.DependsOn, permID) {
				c.add(SeverityWarning, "notifications", bucketID, "bucket does not depend on permission %s; notification setup may race the grant", permID)
			}
		}
	}
}

// checkGrants flags S3 invoke permissions whose source bucket is not in the
// template, which usually means the grant and the bucket drifted apart.
func (c *checker) checkGrants() {
	for _, permID := range sortedIDs(c.tmpl.Resources) {
		perm := c.tmpl.Resources[permID]
		if perm.Type != typePermission || perm.Properties["Principal"] != s3Principal {
			continue
		}
		if _, ok := perm.Properties["SourceArn"]; !ok {
			c.add(SeverityWarning, "grants", permID, "S3 invoke permission has no SourceArn")
			continue
		}
		if c.bucketForArn(perm.Properties["SourceArn"]) == "" {
			c.add(SeverityWarning, "grants", permID, "SourceArn %s matches no bucket of this stack", jsonString(perm.Properties["SourceArn"]))
		}
	}
}

// findGrant returns a permission letting S3 invoke fnID from bucketID.
func (c *checker) findGrant(fnID, bucketID string) string {
	for _, id := range sortedIDs(c.tmpl.Resources) {
		r := c.tmpl.Resources[id]
		if r.Type != typePermission || r.Properties["Principal"] != s3Principal {
			continue
		}
		if !targetsFunction(r.Properties["FunctionName"], fnID) {
			continue
		}
		if c.bucketForArn(r.Properties["SourceArn"]) == bucketID {
			return id
		}
	}
	return ""
}

// bucketForArn returns the bucket whose ARN arn denotes.
func (c *checker) bucketForArn(arn any) string {
	if id, ok := getAttTarget(arn, "Arn"); ok && c.tmpl.Resources[id].Type == typeBucket {
		return id
	}
	sub, ok := subString(arn)
	if !ok {
		s, isString := arn.(string)
		if !isString {
			return ""
		}
		sub = s
	}
	name, ok := strings.CutPrefix(sub, "arn:${AWS::Partition}:s3:::")
	if !ok {
		name, ok = strings.CutPrefix(sub, "arn:aws:s3:::")
	}
	if !ok {
		return ""
	}
	for _, id := range sortedIDs(c.tmpl.Resources) {
		r := c.tmpl.Resources[id]
		if r.Type == typeBucket && r.Properties["BucketName"] == name {
			return id
		}
	}
	return ""
}

func lambdaConfigurations(bucket cdkexample.ResourceDef) []map[string]any {
	nc, _ := bucket.Properties["NotificationConfiguration"].(map[string]any)
	list, _ := nc["LambdaConfigurations"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func targetsFunction(v any, fnID string) bool {
	if m, ok := v.(map[string]any); ok && len(m) == 1 && m["Ref"] == fnID {
		return true
	}
	id, ok := getAttTarget(v, "Arn")
	return ok && id == fnID
}

func getAttTarget(v any, attr string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	args, ok := m["Fn::GetAtt"].([]any)
	if !ok || len(args) != 2 || args[1] != attr {
		return "", false
	}
	id, ok := args[0].(string)
	return id, ok
}

func subString(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	s, ok := m["Fn::Sub"].(string)
	return s, ok
}

// walkRefs reports the target of every Ref and GetAtt inside value.
func walkRefs(value any, found func(string)) {
	switch v := value.(type) {
	case map[string]any:
		if target, ok := v["Ref"].(string); ok && len(v) == 1 {
			found(target)
			return
		}
		if args, ok := v["Fn::GetAtt"].([]any); ok && len(v) == 1 && len(args) == 2 {
			if target, ok := args[0].(string); ok {
				found(target)
			}
			return
		}
		for _, val := range v {
			walkRefs(val, found)
		}
	case []any:
		for _, elem := range v {
			walkRefs(elem, found)
		}
	}
}

func sortedIDs(m map[string]cdkexample.ResourceDef) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
