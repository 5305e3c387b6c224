package validation

import (
	"sort"
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
)

// resourceSchema lists the property constraints checked offline for one
// resource type.
type resourceSchema struct {
	Required   []string
	Properties map[string]propertySchema
}

type propertySchema struct {
	Type          string
	AllowedValues []string
}

// resourceSchemas covers the resource types the app declares. Types outside
// this table are left to cfn-lint.
var resourceSchemas = map[string]resourceSchema{
	"AWS::Lambda::Function": {
		Required: []string{"Code", "Role"},
		Properties: map[string]propertySchema{
			"FunctionName": {Type: "String"},
			"Handler":      {Type: "String"},
			"Runtime": {Type: "String", AllowedValues: []string{
				"nodejs18.x", "nodejs20.x", "nodejs22.x",
				"python3.11", "python3.12", "python3.13",
				"java17", "java21", "provided.al2", "provided.al2023",
			}},
			"Code":       {Type: "Map"},
			"MemorySize": {Type: "Integer"},
			"Timeout":    {Type: "Integer"},
		},
	},
	"AWS::Lambda::Permission": {
		Required: []string{"Action", "FunctionName", "Principal"},
		Properties: map[string]propertySchema{
			"Action":        {Type: "String"},
			"Principal":     {Type: "String"},
			"SourceAccount": {Type: "String"},
			"SourceArn":     {Type: "String"},
		},
	},
	"AWS::S3::Bucket": {
		Properties: map[string]propertySchema{
			"BucketName":                {Type: "String"},
			"NotificationConfiguration": {Type: "Map"},
		},
	},
	"AWS::IAM::Role": {
		Required: []string{"AssumeRolePolicyDocument"},
		Properties: map[string]propertySchema{
			"AssumeRolePolicyDocument": {Type: "Json"},
			"ManagedPolicyArns":        {Type: "List"},
			"Policies":                 {Type: "List"},
		},
	},
	"AWS::CodeCommit::Repository": {
		Required: []string{"RepositoryName"},
		Properties: map[string]propertySchema{
			"RepositoryName": {Type: "String"},
		},
	},
	"AWS::CodeBuild::Project": {
		Required: []string{"Artifacts", "Environment", "ServiceRole", "Source"},
		Properties: map[string]propertySchema{
			"Environment": {Type: "Map"},
			"Source":      {Type: "Map"},
		},
	},
	"AWS::CodePipeline::Pipeline": {
		Required: []string{"RoleArn", "Stages"},
		Properties: map[string]propertySchema{
			"Name":   {Type: "String"},
			"Stages": {Type: "List"},
		},
	},
	"AWS::Events::Rule": {
		Properties: map[string]propertySchema{
			"EventPattern": {Type: "Json"},
			"State":        {Type: "String", AllowedValues: []string{"ENABLED", "DISABLED", "ENABLED_WITH_ALL_CLOUDTRAIL_MANAGEMENT_EVENTS"}},
			"Targets":      {Type: "List"},
		},
	},
}

// CheckProperties validates resource types and property values of tmpl
// against resourceSchemas.
func CheckProperties(stackName string, tmpl *cdkexample.Template) []Issue {
	c := &checker{stack: stackName, tmpl: tmpl}
	for _, id := range sortedIDs(tmpl.Resources) {
		c.checkResourceProperties(id, tmpl.Resources[id])
	}
	sortIssues(c.issues)
	return c.issues
}

func (c *checker) checkResourceProperties(id string, res cdkexample.ResourceDef) {
	if !isValidResourceType(res.Type) {
		c.add(SeverityError, "properties", id, "invalid resource type format: %s", res.Type)
		return
	}

	schema, ok := resourceSchemas[res.Type]
	if !ok {
		return
	}

	for _, required := range schema.Required {
		if _, exists := res.Properties[required]; !exists {
			c.add(SeverityError, "properties", id, "missing required property: %s", required)
		}
	}

	names := make([]string, 0, len(res.Properties))
	for name := range res.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := schema.Properties[name]
		if !ok {
			continue
		}
		value := res.Properties[name]
		if !isValidType(value, prop.Type) {
			c.add(SeverityError, "properties", id, "%s: expected type %s", name, prop.Type)
			continue
		}
		if s, ok := value.(string); ok && len(prop.AllowedValues) > 0 && !contains(prop.AllowedValues, s) {
			c.add(SeverityError, "properties", id, "%s: value %q not in allowed values: %v", name, s, prop.AllowedValues)
		}
	}
}

// isValidResourceType accepts AWS::Service::Resource and Custom::* types.
func isValidResourceType(resourceType string) bool {
	if strings.HasPrefix(resourceType, "Custom::") {
		return true
	}
	parts := strings.Split(resourceType, "::")
	return len(parts) == 3 && parts[0] == "AWS" && parts[1] != "" && parts[2] != ""
}

// isValidType reports whether value fits expected. Intrinsic functions match
// every type.
func isValidType(value any, expected string) bool {
	if m, ok := value.(map[string]any); ok && len(m) == 1 {
		for key := range m {
			if strings.HasPrefix(key, "Fn::") || key == "Ref" {
				return true
			}
		}
	}

	switch expected {
	case "String":
		_, ok := value.(string)
		return ok
	case "Integer":
		switch value.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "List":
		_, ok := value.([]any)
		return ok
	case "Map":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Resource != issues[j].Resource {
			return issues[i].Resource < issues[j].Resource
		}
		return issues[i].Message < issues[j].Message
	})
}
