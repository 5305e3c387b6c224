// Package events contains CloudFormation resource types for Amazon EventBridge.
package events

// Rule represents AWS::Events::Rule.
type Rule struct {
	Description  string         `json:"Description,omitempty"`
	EventPattern map[string]any `json:"EventPattern,omitempty"`
	State        string         `json:"State,omitempty"`
	Targets      []Rule_Target  `json:"Targets,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Rule) ResourceType() string {
	return "AWS::Events::Rule"
}

// Rule_Target is an invocation target of a rule.
type Rule_Target struct {
	Id      string `json:"Id"`
	Arn     any    `json:"Arn"`
	RoleArn any    `json:"RoleArn,omitempty"`
}
