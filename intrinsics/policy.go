package intrinsics

import (
	"encoding/json"
)

// PolicyVersion is the IAM policy language version written into documents.
const PolicyVersion = "2012-10-17"

// PolicyDocument is an IAM policy document embedded in role and policy
// properties.
type PolicyDocument struct {
	Version   string            `json:"Version,omitempty"`
	Statement []PolicyStatement `json:"Statement"`
}

// NewPolicyDocument returns a document holding statements.
func NewPolicyDocument(statements ...PolicyStatement) PolicyDocument {
	return PolicyDocument{Version: PolicyVersion, Statement: statements}
}

// PolicyStatement is one statement of a PolicyDocument. Action and Resource
// take a single value or a list.
type PolicyStatement struct {
	Sid       string         `json:"Sid,omitempty"`
	Effect    string         `json:"Effect"`
	Principal any            `json:"Principal,omitempty"`
	Action    any            `json:"Action,omitempty"`
	Resource  any            `json:"Resource,omitempty"`
	Condition map[string]any `json:"Condition,omitempty"`
}

// Allow grants actions on resources.
func Allow(actions []string, resources ...any) PolicyStatement {
	return PolicyStatement{Effect: "Allow", Action: actions, Resource: resources}
}

// AssumeRoleStatement lets service assume the role carrying the document,
// e.g. "lambda.amazonaws.com" for a function execution role.
func AssumeRoleStatement(service string) PolicyStatement {
	return PolicyStatement{
		Effect:    "Allow",
		Principal: ServicePrincipal{service},
		Action:    "sts:AssumeRole",
	}
}

// ServicePrincipal marshals to {"Service": ...}, a bare string for one
// service and a list otherwise.
type ServicePrincipal []string

// MarshalJSON implements json.Marshaler.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]string{"Service": p[0]})
	}
	return json.Marshal(map[string][]string{"Service": p})
}
