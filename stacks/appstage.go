package stacks

import (
	"github.com/lex00/cdk-example-go/construct"
)

// AppStageProps configures an AppStage.
type AppStageProps struct {
	construct.StageProps

	Lambda LambdaStackProps
}

// AppStage is the unit the pipeline deploys: one LambdaStack.
type AppStage struct {
	*construct.Stage

	LambdaStack *LambdaStack
}

// NewAppStage declares the stage and its "LambdaStack".
func NewAppStage(scope construct.Construct, id string, props AppStageProps) *AppStage {
	s := &AppStage{Stage: construct.NewStage(scope, id, props.StageProps)}
	s.LambdaStack = NewLambdaStack(s.Stage, "LambdaStack", props.Lambda)
	return s
}
