// Package deploy deploys synthesized stack templates with CloudFormation
// change sets.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	cdkexample "github.com/lex00/cdk-example-go"
)

// Operations reported in Result.
const (
	OperationCreate = "CREATE"
	OperationUpdate = "UPDATE"
	OperationNone   = "NONE"
)

const (
	changeSetPrefix = "cdk-example-"
	managedByTag    = "cdk-example"

	defaultPollInterval = 5 * time.Second
	defaultTimeout      = time.Hour
)

var (
	// ErrStackFailed is returned when the stack ends in a failed or rolled back state.
	ErrStackFailed = errors.New("stack deployment failed")
	// ErrChangeSetFailed is returned when CloudFormation rejects the change set.
	ErrChangeSetFailed = errors.New("change set creation failed")
	// ErrAccountMismatch is returned when the credentials belong to another account than the stack's.
	ErrAccountMismatch = errors.New("credentials are for a different account")
	// ErrNotApproved is returned when the approver declines the change set.
	ErrNotApproved = errors.New("change set not approved")
)

// CloudFormationAPI is the subset of the CloudFormation client used by Deployer.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(ctx context.Context, in *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
	CreateChangeSet(ctx context.Context, in *cloudformation.CreateChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateChangeSetOutput, error)
	DescribeChangeSet(ctx context.Context, in *cloudformation.DescribeChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeChangeSetOutput, error)
	ExecuteChangeSet(ctx context.Context, in *cloudformation.ExecuteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ExecuteChangeSetOutput, error)
	DeleteChangeSet(ctx context.Context, in *cloudformation.DeleteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteChangeSetOutput, error)
}

// S3API is the subset of the S3 client used to stage large templates.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// STSAPI is the subset of the STS client used to check the target account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Approver decides whether a change set may be executed.
type Approver func(stackName string, changes []types.Change) (bool, error)

// Options configures a Deployer.
type Options struct {
	// StagingBucket receives templates too large to pass inline.
	StagingBucket string
	// Region is used to build staged template URLs.
	Region string
	// RoleARN is the service role CloudFormation assumes for the change set.
	// Empty uses the caller's credentials.
	RoleARN string
	// PollInterval between status checks. Defaults to 5s.
	PollInterval time.Duration
	// Timeout bounds waiting for one stack. Defaults to one hour.
	Timeout time.Duration
	// Approver is consulted before executing a change set. Nil approves all.
	Approver Approver
}

// Deployer creates or updates stacks through change sets.
type Deployer struct {
	cfn  CloudFormationAPI
	s3   S3API
	sts  STSAPI
	opts Options
}

// New creates a Deployer from the default AWS configuration chain.
func New(ctx context.Context, region string, opts Options) (*Deployer, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if opts.Region == "" {
		opts.Region = cfg.Region
	}
	return NewWithClients(cloudformation.NewFromConfig(cfg), s3.NewFromConfig(cfg), sts.NewFromConfig(cfg), opts), nil
}

// NewWithClients creates a Deployer from explicit clients.
func NewWithClients(cfn CloudFormationAPI, s3Client S3API, stsClient STSAPI, opts Options) *Deployer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Deployer{cfn: cfn, s3: s3Client, sts: stsClient, opts: opts}
}

// Input describes one stack deployment.
type Input struct {
	StackName   string
	Template    *cdkexample.Template
	Environment cdkexample.Environment
	Tags        map[string]string
}

// Result of a deployment.
type Result struct {
	StackName     string            `json:"stackName"`
	StackID       string            `json:"stackId,omitempty"`
	Operation     string            `json:"operation"`
	ChangeSetName string            `json:"changeSetName,omitempty"`
	Changes       int               `json:"changes"`
	Outputs       map[string]string `json:"outputs,omitempty"`
}

// Deploy creates a change set for in, waits for it, executes it and waits
// for the stack to settle. A change set without changes is deleted and
// reported as OperationNone.
func (d *Deployer) Deploy(ctx context.Context, in Input) (result *Result, err error) {
	logger := zerolog.Ctx(ctx).With().Str("stack_name", in.StackName).Logger()

	defer func(begin time.Time) {
		ev := logger.Info()
		if err != nil {
			ev = logger.Error().Err(err)
		}
		ev.Dur("elapsed", time.Since(begin)).Msg("Deploy completed")
	}(time.Now())

	if err := d.verifyAccount(ctx, in.Environment); err != nil {
		return nil, err
	}

	body, err := json.Marshal(in.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	source, err := d.templateSource(ctx, in.StackName, body)
	if err != nil {
		return nil, err
	}

	status, exists, err := d.stackStatus(ctx, in.StackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}
	if exists && status == types.StackStatusRollbackComplete {
		return nil, fmt.Errorf("%w: %s is in %s and must be deleted first", ErrStackFailed, in.StackName, status)
	}

	changeSetType := types.ChangeSetTypeCreate
	result = &Result{StackName: in.StackName, Operation: OperationCreate}
	if exists && status != types.StackStatusReviewInProgress {
		changeSetType = types.ChangeSetTypeUpdate
		result.Operation = OperationUpdate
	}

	result.ChangeSetName = changeSetPrefix + ksuid.New().String()
	logger.Info().
		Str("change_set", result.ChangeSetName).
		Str("type", string(changeSetType)).
		Msg("Creating change set")

	created, err := d.cfn.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(in.StackName),
		ChangeSetName: aws.String(result.ChangeSetName),
		ChangeSetType: changeSetType,
		TemplateBody:  source.body,
		TemplateURL:   source.url,
		RoleARN:       roleARN(d.opts.RoleARN),
		Capabilities: []types.Capability{
			types.CapabilityCapabilityIam,
			types.CapabilityCapabilityNamedIam,
			types.CapabilityCapabilityAutoExpand,
		},
		Tags: tags(in.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create change set: %w", err)
	}
	result.StackID = aws.ToString(created.StackId)

	changes, err := d.waitForChangeSet(ctx, in.StackName, result.ChangeSetName)
	if errors.Is(err, errNoChanges) {
		logger.Info().Msg("No updates needed for stack")
		d.deleteChangeSet(ctx, in.StackName, result.ChangeSetName)
		result.Operation = OperationNone
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Changes = len(changes)

	if d.opts.Approver != nil {
		ok, err := d.opts.Approver(in.StackName, changes)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.deleteChangeSet(ctx, in.StackName, result.ChangeSetName)
			return nil, fmt.Errorf("%w: %s", ErrNotApproved, in.StackName)
		}
	}

	logger.Info().Int("changes", len(changes)).Msg("Executing change set")
	if _, err := d.cfn.ExecuteChangeSet(ctx, &cloudformation.ExecuteChangeSetInput{
		StackName:     aws.String(in.StackName),
		ChangeSetName: aws.String(result.ChangeSetName),
	}); err != nil {
		return nil, fmt.Errorf("failed to execute change set: %w", err)
	}

	stack, err := d.waitForStack(ctx, in.StackName)
	if err != nil {
		return nil, err
	}
	result.StackID = aws.ToString(stack.StackId)
	result.Outputs = outputs(stack)
	return result, nil
}

// verifyAccount fails when env names an account the credentials do not belong to.
func (d *Deployer) verifyAccount(ctx context.Context, env cdkexample.Environment) error {
	if env.Account == "" || d.sts == nil {
		return nil
	}
	identity, err := d.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("failed to get caller identity: %w", err)
	}
	if got := aws.ToString(identity.Account); got != env.Account {
		return fmt.Errorf("%w: stack targets %s, credentials are for %s", ErrAccountMismatch, env.Account, got)
	}
	return nil
}

// stackStatus returns the stack's status, or exists=false when it does not exist.
func (d *Deployer) stackStatus(ctx context.Context, stackName string) (types.StackStatus, bool, error) {
	out, err := d.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
				return "", false, nil
			}
		}
		return "", false, err
	}
	if len(out.Stacks) == 0 {
		return "", false, nil
	}
	return out.Stacks[0].StackStatus, true, nil
}

func roleARN(arn string) *string {
	if arn == "" {
		return nil
	}
	return aws.String(arn)
}

var errNoChanges = errors.New("change set contains no changes")

func (d *Deployer) waitForChangeSet(ctx context.Context, stackName, name string) ([]types.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	for {
		out, err := d.cfn.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe change set: %w", err)
		}

		switch out.Status {
		case types.ChangeSetStatusCreateComplete:
			return out.Changes, nil
		case types.ChangeSetStatusFailed:
			reason := aws.ToString(out.StatusReason)
			if isNoChanges(reason) {
				return nil, errNoChanges
			}
			return nil, fmt.Errorf("%w: %s", ErrChangeSetFailed, reason)
		}

		if err := d.sleep(ctx); err != nil {
			return nil, fmt.Errorf("waiting for change set %s: %w", name, err)
		}
	}
}

func (d *Deployer) waitForStack(ctx context.Context, stackName string) (*types.Stack, error) {
	logger := zerolog.Ctx(ctx)
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	var last types.StackStatus
	for {
		out, err := d.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
		}
		if len(out.Stacks) == 0 {
			return nil, fmt.Errorf("%w: %s disappeared", ErrStackFailed, stackName)
		}

		stack := out.Stacks[0]
		if stack.StackStatus != last {
			logger.Info().Str("stack_name", stackName).Str("status", string(stack.StackStatus)).Msg("Stack status")
			last = stack.StackStatus
		}

		switch {
		case isSuccessStatus(stack.StackStatus):
			return &stack, nil
		case isFailedStatus(stack.StackStatus):
			d.logFailureEvents(ctx, stackName)
			return nil, fmt.Errorf("%w: %s is %s: %s", ErrStackFailed, stackName, stack.StackStatus, aws.ToString(stack.StackStatusReason))
		}

		if err := d.sleep(ctx); err != nil {
			return nil, fmt.Errorf("waiting for stack %s: %w", stackName, err)
		}
	}
}

func (d *Deployer) logFailureEvents(ctx context.Context, stackName string) {
	logger := zerolog.Ctx(ctx)
	out, err := d.cfn.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get stack events")
		return
	}
	for i := range out.StackEvents {
		event := &out.StackEvents[i]
		if event.ResourceStatusReason == nil {
			continue
		}
		logger.Info().
			Str("resource_id", aws.ToString(event.LogicalResourceId)).
			Str("status", string(event.ResourceStatus)).
			Str("reason", *event.ResourceStatusReason).
			Msg("Stack event")
	}
}

func (d *Deployer) deleteChangeSet(ctx context.Context, stackName, name string) {
	if _, err := d.cfn.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
		StackName:     aws.String(stackName),
		ChangeSetName: aws.String(name),
	}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("change_set", name).Msg("Failed to delete change set")
	}
}

func (d *Deployer) sleep(ctx context.Context) error {
	t := time.NewTimer(d.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isNoChanges(reason string) bool {
	return strings.Contains(reason, "didn't contain changes") ||
		strings.Contains(reason, "No updates are to be performed") ||
		strings.Contains(reason, "No updates to be performed")
}

func isSuccessStatus(status types.StackStatus) bool {
	return status == types.StackStatusCreateComplete || status == types.StackStatusUpdateComplete
}

func isFailedStatus(status types.StackStatus) bool {
	failedStatuses := []types.StackStatus{
		types.StackStatusCreateFailed,
		types.StackStatusUpdateFailed,
		types.StackStatusDeleteFailed,
		types.StackStatusRollbackFailed,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusUpdateRollbackComplete,
		types.StackStatusDeleteComplete,
	}
	for _, failed := range failedStatuses {
		if status == failed {
			return true
		}
	}
	return false
}

func tags(in map[string]string) []types.Tag {
	out := []types.Tag{{Key: aws.String("ManagedBy"), Value: aws.String(managedByTag)}}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(in[k])})
	}
	return out
}

func outputs(stack *types.Stack) map[string]string {
	if len(stack.Outputs) == 0 {
		return nil
	}
	out := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}
