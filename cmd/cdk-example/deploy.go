package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lex00/cdk-example-go/internal/deploy"
)

const (
	approvalNever      = "never"
	approvalBroadening = "broadening"
)

type deployOptions struct {
	assemblyDir     string
	requireApproval string
	stagingBucket   string
	region          string
	roleARN         string
	tags            map[string]string
}

func newDeployCmd() *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy [stacks...]",
		Short: "Deploy stacks with CloudFormation change sets",
		Long: `Deploy creates a change set for each stack, waits for it and executes it.

Without arguments the top-level stacks are deployed, which for this app is
the pipeline stack only: stage stacks are deployed by the pipeline itself.
The pipeline's UpdatePipeline action runs this command against its own
synth output.

Examples:
    cdk-example deploy
    cdk-example deploy CdkExampleStack --assembly cdk.out --require-approval never
    cdk-example deploy --role-arn arn:aws:iam::500737756044:role/deploy
    cdk-example deploy --staging-bucket my-templates`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.assemblyDir, "assembly", "", "Deploy an existing cloud assembly instead of synthesizing")
	cmd.Flags().StringVar(&opts.requireApproval, "require-approval", approvalBroadening, "When to ask before executing: never or broadening (IAM and permission changes)")
	cmd.Flags().StringVar(&opts.stagingBucket, "staging-bucket", "", "S3 bucket for templates over the inline size limit")
	cmd.Flags().StringVar(&opts.region, "region", "", "AWS region (default: the stack's region)")
	cmd.Flags().StringVar(&opts.roleARN, "role-arn", "", "IAM role CloudFormation assumes to apply change sets")
	cmd.Flags().StringToStringVar(&opts.tags, "tags", nil, "Stack tags as key=value pairs")

	return cmd
}

func runDeploy(ctx context.Context, stdin io.Reader, stdout io.Writer, names []string, opts deployOptions) error {
	logger := zerolog.Ctx(ctx)

	var approver deploy.Approver
	switch opts.requireApproval {
	case approvalNever:
	case approvalBroadening:
		approver = promptApprover(stdin, stdout)
	default:
		return fmt.Errorf("unknown --require-approval value: %s (use 'never' or 'broadening')", opts.requireApproval)
	}

	asm, err := loadAssembly(opts.assemblyDir)
	if err != nil {
		return err
	}
	stacks, err := selectStacks(asm, names)
	if err != nil {
		return err
	}

	deployers := map[string]*deploy.Deployer{}
	for _, st := range stacks {
		region := opts.region
		if region == "" {
			region = st.Environment.Region
		}

		d, ok := deployers[region]
		if !ok {
			d, err = deploy.New(ctx, region, deploy.Options{
				StagingBucket: opts.stagingBucket,
				Region:        region,
				RoleARN:       opts.roleARN,
				Approver:      approver,
			})
			if err != nil {
				return err
			}
			deployers[region] = d
		}

		logger.Info().Str("stack_name", st.StackName).Str("environment", st.Environment.String()).Msg("Deploying stack")
		result, err := d.Deploy(ctx, deploy.Input{
			StackName:   st.StackName,
			Template:    st.Template,
			Environment: st.Environment,
			Tags:        opts.tags,
		})
		if err != nil {
			return fmt.Errorf("deploying %s: %w", st.StackName, err)
		}
		printDeployResult(stdout, result)
	}
	return nil
}

func printDeployResult(w io.Writer, r *deploy.Result) {
	if r.Operation == deploy.OperationNone {
		fmt.Fprintf(w, "%s: no changes\n", r.StackName)
		return
	}
	fmt.Fprintf(w, "%s: %s complete (%d changes)\n", r.StackName, r.Operation, r.Changes)

	keys := make([]string, 0, len(r.Outputs))
	for k := range r.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, r.Outputs[k])
	}
}

// promptApprover asks on in before executing change sets that touch IAM
// resources or resource-based permissions. Other change sets are approved.
func promptApprover(in io.Reader, out io.Writer) deploy.Approver {
	reader := bufio.NewReader(in)
	return func(stackName string, changes []types.Change) (bool, error) {
		broadening := broadeningChanges(changes)
		if len(broadening) == 0 {
			return true, nil
		}

		fmt.Fprintf(out, "%s contains security-sensitive changes:\n", stackName)
		for _, c := range broadening {
			fmt.Fprintf(out, "  %s\n", c)
		}
		fmt.Fprint(out, "Do you wish to deploy these changes (y/n)? ")

		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func broadeningChanges(changes []types.Change) []string {
	var out []string
	for _, c := range changes {
		rc := c.ResourceChange
		if rc == nil {
			continue
		}
		resourceType := aws.ToString(rc.ResourceType)
		if !strings.HasPrefix(resourceType, "AWS::IAM::") && resourceType != "AWS::Lambda::Permission" {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s %s", rc.Action, resourceType, aws.ToString(rc.LogicalResourceId)))
	}
	return out
}
