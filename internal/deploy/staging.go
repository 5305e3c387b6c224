package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// MaxInlineTemplateSize is the largest TemplateBody CloudFormation accepts.
const MaxInlineTemplateSize = 51200

// ErrTemplateTooLarge is returned for templates over MaxInlineTemplateSize
// when no staging bucket is configured.
var ErrTemplateTooLarge = errors.New("template exceeds the inline size limit and no staging bucket is configured")

type templateRef struct {
	body *string
	url  *string
}

// templateSource passes small templates inline and uploads the rest to the
// staging bucket.
func (d *Deployer) templateSource(ctx context.Context, stackName string, body []byte) (templateRef, error) {
	if len(body) <= MaxInlineTemplateSize {
		return templateRef{body: aws.String(string(body))}, nil
	}
	if d.opts.StagingBucket == "" || d.s3 == nil {
		return templateRef{}, fmt.Errorf("%w: %s is %d bytes", ErrTemplateTooLarge, stackName, len(body))
	}

	key := fmt.Sprintf("cdk-example/%s/%s.template.json", stackName, ksuid.New().String())
	if _, err := d.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.opts.StagingBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return templateRef{}, fmt.Errorf("failed to stage template in s3://%s/%s: %w", d.opts.StagingBucket, key, err)
	}

	url := stagedURL(d.opts.StagingBucket, d.opts.Region, key)
	zerolog.Ctx(ctx).Info().Str("stack_name", stackName).Str("url", url).Int("bytes", len(body)).Msg("Staged template")
	return templateRef{url: aws.String(url)}, nil
}

func stagedURL(bucket, region, key string) string {
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
