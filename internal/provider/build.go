package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/gamelift"
	"github.com/aws/aws-sdk-go-v2/service/gamelift/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// S3Factory builds an S3 client from the temporary credentials GameLift hands
// out for a build upload.
type S3Factory func(region string, creds aws.CredentialsProvider) S3Client

func NewS3Client(region string, creds aws.CredentialsProvider) S3Client {
	return s3.New(s3.Options{
		Region:      region,
		Credentials: creds,
	})
}

// BuildDriver uploads the server build and waits for GameLift to mark it READY.
type BuildDriver struct {
	client GameLiftClient
	s3     S3Factory
}

func NewBuildDriver(client GameLiftClient, factory S3Factory) *BuildDriver {
	if factory == nil {
		factory = NewS3Client
	}
	return &BuildDriver{client: client, s3: factory}
}

func (d *BuildDriver) Create(ctx context.Context, in Input) (map[string]string, error) {
	cfg := in.Config
	logger := zerolog.Ctx(ctx).With().Str("build", cfg.Build.Name).Logger()

	existing, err := d.find(ctx, in.Record.ID(resource.IDBuildID), cfg.Build.Name)
	if err != nil {
		return nil, err
	}

	var buildID string
	if existing != nil {
		buildID = aws.ToString(existing.BuildId)
		switch existing.Status {
		case types.BuildStatusReady:
			logger.Info().Str("build_id", buildID).Msg("adopting existing build")
			return buildIdentifiers(buildID), nil

		case types.BuildStatusInitialized:
			logger.Info().Str("build_id", buildID).Msg("resuming upload of existing build")
			out, err := d.client.RequestUploadCredentials(ctx, &gamelift.RequestUploadCredentialsInput{
				BuildId: aws.String(buildID),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to request upload credentials for %s: %w", buildID, err)
			}
			if err := d.upload(ctx, cfg.Region, cfg.Build.Root, out.UploadCredentials, out.StorageLocation); err != nil {
				return nil, err
			}

		default:
			logger.Info().Str("build_id", buildID).Str("status", string(existing.Status)).Msg("replacing failed build")
			if _, err := d.client.DeleteBuild(ctx, &gamelift.DeleteBuildInput{BuildId: aws.String(buildID)}); err != nil && !errors.IsNotFound(err) {
				return nil, fmt.Errorf("failed to delete build %s: %w", buildID, err)
			}
			existing = nil
		}
	}

	if existing == nil {
		out, err := d.client.CreateBuild(ctx, &gamelift.CreateBuildInput{
			Name:            aws.String(cfg.Build.Name),
			Version:         aws.String(cfg.Build.Version),
			OperatingSystem: types.OperatingSystem(cfg.Build.OperatingSystem),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create build %s: %w", cfg.Build.Name, err)
		}
		if out.Build == nil {
			return nil, fmt.Errorf("%w: create build returned no build", errors.ErrMissingIdentity)
		}
		buildID = aws.ToString(out.Build.BuildId)
		logger.Info().Str("build_id", buildID).Msg("created build")

		if err := d.upload(ctx, cfg.Region, cfg.Build.Root, out.UploadCredentials, out.StorageLocation); err != nil {
			return nil, err
		}
	}

	err = Poll(ctx, backoff(cfg, cfg.Build.Timeout), resource.Build, OperationCreate, func(ctx context.Context) (bool, string, error) {
		out, err := d.client.DescribeBuild(ctx, &gamelift.DescribeBuildInput{BuildId: aws.String(buildID)})
		if err != nil {
			return false, "", err
		}
		status := out.Build.Status
		logger.Debug().Str("status", string(status)).Msg("waiting for build")
		switch status {
		case types.BuildStatusReady:
			return true, string(status), nil
		case types.BuildStatusFailed:
			return false, string(status), &errors.ProviderError{
				Kind:      resource.Build.String(),
				Operation: OperationCreate,
				Code:      "BuildFailed",
				Message:   fmt.Sprintf("build %s entered status FAILED", buildID),
				Hint:      errors.HintRetryDifferentParameters,
			}
		}
		return false, string(status), nil
	})
	if err != nil {
		return nil, err
	}

	return buildIdentifiers(buildID), nil
}

func buildIdentifiers(buildID string) map[string]string {
	return map[string]string{
		resource.IDBuildID:     buildID,
		resource.IDBuildStatus: string(types.BuildStatusReady),
	}
}

func (d *BuildDriver) upload(ctx context.Context, region, root string, creds *types.AwsCredentials, location *types.S3Location) error {
	if creds == nil || location == nil {
		return fmt.Errorf("%w: no upload location for build", errors.ErrMissingIdentity)
	}

	archive, err := zipDir(root)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open build archive: %w", err)
	}
	defer f.Close()

	provider := credentials.NewStaticCredentialsProvider(
		aws.ToString(creds.AccessKeyId),
		aws.ToString(creds.SecretAccessKey),
		aws.ToString(creds.SessionToken),
	)
	_, err = d.s3(region, provider).PutObject(ctx, &s3.PutObjectInput{
		Bucket: location.Bucket,
		Key:    location.Key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload build to s3://%s/%s: %w", aws.ToString(location.Bucket), aws.ToString(location.Key), err)
	}

	zerolog.Ctx(ctx).Info().
		Str("bucket", aws.ToString(location.Bucket)).
		Str("key", aws.ToString(location.Key)).
		Msg("uploaded build")
	return nil
}

// find returns the build with id, or failing that the first build named name.
func (d *BuildDriver) find(ctx context.Context, id, name string) (*types.Build, error) {
	if id != "" {
		out, err := d.client.DescribeBuild(ctx, &gamelift.DescribeBuildInput{BuildId: aws.String(id)})
		switch {
		case errors.IsNotFound(err):
		case err != nil:
			return nil, fmt.Errorf("failed to describe build %s: %w", id, err)
		case out.Build != nil && out.Build.Status != types.BuildStatus("DELETED"):
			return out.Build, nil
		}
	}

	builds, err := d.list(ctx, name)
	if err != nil || len(builds) == 0 {
		return nil, err
	}
	return &builds[0], nil
}

func (d *BuildDriver) list(ctx context.Context, name string) ([]types.Build, error) {
	var (
		builds []types.Build
		token  *string
	)
	for {
		out, err := d.client.ListBuilds(ctx, &gamelift.ListBuildsInput{NextToken: token})
		if err != nil {
			return nil, fmt.Errorf("failed to list builds: %w", err)
		}
		for _, b := range out.Builds {
			if aws.ToString(b.Name) == name {
				builds = append(builds, b)
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return builds, nil
		}
		token = out.NextToken
	}
}

// Delete removes the recorded build and any other build carrying the same name.
func (d *BuildDriver) Delete(ctx context.Context, in Input) error {
	ids := map[string]bool{}
	if id := in.Record.ID(resource.IDBuildID); id != "" {
		ids[id] = true
	}
	builds, err := d.list(ctx, in.Config.Build.Name)
	if err != nil {
		return err
	}
	for _, b := range builds {
		ids[aws.ToString(b.BuildId)] = true
	}

	for id := range ids {
		_, err := d.client.DeleteBuild(ctx, &gamelift.DeleteBuildInput{BuildId: aws.String(id)})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete build %s: %w", id, err)
		}
		zerolog.Ctx(ctx).Info().Str("build_id", id).Msg("deleted build")
	}
	return nil
}
